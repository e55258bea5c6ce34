package alert

import (
	"sort"
	"time"

	"ipguard/internal/config"
	"ipguard/internal/model"
)

// Leveler buckets scored vectors into risk levels and applies the per-IP
// cooldown. It owns no clock; the caller passes now so cycles are testable.
type Leveler struct {
	HighThreshold   float64
	MediumThreshold float64
	HighTTLSec      int
	MediumTTLSec    int
	Cooldown        time.Duration

	state *Cooldown
}

func NewLeveler(cfg config.InferenceConfig, state *Cooldown) *Leveler {
	return &Leveler{
		HighThreshold:   cfg.HighThreshold,
		MediumThreshold: cfg.MediumThreshold,
		HighTTLSec:      cfg.HighTTLSec,
		MediumTTLSec:    cfg.MediumTTLSec,
		Cooldown:        time.Duration(cfg.CooldownSec) * time.Second,
		state:           state,
	}
}

// Level emits alert items for vectors at or above the medium threshold. All
// high rows are processed before any medium row, both passes in descending
// score order, sharing one cooldown map so an IP suppressed under high is
// not reconsidered under medium.
func (l *Leveler) Level(scored []model.ScoredVector, windowSec int, now time.Time) []model.RiskAlertItem {
	if len(scored) == 0 {
		return nil
	}
	sorted := make([]model.ScoredVector, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RiskScore > sorted[j].RiskScore })

	var items []model.RiskAlertItem
	emit := func(level model.RiskLevel, ttlSec int, match func(score float64) bool) {
		for _, sv := range sorted {
			if !match(sv.RiskScore) {
				continue
			}
			if !l.state.Allow(sv.IP, l.Cooldown, now) {
				continue
			}
			items = append(items, model.RiskAlertItem{
				IP:        sv.IP,
				RiskScore: sv.RiskScore,
				RiskLevel: level,
				TTLSec:    ttlSec,
				Reasons:   Reasons(sv.FeatureVector),
				WindowSec: windowSec,
			})
		}
	}
	emit(model.RiskLevelHigh, l.HighTTLSec, func(score float64) bool {
		return score >= l.HighThreshold
	})
	emit(model.RiskLevelMedium, l.MediumTTLSec, func(score float64) bool {
		return score >= l.MediumThreshold && score < l.HighThreshold
	})
	return items
}
