package feature

import (
	"sort"

	"ipguard/internal/model"
)

type group struct {
	count        int
	attackCount  int
	suspectCount int
	maxSeverity  int
	severitySum  int
	cnt403       int
	cnt4xx       int
	paths        map[string]struct{}
	methods      map[string]struct{}
	agents       map[string]struct{}
}

// Aggregate reduces a window of events to one feature vector per source IP.
// Nil type sets fall back to the built-in attack and suspicious code sets.
// The uniq features count distinct non-null values only. Vectors are
// returned in ascending IP order so repeated runs over the same window
// produce identical output.
func Aggregate(events []model.WindowEvent, windowSec int, attackTypes, suspiciousTypes map[int]struct{}) []model.FeatureVector {
	if len(events) == 0 {
		return nil
	}
	if attackTypes == nil {
		attackTypes = model.DefaultAttackTypes()
	}
	if suspiciousTypes == nil {
		suspiciousTypes = model.DefaultSuspiciousTypes()
	}
	if windowSec <= 0 {
		windowSec = 1
	}

	groups := make(map[string]*group)
	for _, ev := range events {
		g := groups[ev.IP]
		if g == nil {
			g = &group{
				paths:   make(map[string]struct{}),
				methods: make(map[string]struct{}),
				agents:  make(map[string]struct{}),
			}
			groups[ev.IP] = g
		}
		g.count++
		if _, ok := attackTypes[ev.EventType]; ok {
			g.attackCount++
		}
		if _, ok := suspiciousTypes[ev.EventType]; ok {
			g.suspectCount++
		}
		if ev.Severity > g.maxSeverity {
			g.maxSeverity = ev.Severity
		}
		g.severitySum += ev.Severity
		if ev.StatusCode != nil {
			if *ev.StatusCode == 403 {
				g.cnt403++
			}
			if *ev.StatusCode >= 400 && *ev.StatusCode <= 499 {
				g.cnt4xx++
			}
		}
		if ev.Path != nil {
			g.paths[*ev.Path] = struct{}{}
		}
		if ev.Method != nil {
			g.methods[*ev.Method] = struct{}{}
		}
		if ev.UserAgent != nil {
			g.agents[*ev.UserAgent] = struct{}{}
		}
	}

	vectors := make([]model.FeatureVector, 0, len(groups))
	for ip, g := range groups {
		denom := float64(g.count)
		if denom < 1 {
			denom = 1
		}
		vectors = append(vectors, model.FeatureVector{
			IP:                  ip,
			EventsCount:         g.count,
			EventsRate:          float64(g.count) / float64(windowSec),
			AttackTypeCount:     g.attackCount,
			SuspiciousTypeCount: g.suspectCount,
			MaxSeverity:         g.maxSeverity,
			MeanSeverity:        float64(g.severitySum) / float64(g.count),
			Cnt403:              g.cnt403,
			Cnt4xx:              g.cnt4xx,
			UniqPath:            len(g.paths),
			UniqMethod:          len(g.methods),
			UniqUA:              len(g.agents),
			RatioAttackType:     float64(g.attackCount) / denom,
			RatioSuspiciousType: float64(g.suspectCount) / denom,
			Ratio403:            float64(g.cnt403) / denom,
			Ratio4xx:            float64(g.cnt4xx) / denom,
		})
	}
	sort.Slice(vectors, func(i, j int) bool { return vectors[i].IP < vectors[j].IP })
	return vectors
}
