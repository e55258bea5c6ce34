package alert

import "ipguard/internal/model"

const maxReasons = 3

// Reasons derives a short explanation list from a feature vector. Checks run
// in fixed priority order and the result is capped at three entries.
func Reasons(v model.FeatureVector) []string {
	reasons := make([]string, 0, maxReasons)
	if v.AttackTypeCount > 0 {
		reasons = append(reasons, "attack_event")
	}
	if v.SuspiciousTypeCount > 0 {
		reasons = append(reasons, "suspicious_events")
	}
	if v.EventsRate >= 2.0 {
		reasons = append(reasons, "high_rate")
	}
	if v.Ratio403 >= 0.3 {
		reasons = append(reasons, "403_spike")
	}
	if v.UniqPath >= 20 {
		reasons = append(reasons, "scan_like")
	}
	if v.MaxSeverity >= 3 {
		reasons = append(reasons, "high_severity")
	}
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	return reasons
}
