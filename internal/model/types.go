package model

import (
	"strconv"
	"time"
)

type RiskLevel string

const (
	RiskLevelHigh   RiskLevel = "high"
	RiskLevelMedium RiskLevel = "medium"
)

// Severity codes as published by upstream producers.
const (
	SeverityInfo    = 0
	SeverityWarning = 1
	SeverityError   = 2
	SeverityAttack  = 3
)

// Event type codes. Gaps between groups are intentional: 1-9 attacks,
// 10-19 suspicious traffic patterns, 20-29 infrastructure verdicts.
const (
	EventTypeUnknown              = 0
	EventTypeSQLInjection         = 1
	EventTypeXSS                  = 2
	EventTypeRateLimiting         = 10
	EventTypeTooManyRequestsBurst = 11
	EventTypeSuspiciousScan       = 12
	EventTypeBotDetected          = 13
	EventTypeWafRuleTriggered     = 20
	EventTypeFirewallBlock        = 21
)

var SeverityNames = map[string]int{
	"Info":    SeverityInfo,
	"Warning": SeverityWarning,
	"Error":   SeverityError,
	"Attack":  SeverityAttack,
}

var EventTypeNames = map[string]int{
	"Unknown":              EventTypeUnknown,
	"SQLInjection":         EventTypeSQLInjection,
	"XSS":                  EventTypeXSS,
	"RateLimiting":         EventTypeRateLimiting,
	"TooManyRequestsBurst": EventTypeTooManyRequestsBurst,
	"SuspiciousScan":       EventTypeSuspiciousScan,
	"BotDetected":          EventTypeBotDetected,
	"WafRuleTriggered":     EventTypeWafRuleTriggered,
	"FirewallBlock":        EventTypeFirewallBlock,
}

var (
	severityByCode  = reverseNames(SeverityNames)
	eventTypeByCode = reverseNames(EventTypeNames)
)

func reverseNames(names map[string]int) map[int]string {
	out := make(map[int]string, len(names))
	for name, code := range names {
		out[code] = name
	}
	return out
}

// SeverityName returns the symbolic name for a severity code. Unknown
// codes come back as their decimal string so logs stay readable.
func SeverityName(code int) string {
	if name, ok := severityByCode[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// EventTypeName returns the symbolic name for an event type code.
func EventTypeName(code int) string {
	if name, ok := eventTypeByCode[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

func DefaultAttackTypes() map[int]struct{} {
	return TypeSet([]int{EventTypeSQLInjection, EventTypeXSS})
}

func DefaultSuspiciousTypes() map[int]struct{} {
	return TypeSet([]int{
		EventTypeRateLimiting,
		EventTypeTooManyRequestsBurst,
		EventTypeSuspiciousScan,
		EventTypeBotDetected,
		EventTypeWafRuleTriggered,
		EventTypeFirewallBlock,
	})
}

func TypeSet(codes []int) map[int]struct{} {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// NormalizedEvent is the canonical record persisted for every accepted
// inbound message. Required fields are always non-empty and the enum
// fields hold resolved integer codes, never raw strings.
type NormalizedEvent struct {
	ServiceName string    `json:"service_name"`
	IP          string    `json:"ip"`
	EventType   int       `json:"event_type"`
	Severity    int       `json:"severity"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	RequestID   *string   `json:"request_id,omitempty"`
	Method      *string   `json:"method,omitempty"`
	Path        *string   `json:"path,omitempty"`
	StatusCode  *int      `json:"status_code,omitempty"`
	UserAgent   *string   `json:"user_agent,omitempty"`
	Request     any       `json:"request,omitempty"`
}

// WindowEvent is the trimmed projection read back for aggregation.
type WindowEvent struct {
	IP         string
	EventType  int
	Severity   int
	OccurredAt time.Time
	Method     *string
	Path       *string
	StatusCode *int
	UserAgent  *string
}

// FeatureVector summarizes one IP's activity within a window. Every
// ratio field is the matching count divided by max(EventsCount, 1), so
// ratios are always defined and stay in [0,1].
type FeatureVector struct {
	IP                  string  `json:"ip"`
	EventsCount         int     `json:"events_count"`
	EventsRate          float64 `json:"events_rate"`
	AttackTypeCount     int     `json:"attack_type_count"`
	SuspiciousTypeCount int     `json:"suspicious_type_count"`
	MaxSeverity         int     `json:"max_severity"`
	MeanSeverity        float64 `json:"mean_severity"`
	Cnt403              int     `json:"cnt_403"`
	Cnt4xx              int     `json:"cnt_4xx"`
	UniqPath            int     `json:"uniq_path"`
	UniqMethod          int     `json:"uniq_method"`
	UniqUA              int     `json:"uniq_ua"`
	RatioAttackType     float64 `json:"ratio_attack_type"`
	RatioSuspiciousType float64 `json:"ratio_suspicious_type"`
	Ratio403            float64 `json:"ratio_403"`
	Ratio4xx            float64 `json:"ratio_4xx"`
}

// Feature returns the named feature as a float64. Unknown names report
// ok=false so the scorer can zero-fill columns a model expects but the
// aggregator does not produce.
func (v FeatureVector) Feature(name string) (float64, bool) {
	switch name {
	case "events_count":
		return float64(v.EventsCount), true
	case "events_rate":
		return v.EventsRate, true
	case "attack_type_count":
		return float64(v.AttackTypeCount), true
	case "suspicious_type_count":
		return float64(v.SuspiciousTypeCount), true
	case "max_severity":
		return float64(v.MaxSeverity), true
	case "mean_severity":
		return v.MeanSeverity, true
	case "cnt_403":
		return float64(v.Cnt403), true
	case "cnt_4xx":
		return float64(v.Cnt4xx), true
	case "uniq_path":
		return float64(v.UniqPath), true
	case "uniq_method":
		return float64(v.UniqMethod), true
	case "uniq_ua":
		return float64(v.UniqUA), true
	case "ratio_attack_type":
		return v.RatioAttackType, true
	case "ratio_suspicious_type":
		return v.RatioSuspiciousType, true
	case "ratio_403":
		return v.Ratio403, true
	case "ratio_4xx":
		return v.Ratio4xx, true
	}
	return 0, false
}

// ScoredVector is a FeatureVector with the model's risk score attached.
type ScoredVector struct {
	FeatureVector
	RiskScore float64 `json:"risk_score"`
}

type RiskAlertItem struct {
	IP        string    `json:"ip"`
	RiskScore float64   `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
	TTLSec    int       `json:"ttl_sec"`
	Reasons   []string  `json:"reasons"`
	WindowSec int       `json:"window_sec"`
}

// BatchEventType is the fixed event_type of every outbound alert batch.
const BatchEventType = "ip_risk_detected"

// AlertBatch is the integration payload published once per cycle when at
// least one item survived leveling and cooldown.
type AlertBatch struct {
	EventType    string          `json:"event_type"`
	Producer     string          `json:"producer"`
	TS           string          `json:"ts"`
	ModelPath    string          `json:"model_path"`
	ModelVersion string          `json:"model_version"`
	WindowSec    int             `json:"window_sec"`
	Items        []RiskAlertItem `json:"items"`
}
