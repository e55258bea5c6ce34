package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ipguard/internal/model"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

// fieldAliases lists the accepted spellings per canonical field. Producers
// emit PascalCase or camelCase depending on their stack; the first present
// key wins.
var fieldAliases = map[string][]string{
	"service_name": {"ServiceName", "serviceName", "service_name"},
	"ip":           {"Ip", "ip", "IP"},
	"description":  {"Description", "description"},
	"event_type":   {"EventType", "eventType", "event_type"},
	"severity":     {"Severity", "severity"},
	"occurred_at":  {"OccurredAt", "occurredAt", "occurred_at"},
	"request_id":   {"RequestId", "requestId", "request_id"},
	"method":       {"Method", "method"},
	"path":         {"Path", "path"},
	"status_code":  {"StatusCode", "statusCode", "status_code"},
	"user_agent":   {"UserAgent", "userAgent", "user_agent"},
	"request":      {"Request", "request"},
}

func lookup(raw map[string]any, field string) (any, bool) {
	for _, key := range fieldAliases[field] {
		if v, ok := raw[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Normalize maps a decoded inbound payload to the canonical record. It is
// pure: all I/O and acknowledgement decisions belong to the caller.
func Normalize(raw map[string]any) (model.NormalizedEvent, error) {
	serviceName, err := requiredString(raw, "service_name")
	if err != nil {
		return model.NormalizedEvent{}, err
	}
	ip, err := requiredString(raw, "ip")
	if err != nil {
		return model.NormalizedEvent{}, err
	}
	description, err := requiredString(raw, "description")
	if err != nil {
		return model.NormalizedEvent{}, err
	}

	eventTypeRaw, _ := lookup(raw, "event_type")
	eventType, err := ResolveCode(eventTypeRaw, model.EventTypeNames, "event_type")
	if err != nil {
		return model.NormalizedEvent{}, err
	}

	severityRaw, _ := lookup(raw, "severity")
	severity, err := ResolveCode(severityRaw, model.SeverityNames, "severity")
	if err != nil {
		return model.NormalizedEvent{}, err
	}

	occurredRaw, _ := lookup(raw, "occurred_at")
	occurredAt, err := ParseOccurredAt(occurredRaw)
	if err != nil {
		return model.NormalizedEvent{}, err
	}

	return model.NormalizedEvent{
		ServiceName: serviceName,
		IP:          ip,
		EventType:   eventType,
		Severity:    severity,
		Description: description,
		OccurredAt:  occurredAt.UTC(),
		RequestID:   optionalString(raw, "request_id"),
		Method:      optionalString(raw, "method"),
		Path:        optionalString(raw, "path"),
		StatusCode:  coerceStatusCode(raw),
		UserAgent:   optionalString(raw, "user_agent"),
		Request:     CoerceRequest(firstOrNil(raw, "request")),
	}, nil
}

func requiredString(raw map[string]any, field string) (string, error) {
	v, ok := lookup(raw, field)
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s has type %T", ErrInvalidField, field, v)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return s, nil
}

func optionalString(raw map[string]any, field string) *string {
	v, ok := lookup(raw, field)
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func firstOrNil(raw map[string]any, field string) any {
	v, _ := lookup(raw, field)
	return v
}

// ResolveCode resolves an enum given as integer, numeric string, or symbolic
// name to its integer code. Symbolic names match exactly first, then
// case-insensitively.
func ResolveCode(value any, mapping map[string]int, field string) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		// JSON numbers arrive as float64; only integral values are codes.
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s=%v", ErrInvalidField, field, v)
		}
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		if code, ok := mapping[s]; ok {
			return code, nil
		}
		for name, code := range mapping {
			if strings.EqualFold(name, s) {
				return code, nil
			}
		}
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidField, field, v)
	}
	return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidField, field, value)
}

var occurredAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseOccurredAt accepts an already-typed timestamp or an ISO-8601 string.
// A trailing Z means UTC, zone-less strings are taken as UTC. When no layout
// matches, everything from the first '+' onward is stripped and parsing is
// retried once, recovering mangled offsets at the cost of dropping the zone.
func ParseOccurredAt(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: occurred_at", ErrMissingField)
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, fmt.Errorf("%w: occurred_at", ErrMissingField)
		}
		if t, ok := parseLayouts(s); ok {
			return t, nil
		}
		if i := strings.IndexByte(s, '+'); i > 0 {
			if t, ok := parseLayouts(s[:i]); ok {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: occurred_at=%q", ErrInvalidField, v)
	}
	return time.Time{}, fmt.Errorf("%w: occurred_at has type %T", ErrInvalidField, value)
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range occurredAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CoerceRequest shapes the free-form request payload for a JSON column.
// Objects and arrays pass through. Strings are parsed as JSON when possible
// and wrapped as {"raw": s} when not; other scalars are stringified and
// wrapped the same way. Absent or empty input yields nil.
func CoerceRequest(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any, []any:
		return v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed
		}
		return map[string]any{"raw": s}
	}
	return map[string]any{"raw": fmt.Sprint(value)}
}

// coerceStatusCode never fails the record: a status code that is neither an
// integer nor a numeric string is dropped.
func coerceStatusCode(raw map[string]any) *int {
	v, ok := lookup(raw, "status_code")
	if !ok || v == nil {
		return nil
	}
	switch c := v.(type) {
	case int:
		return &c
	case int64:
		n := int(c)
		return &n
	case float64:
		if c != math.Trunc(c) {
			return nil
		}
		n := int(c)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
			return &n
		}
	}
	return nil
}
