package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ipguard/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLite("file:" + filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestSQLiteWindowBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t0 := t1.Add(-60 * time.Second)

	insert := func(ip string, at time.Time) {
		err := store.InsertEvent(ctx, model.NormalizedEvent{
			ServiceName: "waf",
			IP:          ip,
			EventType:   model.EventTypeRateLimiting,
			Severity:    model.SeverityWarning,
			Description: "limit hit",
			OccurredAt:  at,
		})
		if err != nil {
			t.Fatalf("insert %s: %v", ip, err)
		}
	}
	insert("before", t0.Add(-time.Second))
	insert("at-start", t0)
	insert("inside", t1.Add(-30*time.Second))
	insert("at-end", t1)

	events, err := store.FetchWindow(ctx, t0, t1)
	if err != nil {
		t.Fatalf("fetch window: %v", err)
	}
	got := make(map[string]bool, len(events))
	for _, ev := range events {
		got[ev.IP] = true
	}
	if len(events) != 2 || !got["at-start"] || !got["inside"] {
		t.Fatalf("window [t0,t1) contents: %v", got)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

	full := model.NormalizedEvent{
		ServiceName: "gateway",
		IP:          "10.0.0.7",
		EventType:   model.EventTypeSQLInjection,
		Severity:    model.SeverityAttack,
		Description: "union select in query string",
		OccurredAt:  at,
		RequestID:   strPtr("req-1"),
		Method:      strPtr("POST"),
		Path:        strPtr("/login"),
		StatusCode:  intPtr(403),
		UserAgent:   strPtr("curl/8.0"),
		Request:     map[string]any{"q": "1 union select"},
	}
	if err := store.InsertEvent(ctx, full); err != nil {
		t.Fatalf("insert full: %v", err)
	}
	bare := model.NormalizedEvent{
		ServiceName: "gateway",
		IP:          "10.0.0.8",
		EventType:   model.EventTypeUnknown,
		Severity:    model.SeverityInfo,
		Description: "plain",
		OccurredAt:  at,
	}
	if err := store.InsertEvent(ctx, bare); err != nil {
		t.Fatalf("insert bare: %v", err)
	}

	events, err := store.FetchWindow(ctx, at.Add(-time.Second), at.Add(time.Second))
	if err != nil {
		t.Fatalf("fetch window: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	byIP := make(map[string]model.WindowEvent, len(events))
	for _, ev := range events {
		byIP[ev.IP] = ev
	}

	got := byIP["10.0.0.7"]
	if got.EventType != model.EventTypeSQLInjection || got.Severity != model.SeverityAttack {
		t.Fatalf("codes: %+v", got)
	}
	if !got.OccurredAt.Equal(at) {
		t.Fatalf("occurred_at: got %v want %v", got.OccurredAt, at)
	}
	if got.Method == nil || *got.Method != "POST" || got.Path == nil || *got.Path != "/login" {
		t.Fatalf("request line: %+v", got)
	}
	if got.StatusCode == nil || *got.StatusCode != 403 || got.UserAgent == nil || *got.UserAgent != "curl/8.0" {
		t.Fatalf("optionals: %+v", got)
	}

	plain := byIP["10.0.0.8"]
	if plain.Method != nil || plain.Path != nil || plain.StatusCode != nil || plain.UserAgent != nil {
		t.Fatalf("bare event grew optionals: %+v", plain)
	}
}
