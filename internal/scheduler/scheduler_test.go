package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ipguard/internal/alert"
	"ipguard/internal/config"
	"ipguard/internal/model"
)

// Zero weights leave only the intercept: sigmoid(ln(19)) = 0.95 for every
// row, above the default high threshold of 0.90.
const testArtifact = `{
	"mode": "supervised",
	"model": {"mean": [0, 0], "std": [1, 1], "weights": [0, 0], "intercept": 2.9444389791664403},
	"feature_cols": ["events_count", "ratio_403"],
	"window_sec": 60,
	"attack_event_types": [1, 2],
	"suspicious_event_types": [10, 11, 12, 13, 20, 21]
}`

type fakeSource struct {
	events []model.WindowEvent
	calls  int
	lastT0 time.Time
	lastT1 time.Time
	err    error
}

func (f *fakeSource) FetchWindow(ctx context.Context, t0, t1 time.Time) ([]model.WindowEvent, error) {
	f.calls++
	f.lastT0, f.lastT1 = t0, t1
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakePublisher struct {
	batches []model.AlertBatch
	err     error
}

func (f *fakePublisher) PublishBatch(ctx context.Context, batch model.AlertBatch) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, batch)
	return nil
}

func newTestScheduler(t *testing.T, modelJSON string, source *fakeSource, pub *fakePublisher) (*Scheduler, time.Time) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Inference.ModelPath = filepath.Join(t.TempDir(), "ip_risk_model.json")
	if modelJSON != "" {
		if err := os.WriteFile(cfg.Inference.ModelPath, []byte(modelJSON), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, source, pub, alert.NewHistory(10), logger)
	now := time.Date(2025, 12, 25, 19, 10, 30, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, now
}

func attackWindow(now time.Time) []model.WindowEvent {
	var events []model.WindowEvent
	for i := 0; i < 5; i++ {
		ev := model.WindowEvent{
			IP:         "1.2.3.4",
			EventType:  model.EventTypeRateLimiting,
			Severity:   model.SeverityWarning,
			OccurredAt: now.Add(-time.Duration(i+1) * time.Second),
		}
		if i < 2 {
			ev.EventType = model.EventTypeSQLInjection
			ev.Severity = model.SeverityAttack
		}
		events = append(events, ev)
	}
	return events
}

func TestCycleEndToEnd(t *testing.T) {
	source := &fakeSource{}
	pub := &fakePublisher{}
	s, now := newTestScheduler(t, testArtifact, source, pub)
	source.events = attackWindow(now)

	s.RunCycle(context.Background())

	if !source.lastT1.Equal(now) || source.lastT1.Sub(source.lastT0) != 60*time.Second {
		t.Fatalf("window bounds: t0=%v t1=%v", source.lastT0, source.lastT1)
	}
	if len(pub.batches) != 1 {
		t.Fatalf("published batches: %d", len(pub.batches))
	}
	batch := pub.batches[0]
	if batch.EventType != "ip_risk_detected" || batch.Producer != "ipguard" {
		t.Fatalf("batch header: %+v", batch)
	}
	if batch.ModelVersion != "supervised_v1" || batch.WindowSec != 60 {
		t.Fatalf("batch model meta: %+v", batch)
	}
	if batch.TS != "2025-12-25T19:10:30Z" {
		t.Fatalf("batch ts: %s", batch.TS)
	}
	if len(batch.Items) != 1 {
		t.Fatalf("batch items: %d", len(batch.Items))
	}
	item := batch.Items[0]
	if item.IP != "1.2.3.4" || item.RiskLevel != model.RiskLevelHigh || item.TTLSec != 1800 {
		t.Fatalf("item: %+v", item)
	}
	if len(item.Reasons) == 0 || item.Reasons[0] != "attack_event" {
		t.Fatalf("item reasons: %v", item.Reasons)
	}
	st := s.Status()
	if st.LastOutcome != "published" || st.LastPublished != 1 || st.LastWindowSize != 5 || st.LastScoredIPs != 1 {
		t.Fatalf("status: %+v", st)
	}
	if st.ModelMode != "supervised" || st.ModelVersion != "supervised_v1" {
		t.Fatalf("status model: %+v", st)
	}
}

func TestCycleCooldownSuppressesRepeat(t *testing.T) {
	source := &fakeSource{}
	pub := &fakePublisher{}
	s, now := newTestScheduler(t, testArtifact, source, pub)
	source.events = attackWindow(now)

	s.RunCycle(context.Background())
	if len(pub.batches) != 1 {
		t.Fatalf("first cycle: %d batches", len(pub.batches))
	}

	later := now.Add(10 * time.Second)
	s.now = func() time.Time { return later }
	s.RunCycle(context.Background())
	if len(pub.batches) != 1 {
		t.Fatalf("suppressed cycle still published: %d batches", len(pub.batches))
	}
	if st := s.Status(); st.LastOutcome != "no_alerts" {
		t.Fatalf("status after suppressed cycle: %+v", st)
	}

	expired := now.Add(70 * time.Second)
	s.now = func() time.Time { return expired }
	s.RunCycle(context.Background())
	if len(pub.batches) != 2 {
		t.Fatalf("cooldown expiry should publish again: %d batches", len(pub.batches))
	}
}

func TestCycleWithoutArtifactIdles(t *testing.T) {
	source := &fakeSource{}
	pub := &fakePublisher{}
	s, _ := newTestScheduler(t, "", source, pub)

	s.RunCycle(context.Background())

	if source.calls != 0 {
		t.Fatalf("window fetched without a model")
	}
	if len(pub.batches) != 0 {
		t.Fatalf("published without a model")
	}
	if st := s.Status(); st.LastOutcome != "no_model" {
		t.Fatalf("status: %+v", st)
	}
}

func TestCycleEmptyWindowIdles(t *testing.T) {
	source := &fakeSource{}
	pub := &fakePublisher{}
	s, _ := newTestScheduler(t, testArtifact, source, pub)

	s.RunCycle(context.Background())

	if len(pub.batches) != 0 {
		t.Fatalf("published on empty window")
	}
	if st := s.Status(); st.LastOutcome != "empty_window" {
		t.Fatalf("status: %+v", st)
	}
}

func TestCyclePublishFailure(t *testing.T) {
	source := &fakeSource{}
	pub := &fakePublisher{err: errors.New("broker gone")}
	s, now := newTestScheduler(t, testArtifact, source, pub)
	source.events = attackWindow(now)

	s.RunCycle(context.Background())

	if st := s.Status(); st.LastOutcome != "error" || st.LastPublished != 0 {
		t.Fatalf("status: %+v", st)
	}
}
