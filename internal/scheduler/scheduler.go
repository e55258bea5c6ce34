package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ipguard/internal/alert"
	"ipguard/internal/config"
	"ipguard/internal/feature"
	"ipguard/internal/metrics"
	"ipguard/internal/model"
	"ipguard/internal/risk"
)

// EventSource is the slice of the event store the scheduler reads from.
type EventSource interface {
	FetchWindow(ctx context.Context, t0, t1 time.Time) ([]model.WindowEvent, error)
}

// BatchPublisher sends one alert batch downstream.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batch model.AlertBatch) error
}

// Status is a point-in-time view of the inference loop.
type Status struct {
	LastCycleAt     time.Time `json:"last_cycle_at"`
	LastOutcome     string    `json:"last_outcome"`
	LastWindowSize  int       `json:"last_window_size"`
	LastScoredIPs   int       `json:"last_scored_ips"`
	LastPublished   int       `json:"last_published"`
	ModelMode       string    `json:"model_mode,omitempty"`
	ModelVersion    string    `json:"model_version,omitempty"`
	CooldownEntries int       `json:"cooldown_entries"`
}

// Scheduler drives the fixed-interval inference loop: refresh artifact,
// fetch window, aggregate, score, level, publish. Cycles never overlap.
type Scheduler struct {
	cfg      config.InferenceConfig
	producer string
	store    EventSource
	cache    *risk.Cache
	cooldown *alert.Cooldown
	leveler  *alert.Leveler
	pub      BatchPublisher
	history  *alert.History
	logger   *slog.Logger

	now func() time.Time

	lastArtifact *risk.Artifact

	mu     sync.Mutex
	status Status
}

func New(cfg *config.Config, store EventSource, pub BatchPublisher, history *alert.History, logger *slog.Logger) *Scheduler {
	cooldown := alert.NewCooldown()
	return &Scheduler{
		cfg:      cfg.Inference,
		producer: cfg.Publish.Producer,
		store:    store,
		cache:    risk.NewCache(cfg.Inference.ModelPath),
		cooldown: cooldown,
		leveler:  alert.NewLeveler(cfg.Inference, cooldown),
		pub:      pub,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes cycles until ctx is done, sleeping the configured interval
// between the end of one cycle and the start of the next.
func (s *Scheduler) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.EverySec) * time.Second
	s.logger.Info("inference scheduler started",
		"every_sec", s.cfg.EverySec,
		"window_sec", s.cfg.WindowSec,
		"model_path", s.cfg.ModelPath,
	)
	for {
		s.RunCycle(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("inference scheduler stopped")
			return
		case <-time.After(interval):
		}
	}
}

// RunCycle executes exactly one inference pass.
func (s *Scheduler) RunCycle(ctx context.Context) {
	started := time.Now()
	outcome := s.cycle(ctx, s.now())
	metrics.InferenceCycles.WithLabelValues(outcome).Inc()
	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	metrics.CooldownEntries.Set(float64(s.cooldown.Len()))
}

func (s *Scheduler) cycle(ctx context.Context, now time.Time) string {
	art, err := s.cache.RefreshIfChanged()
	if err != nil {
		s.logger.Warn("model artifact unavailable, skipping cycle", "path", s.cache.Path(), "err", err)
		return s.finish(now, "no_model", 0, 0, 0, nil)
	}
	if art != s.lastArtifact {
		metrics.ModelReloads.Inc()
		s.logger.Info("model artifact loaded",
			"mode", string(art.Mode),
			"window_sec", art.WindowSec,
			"trained_at", art.TrainedAt,
		)
		s.lastArtifact = art
	}

	t1 := now
	t0 := now.Add(-time.Duration(s.cfg.WindowSec) * time.Second)
	events, err := s.store.FetchWindow(ctx, t0, t1)
	if err != nil {
		s.logger.Error("window fetch failed", "err", err)
		return s.finish(now, "error", 0, 0, 0, art)
	}
	metrics.WindowEvents.Set(float64(len(events)))
	if len(events) == 0 {
		return s.finish(now, "empty_window", 0, 0, 0, art)
	}

	vectors := feature.Aggregate(events, s.cfg.WindowSec, art.AttackTypeSet(), art.SuspiciousTypeSet())
	scored, err := risk.NewScorer(art).Score(vectors)
	if err != nil {
		s.logger.Error("scoring failed", "err", err)
		return s.finish(now, "error", len(events), 0, 0, art)
	}

	items := s.leveler.Level(scored, s.cfg.WindowSec, now)
	if len(items) == 0 {
		return s.finish(now, "no_alerts", len(events), len(scored), 0, art)
	}

	batch := model.AlertBatch{
		EventType:    model.BatchEventType,
		Producer:     s.producer,
		TS:           now.UTC().Format(time.RFC3339),
		ModelPath:    s.cfg.ModelPath,
		ModelVersion: s.modelVersion(art),
		WindowSec:    s.cfg.WindowSec,
		Items:        items,
	}
	if err := s.pub.PublishBatch(ctx, batch); err != nil {
		s.logger.Error("publish failed", "count", len(items), "err", err)
		return s.finish(now, "error", len(events), len(scored), 0, art)
	}
	for _, item := range items {
		metrics.AlertsPublished.WithLabelValues(string(item.RiskLevel)).Inc()
	}
	s.history.Add(batch)
	s.logger.Info("published risk alerts",
		"count", len(items),
		"top_ip", items[0].IP,
		"top_score", items[0].RiskScore,
	)
	return s.finish(now, "published", len(events), len(scored), len(items), art)
}

func (s *Scheduler) modelVersion(art *risk.Artifact) string {
	if s.cfg.ModelVersion != "" {
		return s.cfg.ModelVersion
	}
	return art.DefaultVersion()
}

func (s *Scheduler) finish(now time.Time, outcome string, windowSize, scoredIPs, published int, art *risk.Artifact) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{
		LastCycleAt:     now.UTC(),
		LastOutcome:     outcome,
		LastWindowSize:  windowSize,
		LastScoredIPs:   scoredIPs,
		LastPublished:   published,
		CooldownEntries: s.cooldown.Len(),
	}
	if art != nil {
		s.status.ModelMode = string(art.Mode)
		s.status.ModelVersion = s.modelVersion(art)
	}
	return outcome
}

// Status returns the last completed cycle's view.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
