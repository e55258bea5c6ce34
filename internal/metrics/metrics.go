package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipguard_events_ingested_total",
			Help: "Events normalized and persisted",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipguard_events_rejected_total",
			Help: "Deliveries rejected without requeue",
		},
		[]string{"reason"},
	)

	InferenceCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipguard_inference_cycles_total",
			Help: "Inference cycles by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ipguard_inference_cycle_seconds",
			Help:    "Wall time of one inference cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	WindowEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ipguard_window_events",
			Help: "Events fetched in the last inference window",
		},
	)

	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipguard_alerts_published_total",
			Help: "Alert items published by risk level",
		},
		[]string{"level"},
	)

	CooldownEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ipguard_cooldown_entries",
			Help: "IPs tracked by the alert cooldown map",
		},
	)

	ModelReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipguard_model_reloads_total",
			Help: "Times the model artifact was loaded or reloaded",
		},
	)
)
