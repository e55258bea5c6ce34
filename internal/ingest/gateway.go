package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"ipguard/internal/metrics"
	"ipguard/internal/model"
	"ipguard/internal/normalize"
)

// EventWriter is the slice of the event store the gateway needs.
type EventWriter interface {
	InsertEvent(ctx context.Context, ev model.NormalizedEvent) error
}

// Gateway turns one delivery body into a persisted normalized event. It is
// broker-agnostic; acknowledgement is the transport's concern.
type Gateway struct {
	store  EventWriter
	logger *slog.Logger
}

func NewGateway(store EventWriter, logger *slog.Logger) *Gateway {
	return &Gateway{store: store, logger: logger}
}

// Process decodes, normalizes and persists one message body. Any returned
// error means the message must be dropped; a malformed message never blocks
// the ones behind it.
func (g *Gateway) Process(ctx context.Context, body []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		g.reject("decode", err)
		return err
	}
	ev, err := normalize.Normalize(raw)
	if err != nil {
		g.reject("validation", err)
		return err
	}
	if err := g.store.InsertEvent(ctx, ev); err != nil {
		g.reject("store", err)
		return err
	}
	metrics.EventsIngested.Inc()
	g.logger.Debug("event persisted",
		"service", ev.ServiceName,
		"ip", ev.IP,
		"event_type", model.EventTypeName(ev.EventType),
		"severity", model.SeverityName(ev.Severity),
	)
	return nil
}

func (g *Gateway) reject(reason string, err error) {
	metrics.EventsRejected.WithLabelValues(reason).Inc()
	g.logger.Warn("event rejected", "reason", reason, "err", err)
}
