package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"ipguard/internal/config"
)

// StartKafka runs the optional Kafka feed for producers that cannot reach
// the broker. Message values carry the same JSON bodies as queue deliveries.
// Offsets commit on read, so a failed message is dropped rather than
// redelivered, mirroring the reject-without-requeue policy of the AMQP path.
func StartKafka(ctx context.Context, cfg config.KafkaConfig, gateway *Gateway, logger *slog.Logger) {
	if !cfg.Enabled {
		logger.Info("kafka ingest disabled")
		return
	}
	logger.Info("kafka ingest enabled", "brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka read error", "err", err)
				continue
			}
			// Process already counted and logged any failure.
			_ = gateway.Process(ctx, m.Value)
		}
	}()
}
