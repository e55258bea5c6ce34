package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"ipguard/internal/config"
	"ipguard/internal/model"
)

// Publisher emits alert batches to the integration exchange with persistent
// delivery marking.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	cfg    config.PublishConfig
	logger *slog.Logger
}

// Connect dials the broker and declares the integration topology: the
// exchange plus a durable queue bound to it, so batches published before the
// first consumer appears are not lost.
func Connect(broker config.BrokerConfig, cfg config.PublishConfig, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.DialConfig(broker.AMQPURL(), amqp.Config{
		Heartbeat: time.Duration(broker.HeartbeatSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareIntegrationTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	logger.Info("integration publisher ready", "exchange", cfg.Exchange, "type", cfg.ExchangeType)
	return &Publisher{conn: conn, ch: ch, cfg: cfg, logger: logger}, nil
}

func declareIntegrationTopology(ch *amqp.Channel, cfg config.PublishConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if cfg.Queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishBatch sends one batch as a single message. Either the whole batch
// goes out or none of it does.
func (p *Publisher) PublishBatch(ctx context.Context, batch model.AlertBatch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	p.logger.Debug("batch published", "exchange", p.cfg.Exchange, "items", len(batch.Items))
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
