package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ipguard/internal/config"
)

// Consumer reads event deliveries from the broker queue and feeds them
// through the gateway one at a time.
type Consumer struct {
	broker  config.BrokerConfig
	topo    config.IngestConfig
	gateway *Gateway
	logger  *slog.Logger
}

func NewConsumer(cfg *config.Config, gateway *Gateway, logger *slog.Logger) *Consumer {
	return &Consumer{
		broker:  cfg.Broker,
		topo:    cfg.Ingest,
		gateway: gateway,
		logger:  logger,
	}
}

// Run connects to the broker, declares the durable ingest topology, and
// consumes until ctx is done. It returns when the connection drops; restart
// policy belongs to process supervision.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.DialConfig(c.broker.AMQPURL(), amqp.Config{
		Heartbeat: time.Duration(c.broker.HeartbeatSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareIngestTopology(ch, c.topo); err != nil {
		return err
	}
	// Prefetch 1 keeps exactly one unacknowledged delivery in flight.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.topo.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consuming events",
		"queue", c.topo.Queue,
		"exchange", c.topo.Exchange,
		"routing_key", c.topo.RoutingKey,
	)
	for d := range deliveries {
		c.handleDelivery(ctx, d)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("delivery channel closed")
}

// handleDelivery resolves exactly one delivery: ack on success, reject
// without requeue on any failure. A poison message must never wedge the
// queue; dead-lettering is broker topology's concern.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	if err := c.gateway.Process(ctx, d.Body); err != nil {
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Warn("nack failed", "err", nackErr)
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Warn("ack failed", "err", ackErr)
	}
}

func declareIngestTopology(ch *amqp.Channel, topo config.IngestConfig) error {
	if err := ch.ExchangeDeclare(topo.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(topo.Queue, topo.RoutingKey, topo.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
