package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"ipguard/internal/model"
)

type fakeStore struct {
	events []model.NormalizedEvent
	err    error
}

func (s *fakeStore) InsertEvent(ctx context.Context, ev model.NormalizedEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func testConsumer(store *fakeStore) *Consumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Consumer{gateway: NewGateway(store, logger), logger: logger}
}

const validBody = `{
	"ServiceName": "waf",
	"Ip": "10.0.0.7",
	"EventType": "SQLInjection",
	"Severity": "Attack",
	"Description": "union select in query string",
	"OccurredAt": "2025-12-25T19:10:30.123Z",
	"StatusCode": 403
}`

func TestHandleDeliveryAckOnSuccess(t *testing.T) {
	store := &fakeStore{}
	c := testConsumer(store)
	ack := &fakeAck{}
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(validBody)})
	if ack.acked != 1 || ack.nacked != 0 {
		t.Fatalf("ack=%d nack=%d", ack.acked, ack.nacked)
	}
	if len(store.events) != 1 {
		t.Fatalf("persisted events: %d", len(store.events))
	}
	ev := store.events[0]
	if ev.EventType != model.EventTypeSQLInjection || ev.Severity != model.SeverityAttack {
		t.Fatalf("codes not resolved: %+v", ev)
	}
}

func TestHandleDeliveryRejectsBadPayloads(t *testing.T) {
	for _, body := range []string{
		`{not json`,
		`{"ServiceName":"waf","EventType":1,"Severity":3,"Description":"x","OccurredAt":"2025-12-25T19:10:30Z"}`,
		`{"ServiceName":"waf","Ip":"1.2.3.4","EventType":"Meltdown","Severity":3,"Description":"x","OccurredAt":"2025-12-25T19:10:30Z"}`,
		`{"ServiceName":"waf","Ip":"1.2.3.4","EventType":1,"Severity":3,"Description":"x","OccurredAt":"not a time"}`,
	} {
		store := &fakeStore{}
		c := testConsumer(store)
		ack := &fakeAck{}
		c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)})
		if ack.nacked != 1 || ack.acked != 0 {
			t.Fatalf("body %q: ack=%d nack=%d", body, ack.acked, ack.nacked)
		}
		if ack.requeue {
			t.Fatalf("body %q: rejected with requeue", body)
		}
		if len(store.events) != 0 {
			t.Fatalf("body %q: event persisted despite rejection", body)
		}
	}
}

func TestHandleDeliveryRejectsOnStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	c := testConsumer(store)
	ack := &fakeAck{}
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(validBody)})
	if ack.nacked != 1 || ack.requeue {
		t.Fatalf("store error must reject without requeue: nack=%d requeue=%v", ack.nacked, ack.requeue)
	}
}
