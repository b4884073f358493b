package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chopnow/storefront/internal/core/domain"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishOrderEvent_KeyedByOrder(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w)

	event := domain.OrderEvent{
		Type:       domain.OrderEventStatusChanged,
		OrderID:    "order-7",
		From:       domain.OrderStatusReady,
		To:         domain.OrderStatusPickedUp,
		OccurredAt: time.Now().UTC(),
	}
	if err := p.PublishOrderEvent(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "order-7" {
		t.Errorf("expected key order-7, got %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "order.status_changed" {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var decoded domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if decoded.To != domain.OrderStatusPickedUp || decoded.From != domain.OrderStatusReady {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestPublishOrderEvent_WrapsWriterError(t *testing.T) {
	writeErr := errors.New("broker down")
	p := NewKafkaPublisher(&mockWriter{err: writeErr})

	err := p.PublishOrderEvent(context.Background(), domain.OrderEvent{Type: domain.OrderEventCreated, OrderID: "o"})
	if !errors.Is(err, writeErr) {
		t.Errorf("expected wrapped writer error, got: %v", err)
	}
}

func TestClose(t *testing.T) {
	w := &mockWriter{}
	if err := NewKafkaPublisher(w).Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
}
