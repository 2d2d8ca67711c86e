package kafka

import (
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

func TestEncodeDecodeEvent(t *testing.T) {
	amount := decimal.RequireFromString("150.50")
	event := entity.PaymentEvent{
		EventType:  entity.EventPaymentStatusChanged,
		PaymentID:  uuid.New(),
		DealID:     uuid.New(),
		Status:     entity.StatusCompleted,
		Amount:     &amount,
		OccurredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Metadata:   map[string]any{entity.MetaComment: "ok"},
	}

	msg, err := EncodeEvent("payments.events", "node-1", event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	if string(msg.Key) != event.PaymentID.String() {
		t.Errorf("key = %s, want paymentId", msg.Key)
	}
	if Origin(msg) != "node-1" {
		t.Errorf("origin = %q, want node-1", Origin(msg))
	}

	got, err := DecodeEvent(msg)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if got.PaymentID != event.PaymentID || got.Status != entity.StatusCompleted || !got.Amount.Equal(amount) {
		t.Errorf("DecodeEvent() = %+v", got)
	}
	if got.Metadata[entity.MetaComment] != "ok" {
		t.Errorf("metadata = %+v", got.Metadata)
	}
}

func TestDecodeEventForeignProducer(t *testing.T) {
	id := uuid.New()
	msg := kafka.Message{Value: []byte(`{"eventType":"payment.status_changed","paymentId":"` + id.String() +
		`","status":"failed","amount":"10","occurredAt":"2025-03-01T10:00:00+03:00"}`)}

	got, err := DecodeEvent(msg)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if got.Status != entity.StatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if Origin(msg) != "" {
		t.Errorf("origin = %q, want empty", Origin(msg))
	}

	msg.Value = []byte(`{"eventType":"payment.updated","paymentId":"` + id.String() + `","status":"LOST"}`)
	got, err = DecodeEvent(msg)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if got.Status != "" {
		t.Errorf("status = %s, want dropped", got.Status)
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	if _, err := DecodeEvent(kafka.Message{Value: []byte(`{"paymentId":`)}); err == nil {
		t.Error("DecodeEvent() accepted truncated json")
	}
}
