package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

// Заголовки сообщений payments.events.
const (
	HeaderOrigin    = "origin"
	HeaderEventType = "event_type"
)

// EventProducer публикует PaymentEvent с ключом paymentId.
type EventProducer struct {
	*producer.Producer
	topic  string
	origin string

	metrics *metrics.Metrics
}

func NewEventProducer(producer *producer.Producer, topic, origin string, m *metrics.Metrics) *EventProducer {
	return &EventProducer{
		Producer: producer,
		topic:    topic,
		origin:   origin,
		metrics:  m,
	}
}

func (ep *EventProducer) Publish(ctx context.Context, event entity.PaymentEvent) error {
	msg, err := EncodeEvent(ep.topic, ep.origin, event)
	if err != nil {
		return fmt.Errorf("EventProducer - Publish - EncodeEvent: %w", err)
	}

	err = ep.Writer.WriteMessages(ctx, msg)
	if err != nil {
		ep.metrics.BusPublished.WithLabelValues(ep.topic, metrics.ResultFailed).Inc()

		return fmt.Errorf("EventProducer - Publish - ep.Writer.WriteMessages: %w", err)
	}

	ep.metrics.BusPublished.WithLabelValues(ep.topic, metrics.ResultOK).Inc()

	return nil
}

func (ep *EventProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventProducer - Close: %w", err)
	}

	return nil
}

// EncodeEvent собирает сообщение: ключ - paymentId, в заголовках источник и тип события.
func EncodeEvent(topic, origin string, event entity.PaymentEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(event.PaymentID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderOrigin, Value: []byte(origin)},
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}, nil
}

// Origin returns the origin header of msg or "".
func Origin(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == HeaderOrigin {
			return string(h.Value)
		}
	}

	return ""
}
