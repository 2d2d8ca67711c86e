package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

// EventConsumer читает payments.events; коммит делается вручную после обработки.
type EventConsumer struct {
	*consumer.Consumer
}

func NewEventConsumer(consumer *consumer.Consumer) *EventConsumer {
	return &EventConsumer{consumer}
}

func (ec *EventConsumer) ReadEvent(ctx context.Context) (kafka.Message, error) {
	msg, err := ec.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("EventConsumer - ReadEvent - ec.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (ec *EventConsumer) CommitEvent(ctx context.Context, msg kafka.Message) error {
	err := ec.Reader.CommitMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("EventConsumer - CommitEvent - ec.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ec *EventConsumer) Close() error {
	err := ec.Consumer.Close()
	if err != nil {
		return fmt.Errorf("EventConsumer - Close: %w", err)
	}

	return nil
}

// DecodeEvent разбирает значение сообщения; статус приводится к верхнему регистру,
// неизвестный статус сбрасывается.
func DecodeEvent(msg kafka.Message) (entity.PaymentEvent, error) {
	var event entity.PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return entity.PaymentEvent{}, fmt.Errorf("DecodeEvent - json.Unmarshal: %w", err)
	}

	if event.Status != "" {
		status, ok := entity.ParsePaymentStatus(string(event.Status))
		if !ok {
			status = ""
		}
		event.Status = status
	}

	return event, nil
}
