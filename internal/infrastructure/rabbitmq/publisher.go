package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
)

// Broker - часть pkg/rabbitmq, нужная публикаторам.
type Broker interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

type ExportJobPublisher struct {
	broker  Broker
	queue   string
	metrics *metrics.Metrics
}

func NewExportJobPublisher(broker Broker, queue string, m *metrics.Metrics) *ExportJobPublisher {
	return &ExportJobPublisher{broker: broker, queue: queue, metrics: m}
}

func (p *ExportJobPublisher) PublishJob(ctx context.Context, msg entity.ExportJobMessage) error {
	if err := publishJSON(ctx, p.broker, p.queue, msg, p.metrics); err != nil {
		return fmt.Errorf("ExportJobPublisher - PublishJob: %w", err)
	}

	return nil
}

type ExportStatusPublisher struct {
	broker  Broker
	queue   string
	metrics *metrics.Metrics
}

func NewExportStatusPublisher(broker Broker, queue string, m *metrics.Metrics) *ExportStatusPublisher {
	return &ExportStatusPublisher{broker: broker, queue: queue, metrics: m}
}

func (p *ExportStatusPublisher) PublishStatus(ctx context.Context, msg entity.ExportStatusMessage) error {
	if err := publishJSON(ctx, p.broker, p.queue, msg, p.metrics); err != nil {
		return fmt.Errorf("ExportStatusPublisher - PublishStatus: %w", err)
	}

	return nil
}

func publishJSON(ctx context.Context, broker Broker, queue string, v any, m *metrics.Metrics) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := broker.Publish(ctx, queue, body); err != nil {
		m.BusPublished.WithLabelValues(queue, metrics.ResultFailed).Inc()

		return fmt.Errorf("broker.Publish: %w", err)
	}

	m.BusPublished.WithLabelValues(queue, metrics.ResultOK).Inc()

	return nil
}
