package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/andreyxaxa/crm-payments/pkg/rabbitmq"
	"github.com/rabbitmq/amqp091-go"
)

const (
	KindStatus = "status"
	KindJob    = "job"
)

// Consumer - часть pkg/rabbitmq, нужная контроллеру.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler rabbitmq.Handler) error
}

// QueueController читает одну очередь выгрузок. Сообщения подтверждаются всегда:
// ошибки только логируются, зависшие задачи закрывает sweeper.
type QueueController struct {
	consumer Consumer
	queue    string
	kind     string
	handle   func(ctx context.Context, body []byte) error

	processTimeout time.Duration

	metrics *metrics.Metrics
	logger  logger.Interface

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

// NewStatusController применяет статусы от воркера к задачам выгрузки.
func NewStatusController(
	consumer Consumer,
	queue string,
	exports usecase.ExportUseCase,
	m *metrics.Metrics,
	l logger.Interface,
	processTimeout time.Duration,
) *QueueController {
	return &QueueController{
		consumer: consumer,
		queue:    queue,
		kind:     KindStatus,
		handle: func(ctx context.Context, body []byte) error {
			var msg entity.ExportStatusMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				return fmt.Errorf("json.Unmarshal: %w", err)
			}

			return exports.HandleStatusMessage(ctx, msg)
		},
		processTimeout: processTimeout,
		metrics:        m,
		logger:         l,
	}
}

// NewJobController выполняет задачи выгрузки.
func NewJobController(
	consumer Consumer,
	queue string,
	worker usecase.ExportWorkerUseCase,
	m *metrics.Metrics,
	l logger.Interface,
	processTimeout time.Duration,
) *QueueController {
	return &QueueController{
		consumer: consumer,
		queue:    queue,
		kind:     KindJob,
		handle: func(ctx context.Context, body []byte) error {
			var msg entity.ExportJobMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				return fmt.Errorf("json.Unmarshal: %w", err)
			}

			return worker.Process(ctx, msg)
		},
		processTimeout: processTimeout,
		metrics:        m,
		logger:         l,
	}
}

func (c *QueueController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("QueueController - Start - %s controller already started", c.kind)
	}

	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if err := c.consumer.Consume(ctx, c.queue, c.deliver); err != nil {
			c.logger.Error(err, "QueueController - Start - c.consumer.Consume %s", c.queue)
		}
	}()

	return nil
}

func (c *QueueController) deliver(ctx context.Context, d amqp091.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Errorf("panic %v", r), "QueueController - deliver - panic")
		}

		if err := d.Ack(false); err != nil {
			c.logger.Error(err, "QueueController - deliver - d.Ack")
		}
	}()

	// остановка консьюмера не прерывает уже принятое сообщение: после ack его не вернуть
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.processTimeout)
	defer cancel()

	if err := c.handle(processCtx, d.Body); err != nil {
		c.metrics.ExportMessages.WithLabelValues(c.kind, metrics.ResultFailed).Inc()
		c.logger.Error(err, "QueueController - deliver - %s message from %s", c.kind, c.queue)

		return
	}

	c.metrics.ExportMessages.WithLabelValues(c.kind, metrics.ResultOK).Inc()
}

func (c *QueueController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("QueueController - Shutdown - %s: %w", c.kind, ctx.Err())
	}
}
