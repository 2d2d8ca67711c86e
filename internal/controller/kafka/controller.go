package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	kafkapc "github.com/andreyxaxa/crm-payments/internal/infrastructure/kafka"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const _readBackoff = time.Second

// EventReader - то, что контроллеру нужно от консьюмера.
type EventReader interface {
	ReadEvent(ctx context.Context) (kafka.Message, error)
	CommitEvent(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaController применяет внешние события payments.events к платежам.
type KafkaController struct {
	payments usecase.PaymentUseCase
	er       EventReader
	origin   string
	metrics  *metrics.Metrics
	logger   logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	payments usecase.PaymentUseCase,
	er EventReader,
	origin string,
	m *metrics.Metrics,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
) *KafkaController {
	if workers < 1 {
		workers = 1
	}

	return &KafkaController{
		payments:       payments,
		er:             er,
		origin:         origin,
		metrics:        m,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// у каждого воркера своя очередь: события одного платежа идут в один воркер по порядку
	shards := make([]chan kafka.Message, c.workers)
	for i := range shards {
		shards[i] = make(chan kafka.Message, 2)

		c.wg.Add(1)
		go c.worker(shards[i])
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			for _, shard := range shards {
				close(shard)
			}
		}()

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				// 1. читаем из кафки
				msg, err := c.er.ReadEvent(c.ctx)
				if err != nil {
					if c.ctx.Err() != nil || errors.Is(err, context.Canceled) {
						return
					}
					c.logger.Error(err, "KafkaController - Start - c.er.ReadEvent")

					select {
					case <-c.ctx.Done():
						return
					case <-time.After(_readBackoff):
					}
					continue
				}

				// 2. отправляем в очередь воркера по ключу
				select {
				case shards[shardOf(msg.Key, c.workers)] <- msg:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (c *KafkaController) absorb(ctx context.Context, msg kafka.Message) (string, error) {
	// свои события уже применены при публикации
	if kafkapc.Origin(msg) == c.origin {
		return metrics.ResultSkipped, nil
	}

	event, err := kafkapc.DecodeEvent(msg)
	if err != nil {
		// битое сообщение повторять бессмысленно
		c.logger.Warn("KafkaController - absorb - offset %d: %v", msg.Offset, err)

		return metrics.ResultSkipped, nil
	}

	err = c.payments.AbsorbBusEvent(ctx, event)
	if err != nil {
		return metrics.ResultFailed, fmt.Errorf("KafkaController - absorb - c.payments.AbsorbBusEvent: %w", err)
	}

	return metrics.ResultOK, nil
}

func (c *KafkaController) worker(msgs <-chan kafka.Message) {
	defer c.wg.Done()

	// читаем канал, пока не закроется
	for msg := range msgs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			processCtx, processCancel := context.WithTimeout(c.ctx, c.processTimeout)
			result, err := c.absorb(processCtx, msg)
			processCancel()

			c.metrics.BusConsumed.WithLabelValues(msg.Topic, result).Inc()

			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.absorb")

				return
			}

			// коммитим после успешной обработки
			commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
			err = c.er.CommitEvent(commitCtx, msg)
			commitCancel()
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.er.CommitEvent")
			}
		}()
	}
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.er.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func shardOf(key []byte, n int) int {
	h := fnv.New32a()
	h.Write(key)

	return int(h.Sum32() % uint32(n))
}
