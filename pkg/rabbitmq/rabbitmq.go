package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultPrefetch     = 16
)

// Handler получает доставку; ack/nack - его ответственность.
type Handler func(ctx context.Context, d amqp091.Delivery)

type RabbitMQ struct {
	connAttempts int
	connTimeout  time.Duration
	prefetch     int

	url string

	mu   sync.Mutex
	conn *amqp091.Connection
}

func New(url string, opts ...Option) (*RabbitMQ, error) {
	r := &RabbitMQ{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		prefetch:     _defaultPrefetch,
		url:          url,
	}

	for _, opt := range opts {
		opt(r)
	}

	var err error
	for r.connAttempts > 0 {
		r.conn, err = amqp091.Dial(r.url)
		if err == nil {
			break
		}

		log.Printf("RabbitMQ is trying to connect, attempts left: %d", r.connAttempts)

		time.Sleep(r.connTimeout)

		r.connAttempts--
	}

	if err != nil {
		return nil, fmt.Errorf("rabbitmq - New - connAttempts == 0: %w", err)
	}

	return r, nil
}

// connection переподключается, если соединение закрыто брокером.
func (r *RabbitMQ) connection() (*amqp091.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}

	conn, err := amqp091.Dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq - connection - amqp091.Dial: %w", err)
	}
	r.conn = conn

	return conn, nil
}

func (r *RabbitMQ) channel() (*amqp091.Channel, error) {
	conn, err := r.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq - channel - conn.Channel: %w", err)
	}

	return ch, nil
}

// DeclareQueue объявляет durable-очередь.
func (r *RabbitMQ) DeclareQueue(name string) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq - DeclareQueue - ch.QueueDeclare: %w", err)
	}

	return nil
}

// Publish кладет persistent-сообщение в очередь через default exchange.
func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq - Publish - ch.PublishWithContext: %w", err)
	}

	return nil
}

// Consume читает очередь до отмены ctx. При закрытии канала подписка восстанавливается.
func (r *RabbitMQ) Consume(ctx context.Context, queue string, handler Handler) error {
	for {
		err := r.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}

		log.Printf("RabbitMQ consumer of %s stopped: %v, resubscribing", queue, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.connTimeout):
		}
	}
}

func (r *RabbitMQ) consumeOnce(ctx context.Context, queue string, handler Handler) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq - consumeOnce - ch.Qos: %w", err)
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq - consumeOnce - ch.Consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handler(ctx, d)
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn.Close()
	}

	return nil
}
