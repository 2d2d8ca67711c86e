package producer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultBatchTimeout = 10 * time.Millisecond
	_defaultWriteTimeout = 10 * time.Second
	_defaultMaxAttempts  = 3
)

// Producer - синхронный kafka.Writer без фиксированного топика:
// топик задается в каждом сообщении.
type Producer struct {
	connAttempts int
	connTimeout  time.Duration

	batchTimeout time.Duration
	writeTimeout time.Duration
	maxAttempts  int
	autoCreate   bool
	compression  kafka.Compression

	brokers []string
	Writer  *kafka.Writer
}

func New(ctx context.Context, brokers []string, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("Kafka Producer - New: no brokers")
	}

	p := &Producer{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		batchTimeout: _defaultBatchTimeout,
		writeTimeout: _defaultWriteTimeout,
		maxAttempts:  _defaultMaxAttempts,
		brokers:      brokers,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.waitBroker(ctx); err != nil {
		return nil, fmt.Errorf("Kafka Producer - New - p.waitBroker: %w", err)
	}

	// Hash: сообщения с одним ключом попадают в одну партицию
	p.Writer = &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           p.batchTimeout,
		WriteTimeout:           p.writeTimeout,
		MaxAttempts:            p.maxAttempts,
		Compression:            p.compression,
		AllowAutoTopicCreation: p.autoCreate,
	}

	return p, nil
}

func (p *Producer) waitBroker(ctx context.Context) error {
	var err error

	for attempt := p.connAttempts; attempt > 0; attempt-- {
		if err = p.ping(ctx); err == nil {
			return nil
		}

		log.Printf("Kafka producer is trying to connect, attempts left: %d", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.connTimeout):
		}
	}

	return fmt.Errorf("connAttempts == 0: %w", err)
}

// ping опрашивает брокеры по очереди до первого ответившего.
func (p *Producer) ping(ctx context.Context) error {
	var errList []error

	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errList = append(errList, fmt.Errorf("kafka.DialContext %s: %w", broker, err))
			continue
		}

		_, err = conn.Brokers()
		conn.Close()
		if err != nil {
			errList = append(errList, fmt.Errorf("conn.Brokers %s: %w", broker, err))
			continue
		}

		return nil
	}

	return errors.Join(errList...)
}

// Close дожидается отправки накопленного батча.
func (p *Producer) Close() error {
	if p.Writer == nil {
		return nil
	}

	if err := p.Writer.Close(); err != nil {
		return fmt.Errorf("Kafka Producer - Close - p.Writer.Close: %w", err)
	}

	return nil
}
