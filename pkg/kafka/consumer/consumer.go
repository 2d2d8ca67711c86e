package consumer

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
	_defaultMinBytes     = 1
	_defaultMaxBytes     = 10e6
	_defaultMaxWait      = 500 * time.Millisecond
)

// Consumer - kafka.Reader группы, подключенный к одному топику.
// Коммит оффсетов синхронный, если commitInterval == 0.
type Consumer struct {
	connAttempts int
	connTimeout  time.Duration

	startOffset    int64
	minBytes       int
	maxBytes       int
	maxWait        time.Duration
	commitInterval time.Duration

	brokers []string
	groupID string
	topic   string

	Reader *kafka.Reader
}

func New(ctx context.Context, brokers []string, groupID, topic string, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("Kafka Consumer - New: no brokers")
	}

	c := &Consumer{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		startOffset:  kafka.LastOffset,
		minBytes:     _defaultMinBytes,
		maxBytes:     _defaultMaxBytes,
		maxWait:      _defaultMaxWait,
		brokers:      brokers,
		groupID:      groupID,
		topic:        topic,
	}

	for _, opt := range opts {
		opt(c)
	}

	// брокер должен ответить до того, как reader начнет ребаланс группы
	if err := c.waitBroker(ctx); err != nil {
		return nil, fmt.Errorf("Kafka Consumer - New - c.waitBroker: %w", err)
	}

	c.Reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        c.groupID,
		Topic:          c.topic,
		MinBytes:       c.minBytes,
		MaxBytes:       c.maxBytes,
		MaxWait:        c.maxWait,
		StartOffset:    c.startOffset,
		CommitInterval: c.commitInterval,
	})

	return c, nil
}

func (c *Consumer) waitBroker(ctx context.Context) error {
	var err error

	for attempt := c.connAttempts; attempt > 0; attempt-- {
		if err = c.ping(ctx); err == nil {
			return nil
		}

		log.Printf("Kafka consumer of %s is trying to connect, attempts left: %d", c.topic, attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.connTimeout):
		}
	}

	return fmt.Errorf("connAttempts == 0: %w", err)
}

// ping опрашивает брокеры по очереди до первого ответившего.
func (c *Consumer) ping(ctx context.Context) error {
	var errList []error

	for _, broker := range c.brokers {
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

// Lag - отставание группы по последнему снимку статистики reader'а.
// Stats сбрасывает счетчики reader'а, поэтому других читателей статистики быть не должно.
func (c *Consumer) Lag() int64 {
	if c.Reader == nil {
		return 0
	}

	return c.Reader.Stats().Lag
}

func (c *Consumer) Close() error {
	if c.Reader == nil {
		return nil
	}

	if err := c.Reader.Close(); err != nil {
		return fmt.Errorf("Kafka Consumer - Close - c.Reader.Close: %w", err)
	}

	return nil
}
