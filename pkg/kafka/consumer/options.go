package consumer

import "time"

type Option func(*Consumer)

func ConnAttempts(attempts int) Option {
	return func(c *Consumer) {
		c.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(c *Consumer) {
		c.connTimeout = timeout
	}
}

// StartOffset применяется только к новой группе: kafka.FirstOffset или kafka.LastOffset.
func StartOffset(offset int64) Option {
	return func(c *Consumer) {
		c.startOffset = offset
	}
}

func FetchBytes(minBytes, maxBytes int) Option {
	return func(c *Consumer) {
		if minBytes > 0 && maxBytes >= minBytes {
			c.minBytes, c.maxBytes = minBytes, maxBytes
		}
	}
}

func MaxWait(wait time.Duration) Option {
	return func(c *Consumer) {
		if wait > 0 {
			c.maxWait = wait
		}
	}
}

// CommitInterval > 0 включает периодический коммит вместо синхронного.
func CommitInterval(interval time.Duration) Option {
	return func(c *Consumer) {
		c.commitInterval = interval
	}
}
