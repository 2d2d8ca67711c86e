package producer

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Option func(*Producer)

func ConnAttempts(attempts int) Option {
	return func(p *Producer) {
		p.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		p.connTimeout = timeout
	}
}

// BatchTimeout - сколько writer ждет добора батча перед отправкой.
func BatchTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		if timeout > 0 {
			p.batchTimeout = timeout
		}
	}
}

func WriteTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		if timeout > 0 {
			p.writeTimeout = timeout
		}
	}
}

func MaxAttempts(attempts int) Option {
	return func(p *Producer) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
	}
}

func AutoCreateTopics(enabled bool) Option {
	return func(p *Producer) {
		p.autoCreate = enabled
	}
}

// Compression: none, gzip, snappy, lz4, zstd. Неизвестное имя - без сжатия.
func Compression(codec string) Option {
	return func(p *Producer) {
		switch strings.ToLower(strings.TrimSpace(codec)) {
		case "gzip":
			p.compression = kafka.Gzip
		case "snappy":
			p.compression = kafka.Snappy
		case "lz4":
			p.compression = kafka.Lz4
		case "zstd":
			p.compression = kafka.Zstd
		default:
			p.compression = 0
		}
	}
}
