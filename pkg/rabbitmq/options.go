package rabbitmq

import "time"

type Option func(*RabbitMQ)

func ConnAttempts(attempts int) Option {
	return func(r *RabbitMQ) {
		r.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(r *RabbitMQ) {
		r.connTimeout = timeout
	}
}

// Prefetch - сколько неподтвержденных сообщений брокер отдает одному консьюмеру.
func Prefetch(n int) Option {
	return func(r *RabbitMQ) {
		if n > 0 {
			r.prefetch = n
		}
	}
}
