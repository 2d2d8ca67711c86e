package postgres

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type Option func(*Postgres)

func MaxPoolSize(size int) Option {
	return func(p *Postgres) {
		p.maxPoolSize = size
	}
}

func ConnAttempts(attempts int) Option {
	return func(p *Postgres) {
		p.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Postgres) {
		p.connTimeout = timeout
	}
}

// TxIsolation: "read committed", "repeatable read" или "serializable".
// Неизвестное значение оставляет read committed.
func TxIsolation(level string) Option {
	return func(p *Postgres) {
		switch iso := pgx.TxIsoLevel(strings.ToLower(strings.TrimSpace(level))); iso {
		case pgx.ReadCommitted, pgx.RepeatableRead, pgx.Serializable:
			p.txIsoLevel = iso
		}
	}
}
