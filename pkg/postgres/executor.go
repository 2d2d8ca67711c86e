package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

// Executor - общее подмножество pgxpool.Pool и pgx.Tx, которым пользуются репозитории.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// GetExecutor - транзакция из ctx, если она есть, иначе пул.
func (p *Postgres) GetExecutor(ctx context.Context) Executor {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}

	return p.Pool
}

// WithinTransaction выполняет f в транзакции с уровнем изоляции пула.
// Вложенный вызов переиспользует внешнюю транзакцию.
// pgx.BeginTxFunc откатывает транзакцию при ошибке f и коммитит иначе.
func (p *Postgres) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return f(ctx)
	}

	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{IsoLevel: p.txIsoLevel}, func(tx pgx.Tx) error {
		return f(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		return fmt.Errorf("Postgres - WithinTransaction - pgx.BeginTxFunc: %w", err)
	}

	return nil
}
