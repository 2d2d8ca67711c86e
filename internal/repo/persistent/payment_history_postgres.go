package persistent

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/postgres"
	"github.com/google/uuid"
)

const (
	// Table
	historyTable = "payment_history"

	// Columns
	historyIDColumn          = "id"
	historyPaymentIDColumn   = "payment_id"
	historyStatusColumn      = "status"
	historyAmountColumn      = "amount"
	historyChangedAtColumn   = "changed_at"
	historyDescriptionColumn = "description"
)

type PaymentHistoryRepo struct {
	*postgres.Postgres
}

func NewPaymentHistoryRepo(pg *postgres.Postgres) *PaymentHistoryRepo {
	return &PaymentHistoryRepo{pg}
}

// Create вставляет запись и заполняет entry.ID.
func (r *PaymentHistoryRepo) Create(ctx context.Context, entry *entity.PaymentHistory) error {
	sql, args, err := r.Builder.
		Insert(historyTable).
		Columns(
			historyPaymentIDColumn,
			historyStatusColumn,
			historyAmountColumn,
			historyChangedAtColumn,
			historyDescriptionColumn,
		).
		Values(
			entry.PaymentID,
			entry.Status,
			entry.Amount,
			entry.ChangedAt,
			entry.Description,
		).
		Suffix("RETURNING " + historyIDColumn).
		ToSql()
	if err != nil {
		return fmt.Errorf("PaymentHistoryRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	err = executor.QueryRow(ctx, sql, args...).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("PaymentHistoryRepo - Create - executor.QueryRow: %w", err)
	}

	return nil
}

// ListByPaymentIDs returns histories grouped by payment, each ordered by changed_at then id.
func (r *PaymentHistoryRepo) ListByPaymentIDs(ctx context.Context, ids uuid.UUIDs) (map[uuid.UUID][]*entity.PaymentHistory, error) {
	result := make(map[uuid.UUID][]*entity.PaymentHistory, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sql, args, err := r.Builder.
		Select(
			historyIDColumn,
			historyPaymentIDColumn,
			historyStatusColumn,
			historyAmountColumn,
			historyChangedAtColumn,
			historyDescriptionColumn,
		).
		From(historyTable).
		Where(squirrel.Eq{historyPaymentIDColumn: []uuid.UUID(ids)}).
		OrderBy(historyChangedAtColumn+" ASC", historyIDColumn+" ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("PaymentHistoryRepo - ListByPaymentIDs - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("PaymentHistoryRepo - ListByPaymentIDs - executor.Query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry entity.PaymentHistory
		err = rows.Scan(
			&entry.ID,
			&entry.PaymentID,
			&entry.Status,
			&entry.Amount,
			&entry.ChangedAt,
			&entry.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("PaymentHistoryRepo - ListByPaymentIDs - rows.Scan: %w", err)
		}
		result[entry.PaymentID] = append(result[entry.PaymentID], &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PaymentHistoryRepo - ListByPaymentIDs - rows.Err: %w", err)
	}

	return result, nil
}
