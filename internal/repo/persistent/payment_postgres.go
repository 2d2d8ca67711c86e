package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/postgres"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	paymentsTable = "payments"

	// Columns
	idColumn                    = "id"
	dealIDColumn                = "deal_id"
	policyIDColumn              = "policy_id"
	initiatorUserIDColumn       = "initiator_user_id"
	amountColumn                = "amount"
	currencyColumn              = "currency"
	statusColumn                = "status"
	paymentTypeColumn           = "payment_type"
	dueDateColumn               = "due_date"
	processedAtColumn           = "processed_at"
	confirmationReferenceColumn = "confirmation_reference"
	descriptionColumn           = "description"
	createdAtColumn             = "created_at"
	updatedAtColumn             = "updated_at"
)

var paymentColumns = []string{
	idColumn,
	dealIDColumn,
	policyIDColumn,
	initiatorUserIDColumn,
	amountColumn,
	currencyColumn,
	statusColumn,
	paymentTypeColumn,
	dueDateColumn,
	processedAtColumn,
	confirmationReferenceColumn,
	descriptionColumn,
	createdAtColumn,
	updatedAtColumn,
}

type PaymentRepo struct {
	*postgres.Postgres
}

func NewPaymentRepo(pg *postgres.Postgres) *PaymentRepo {
	return &PaymentRepo{pg}
}

func (r *PaymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	sql, args, err := r.Builder.
		Insert(paymentsTable).
		Columns(paymentColumns...).
		Values(
			p.ID,
			p.DealID,
			p.PolicyID,
			p.InitiatorUserID,
			p.Amount,
			p.Currency,
			p.Status,
			p.PaymentType,
			p.DueDate,
			p.ProcessedAt,
			p.ConfirmationReference,
			p.Description,
			p.CreatedAt,
			p.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("PaymentRepo - Create - r.Builder.ToSql: %w", err)
	}

	// Pool / Tx
	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PaymentRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	sql, args, err := r.Builder.
		Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("PaymentRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	p, err := scanPayment(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("PaymentRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("PaymentRepo - GetByID - executor.QueryRow: %w", err)
	}

	return p, nil
}

// Update перезаписывает все изменяемые поля; id и created_at не трогаются.
func (r *PaymentRepo) Update(ctx context.Context, p *entity.Payment) error {
	sql, args, err := r.Builder.
		Update(paymentsTable).
		Set(amountColumn, p.Amount).
		Set(currencyColumn, p.Currency).
		Set(statusColumn, p.Status).
		Set(paymentTypeColumn, p.PaymentType).
		Set(dueDateColumn, p.DueDate).
		Set(processedAtColumn, p.ProcessedAt).
		Set(confirmationReferenceColumn, p.ConfirmationReference).
		Set(descriptionColumn, p.Description).
		Set(updatedAtColumn, p.UpdatedAt).
		Where(squirrel.Eq{idColumn: p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("PaymentRepo - Update - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("PaymentRepo - Update - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("PaymentRepo - Update: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *PaymentRepo) List(ctx context.Context, filter dto.PaymentFilter) ([]*entity.Payment, error) {
	query := r.Builder.
		Select(paymentColumns...).
		From(paymentsTable).
		OrderBy(createdAtColumn + " DESC").
		Limit(uint64(filter.Limit)).   //nolint:gosec // normalized by the caller
		Offset(uint64(filter.Offset)) //nolint:gosec // normalized by the caller

	if where := listCriteria(filter); len(where) > 0 {
		query = query.Where(where)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("PaymentRepo - List - query.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("PaymentRepo - List - executor.Query: %w", err)
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0, filter.Limit)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("PaymentRepo - List - rows.Scan: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PaymentRepo - List - rows.Err: %w", err)
	}

	return payments, nil
}

// listCriteria - AND по всем заданным полям; пустой фильтр - пустой список условий.
func listCriteria(filter dto.PaymentFilter) squirrel.And {
	where := squirrel.And{}

	if filter.DealID != nil {
		where = append(where, squirrel.Eq{dealIDColumn: *filter.DealID})
	}
	if filter.PolicyID != nil {
		where = append(where, squirrel.Eq{policyIDColumn: *filter.PolicyID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		where = append(where, squirrel.Eq{statusColumn: statuses})
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		where = append(where, squirrel.Eq{paymentTypeColumn: types})
	}
	if filter.FromDate != nil {
		where = append(where, squirrel.GtOrEq{createdAtColumn: *filter.FromDate})
	}
	if filter.ToDate != nil {
		where = append(where, squirrel.LtOrEq{createdAtColumn: *filter.ToDate})
	}

	return where
}

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment

	err := row.Scan(
		&p.ID,
		&p.DealID,
		&p.PolicyID,
		&p.InitiatorUserID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.PaymentType,
		&p.DueDate,
		&p.ProcessedAt,
		&p.ConfirmationReference,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
