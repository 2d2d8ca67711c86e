package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/postgres"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	exportsTable = "payment_exports"

	// Columns
	exportIDColumn          = "id"
	exportStatusColumn      = "status"
	exportFormatColumn      = "format"
	exportFiltersColumn     = "filters"
	exportDownloadURLColumn = "download_url"
	exportStoragePathColumn = "storage_path"
	exportErrorColumn       = "error"
	exportCreatedAtColumn   = "created_at"
	exportUpdatedAtColumn   = "updated_at"
	exportCompletedAtColumn = "completed_at"
)

type ExportJobRepo struct {
	*postgres.Postgres
}

func NewExportJobRepo(pg *postgres.Postgres) *ExportJobRepo {
	return &ExportJobRepo{pg}
}

func (r *ExportJobRepo) Create(ctx context.Context, job *entity.ExportJob) error {
	sql, args, err := r.Builder.
		Insert(exportsTable).
		Columns(
			exportIDColumn,
			exportStatusColumn,
			exportFormatColumn,
			exportFiltersColumn,
			exportCreatedAtColumn,
			exportUpdatedAtColumn,
		).
		Values(
			job.ID,
			job.Status,
			job.Format,
			string(job.Filters),
			job.CreatedAt,
			job.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ExportJobRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ExportJobRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *ExportJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ExportJob, error) {
	sql, args, err := r.Builder.
		Select(
			exportIDColumn,
			exportStatusColumn,
			exportFormatColumn,
			exportFiltersColumn+"::text",
			exportDownloadURLColumn,
			exportStoragePathColumn,
			exportErrorColumn,
			exportCreatedAtColumn,
			exportUpdatedAtColumn,
			exportCompletedAtColumn,
		).
		From(exportsTable).
		Where(squirrel.Eq{exportIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ExportJobRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var (
		job     entity.ExportJob
		filters string
	)
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&job.ID,
		&job.Status,
		&job.Format,
		&filters,
		&job.DownloadURL,
		&job.StoragePath,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ExportJobRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("ExportJobRepo - GetByID - executor.QueryRow: %w", err)
	}
	job.Filters = []byte(filters)

	return &job, nil
}

func (r *ExportJobRepo) Update(ctx context.Context, job *entity.ExportJob) error {
	sql, args, err := r.Builder.
		Update(exportsTable).
		Set(exportStatusColumn, job.Status).
		Set(exportDownloadURLColumn, job.DownloadURL).
		Set(exportStoragePathColumn, job.StoragePath).
		Set(exportErrorColumn, job.Error).
		Set(exportUpdatedAtColumn, job.UpdatedAt).
		Set(exportCompletedAtColumn, job.CompletedAt).
		Where(squirrel.Eq{exportIDColumn: job.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ExportJobRepo - Update - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ExportJobRepo - Update - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ExportJobRepo - Update: %w", errs.ErrRecordNotFound)
	}

	return nil
}

// FailStuck переводит в failed задачи, которые висят в processing с момента до startedBefore.
func (r *ExportJobRepo) FailStuck(ctx context.Context, startedBefore time.Time, reason string) (int64, error) {
	now := time.Now().UTC()

	sql, args, err := r.Builder.
		Update(exportsTable).
		Set(exportStatusColumn, entity.ExportFailed).
		Set(exportErrorColumn, reason).
		Set(exportUpdatedAtColumn, now).
		Set(exportCompletedAtColumn, now).
		Where(squirrel.And{
			squirrel.Eq{exportStatusColumn: string(entity.ExportProcessing)},
			squirrel.Lt{exportCreatedAtColumn: startedBefore},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ExportJobRepo - FailStuck - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("ExportJobRepo - FailStuck - executor.Exec: %w", err)
	}

	return tag.RowsAffected(), nil
}
