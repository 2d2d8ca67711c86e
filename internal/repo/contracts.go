package repo

import (
	"context"
	"io"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
)

type (
	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}

	PaymentRepo interface {
		Create(ctx context.Context, payment *entity.Payment) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
		Update(ctx context.Context, payment *entity.Payment) error
		List(ctx context.Context, filter dto.PaymentFilter) ([]*entity.Payment, error)
	}

	PaymentHistoryRepo interface {
		Create(ctx context.Context, entry *entity.PaymentHistory) error
		ListByPaymentIDs(ctx context.Context, ids uuid.UUIDs) (map[uuid.UUID][]*entity.PaymentHistory, error)
	}

	ExportJobRepo interface {
		Create(ctx context.Context, job *entity.ExportJob) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.ExportJob, error)
		Update(ctx context.Context, job *entity.ExportJob) error
		FailStuck(ctx context.Context, startedBefore time.Time, reason string) (int64, error)
	}

	ExportArtifactRepo interface {
		// пустой bucket - бакет по умолчанию
		Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, size int64) error
		PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
		Delete(ctx context.Context, bucket, key string) error
	}
)
