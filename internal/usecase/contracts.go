package usecase

import (
	"context"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
)

type (
	PaymentUseCase interface {
		List(ctx context.Context, filter dto.PaymentFilter) ([]*dto.PaymentResponse, error)
		Get(ctx context.Context, id uuid.UUID) (*dto.PaymentResponse, error)
		Create(ctx context.Context, req dto.PaymentCreate) (*dto.PaymentResponse, error)
		Update(ctx context.Context, id uuid.UUID, patch dto.PaymentUpdate, expectedVersion *time.Time) (*dto.PaymentResponse, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, req dto.PaymentStatusChange) (*dto.PaymentResponse, error)
		AbsorbBusEvent(ctx context.Context, event entity.PaymentEvent) error
		StreamEvents(ctx context.Context) <-chan entity.StreamEvent
	}

	WebhookUseCase interface {
		Handle(ctx context.Context, req dto.WebhookRequest) error
	}

	ExportUseCase interface {
		RequestExport(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error)
		GetStatus(ctx context.Context, jobID uuid.UUID) (*dto.ExportResponse, error)
		HandleStatusMessage(ctx context.Context, msg entity.ExportStatusMessage) error
		FailStuckJobs(ctx context.Context, stuckAfter time.Duration) (int64, error)
	}

	ExportWorkerUseCase interface {
		Process(ctx context.Context, msg entity.ExportJobMessage) error
	}
)
