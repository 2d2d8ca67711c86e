package infrastructure

import (
	"context"
	"io"

	"github.com/andreyxaxa/crm-payments/internal/entity"
)

type (
	PaymentEventPublisher interface {
		Publish(ctx context.Context, event entity.PaymentEvent) error
	}

	ExportJobPublisher interface {
		PublishJob(ctx context.Context, msg entity.ExportJobMessage) error
	}

	ExportStatusPublisher interface {
		PublishStatus(ctx context.Context, msg entity.ExportStatusMessage) error
	}

	StreamSink interface {
		Emit(event entity.StreamEvent)
		Subscribe(ctx context.Context) <-chan entity.StreamEvent
	}

	ExportRenderer interface {
		Render(w io.Writer, format entity.ExportFormat, payments []*entity.Payment) error
	}
)
