package v1

import (
	"time"

	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
)

type V1 struct {
	payments usecase.PaymentUseCase
	webhooks usecase.WebhookUseCase
	exports  usecase.ExportUseCase

	heartbeat time.Duration

	metrics *metrics.Metrics
	logger  logger.Interface
}
