package v1

import (
	"time"

	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

const _defaultHeartbeat = 15 * time.Second

func NewPaymentRoutes(
	apiGroup fiber.Router,
	payments usecase.PaymentUseCase,
	webhooks usecase.WebhookUseCase,
	exports usecase.ExportUseCase,
	m *metrics.Metrics,
	l logger.Interface,
	heartbeat time.Duration,
) {
	if heartbeat <= 0 {
		heartbeat = _defaultHeartbeat
	}

	r := &V1{
		payments:  payments,
		webhooks:  webhooks,
		exports:   exports,
		heartbeat: heartbeat,
		metrics:   m,
		logger:    l,
	}

	{
		// выгрузки раньше /payments/:id
		apiGroup.Get("/payments/export", r.requestExport)
		apiGroup.Get("/payments/export/:jobId", r.getExportStatus)

		apiGroup.Get("/payments", r.listPayments)
		apiGroup.Post("/payments", r.createPayment)
		apiGroup.Get("/payments/:id", r.getPayment)
		apiGroup.Patch("/payments/:id", r.updatePayment)
		apiGroup.Post("/payments/:id/status", r.updatePaymentStatus)

		apiGroup.Get("/streams/payments", r.streamPayments)

		apiGroup.Post("/webhooks/crm", r.crmWebhook)
	}
}
