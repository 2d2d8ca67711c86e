package restapi

import (
	"net/http"

	"github.com/andreyxaxa/crm-payments/config"
	v1 "github.com/andreyxaxa/crm-payments/internal/controller/restapi/v1"
	"github.com/andreyxaxa/crm-payments/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @title CRM payments
// @version 1.0.0
// @host localhost:8080
// @BasePath /api/v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	payments usecase.PaymentUseCase,
	webhooks usecase.WebhookUseCase,
	exports usecase.ExportUseCase,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	l logger.Interface,
) {
	app.Use(recover.New())
	app.Use(metricsMiddleware(m))

	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Ops
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(response.Health{Status: "ok"})
	})
	if cfg.Metrics.Enabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// Routers
	for _, prefix := range []string{"/api/v1", "/api"} {
		v1.NewPaymentRoutes(app.Group(prefix), payments, webhooks, exports, m, l, cfg.Stream.Heartbeat)
	}
}
