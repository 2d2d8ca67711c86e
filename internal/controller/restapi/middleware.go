package restapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/gofiber/fiber/v2"
)

// metricsMiddleware считает запросы по шаблону маршрута, а не по пути.
func metricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()

		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError

			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		route := ctx.Route().Path
		m.HTTPRequests.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(ctx.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}
