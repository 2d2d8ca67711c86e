package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/andreyxaxa/crm-payments/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	CRM webhook
// @Description Signed CRM event: signature = hex(HMAC-SHA256(secret, event + ":" + canonical payload))
// @Tags 		webhooks
// @Accept 		json
// @Produce 	json
// @Param 		request body dto.WebhookRequest true "Signed event"
// @Success 	202 {object} response.Accepted
// @Failure 	400 {object} response.Error "invalid_payload, unsupported_event or validation_error"
// @Failure 	401 {object} response.Error "invalid_signature"
// @Failure 	404 {object} response.Error "payment_not_found"
// @Failure 	409 {object} response.Error "stale_update"
// @Router 		/webhooks/crm [post]
func (r *V1) crmWebhook(ctx *fiber.Ctx) error {
	var req dto.WebhookRequest

	err := json.Unmarshal(ctx.Body(), &req)
	if err != nil {
		err = fmt.Errorf("%w: %v", errs.ErrInvalidPayload, err)
	} else {
		err = r.webhooks.Handle(ctx.UserContext(), req)
	}

	if err != nil {
		status, _ := classify(err)
		r.metrics.Webhooks.WithLabelValues(eventLabel(req.Event), strconv.Itoa(status)).Inc()

		return r.errorResponse(ctx, err, "crmWebhook")
	}

	r.metrics.Webhooks.WithLabelValues(eventLabel(req.Event), strconv.Itoa(http.StatusAccepted)).Inc()

	return ctx.Status(http.StatusAccepted).JSON(response.Accepted{Status: "accepted"})
}

// eventLabel не пускает произвольные строки в лейблы метрик.
func eventLabel(event string) string {
	switch event {
	case entity.EventPaymentCreated, entity.EventPaymentUpdated:
		return event
	default:
		return "other"
	}
}
