package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/crm-payments/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

// Коды ошибок в теле ответа.
const (
	CodeValidation        = "validation_error"
	CodeInvalidPayload    = "invalid_payload"
	CodeInvalidTransition = "invalid_status_transition"
	CodePaymentNotFound   = "payment_not_found"
	CodeExportNotFound    = "export_not_found"
	CodeStaleUpdate       = "stale_update"
	CodeInvalidSignature  = "invalid_signature"
	CodeUnsupportedEvent  = "unsupported_event"
	CodeInternal          = "internal_error"
)

// classify maps a use case error to an HTTP status and error body.
// ErrInvalidPayload is checked first: webhook payload errors may also carry a validation reason.
func classify(err error) (int, response.Error) {
	var (
		transition *errs.InvalidStatusTransitionError
		validation *errs.ValidationError
	)

	switch {
	case errors.Is(err, errs.ErrInvalidPayload):
		body := response.Error{Error: CodeInvalidPayload, Message: errs.ErrInvalidPayload.Error()}
		if errors.As(err, &validation) {
			body.Message = validation.Error()
		}

		return http.StatusBadRequest, body
	case errors.As(err, &transition):
		return http.StatusBadRequest, response.Error{
			Error:   CodeInvalidTransition,
			Message: transition.Error(),
			Current: transition.From,
			Target:  transition.To,
		}
	case errors.As(err, &validation):
		return http.StatusBadRequest, response.Error{Error: CodeValidation, Message: validation.Error()}
	case errors.Is(err, errs.ErrPaymentNotFound):
		return http.StatusNotFound, response.Error{Error: CodePaymentNotFound}
	case errors.Is(err, errs.ErrExportNotFound):
		return http.StatusNotFound, response.Error{Error: CodeExportNotFound}
	case errors.Is(err, errs.ErrStaleUpdate):
		return http.StatusConflict, response.Error{Error: CodeStaleUpdate, Message: "payment was modified by someone else"}
	case errors.Is(err, errs.ErrInvalidSignature):
		return http.StatusUnauthorized, response.Error{Error: CodeInvalidSignature}
	case errors.Is(err, errs.ErrUnsupportedEvent):
		return http.StatusBadRequest, response.Error{Error: CodeUnsupportedEvent}
	default:
		return http.StatusInternalServerError, response.Error{Error: CodeInternal}
	}
}

// errorResponse пишет ответ по ошибке use case. Неожиданные ошибки логируются с op.
func (r *V1) errorResponse(ctx *fiber.Ctx, err error, op string) error {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		r.logger.Error(err, "restapi - v1 - %s", op)
	}

	return ctx.Status(status).JSON(body)
}
