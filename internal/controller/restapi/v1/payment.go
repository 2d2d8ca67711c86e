package v1

import (
	"net/http"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	List payments
// @Description Payments ordered by createdAt desc, each with its history
// @Tags 		payments
// @Produce 	json
// @Param 		dealId   query string false "Deal ID(uuid)"
// @Param 		policyId query string false "Policy ID(uuid)"
// @Param 		status   query []string false "Status filter, repeatable"
// @Param 		type     query []string false "Payment type filter, repeatable"
// @Param 		fromDate query string false "Created from(RFC 3339)"
// @Param 		toDate   query string false "Created to(RFC 3339)"
// @Param 		limit    query int false "Page size(default 50, max 200)"
// @Param 		offset   query int false "Offset"
// @Success 	200 {array}  dto.PaymentResponse
// @Failure 	400 {object} response.Error "validation_error"
// @Failure 	500 {object} response.Error "internal_error"
// @Router 		/payments [get]
func (r *V1) listPayments(ctx *fiber.Ctx) error {
	filter, err := paymentFilter(ctx)
	if err != nil {
		return r.errorResponse(ctx, err, "listPayments")
	}

	payments, err := r.payments.List(ctx.UserContext(), filter)
	if err != nil {
		return r.errorResponse(ctx, err, "listPayments")
	}

	return ctx.Status(http.StatusOK).JSON(payments)
}

// @Summary 	Get payment
// @Tags 		payments
// @Produce 	json
// @Param 		id path string true "Payment ID(uuid)"
// @Success 	200 {object} dto.PaymentResponse
// @Failure 	400 {object} response.Error "validation_error"
// @Failure 	404 {object} response.Error "payment_not_found"
// @Router 		/payments/{id} [get]
func (r *V1) getPayment(ctx *fiber.Ctx) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return r.errorResponse(ctx, err, "getPayment")
	}

	payment, err := r.payments.Get(ctx.UserContext(), id)
	if err != nil {
		return r.errorResponse(ctx, err, "getPayment")
	}

	return ctx.Status(http.StatusOK).JSON(payment)
}

// @Summary 	Create payment
// @Description Creates a PENDING payment, publishes payment.created
// @Tags 		payments
// @Accept 		json
// @Produce 	json
// @Param 		request body dto.PaymentCreate true "Payment"
// @Success 	201 {object} dto.PaymentResponse
// @Failure 	400 {object} response.Error "validation_error"
// @Router 		/payments [post]
func (r *V1) createPayment(ctx *fiber.Ctx) error {
	var req dto.PaymentCreate
	if err := decodeBody(ctx, &req); err != nil {
		return r.errorResponse(ctx, err, "createPayment")
	}

	payment, err := r.payments.Create(ctx.UserContext(), req)
	if err != nil {
		return r.errorResponse(ctx, err, "createPayment")
	}

	return ctx.Status(http.StatusCreated).JSON(payment)
}

// @Summary 	Update payment
// @Description Partial update. updatedAt in the body is the version the client has seen
// @Tags 		payments
// @Accept 		json
// @Produce 	json
// @Param 		id      path string            true "Payment ID(uuid)"
// @Param 		request body dto.PaymentUpdate true "Changed fields"
// @Success 	200 {object} dto.PaymentResponse
// @Failure 	400 {object} response.Error "validation_error"
// @Failure 	404 {object} response.Error "payment_not_found"
// @Failure 	409 {object} response.Error "stale_update"
// @Router 		/payments/{id} [patch]
func (r *V1) updatePayment(ctx *fiber.Ctx) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return r.errorResponse(ctx, err, "updatePayment")
	}

	var patch dto.PaymentUpdate
	if err := decodeBody(ctx, &patch); err != nil {
		return r.errorResponse(ctx, err, "updatePayment")
	}

	payment, err := r.payments.Update(ctx.UserContext(), id, patch, patch.UpdatedAt)
	if err != nil {
		return r.errorResponse(ctx, err, "updatePayment")
	}

	return ctx.Status(http.StatusOK).JSON(payment)
}

// @Summary 	Change payment status
// @Tags 		payments
// @Accept 		json
// @Produce 	json
// @Param 		id      path string                  true "Payment ID(uuid)"
// @Param 		request body dto.PaymentStatusChange true "Target status"
// @Success 	200 {object} dto.PaymentResponse
// @Failure 	400 {object} response.Error "validation_error or invalid_status_transition"
// @Failure 	404 {object} response.Error "payment_not_found"
// @Router 		/payments/{id}/status [post]
func (r *V1) updatePaymentStatus(ctx *fiber.Ctx) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return r.errorResponse(ctx, err, "updatePaymentStatus")
	}

	var req dto.PaymentStatusChange
	if err := decodeBody(ctx, &req); err != nil {
		return r.errorResponse(ctx, err, "updatePaymentStatus")
	}

	payment, err := r.payments.UpdateStatus(ctx.UserContext(), id, req)
	if err != nil {
		return r.errorResponse(ctx, err, "updatePaymentStatus")
	}

	return ctx.Status(http.StatusOK).JSON(payment)
}
