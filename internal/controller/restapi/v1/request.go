package v1

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

func pathID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, errs.Validation(name, "must be a UUID")
	}

	return id, nil
}

func decodeBody(ctx *fiber.Ctx, v any) error {
	if err := json.Unmarshal(ctx.Body(), v); err != nil {
		return errs.Validation("body", fmt.Sprintf("malformed JSON: %v", err))
	}

	return nil
}

// queryValues собирает повторяющиеся параметры и значения через запятую.
func queryValues(ctx *fiber.Ctx, names ...string) []string {
	var values []string

	args := ctx.Context().QueryArgs()
	for _, name := range names {
		for _, raw := range args.PeekMulti(name) {
			for _, v := range strings.Split(string(raw), ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
		}
	}

	return values
}

func queryUUID(ctx *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errs.Validation(name, "must be a UUID")
	}

	return &id, nil
}

func queryTime(ctx *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return nil, nil
	}

	t, err := cast.ToTimeE(raw)
	if err != nil {
		return nil, errs.Validation(name, "must be an ISO-8601 date-time")
	}

	return &t, nil
}

func queryInt(ctx *fiber.Ctx, name string) (*int, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errs.Validation(name, "must be an integer")
	}

	return &n, nil
}

func queryStatuses(ctx *fiber.Ctx) ([]entity.PaymentStatus, error) {
	var statuses []entity.PaymentStatus

	for _, v := range queryValues(ctx, "status", "statuses") {
		status, ok := entity.ParsePaymentStatus(v)
		if !ok {
			return nil, errs.Validation("status", fmt.Sprintf("unknown status %q", v))
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func queryTypes(ctx *fiber.Ctx) ([]entity.PaymentType, error) {
	var types []entity.PaymentType

	for _, v := range queryValues(ctx, "type", "types") {
		paymentType, ok := entity.ParsePaymentType(v)
		if !ok {
			return nil, errs.Validation("type", fmt.Sprintf("unknown type %q", v))
		}
		types = append(types, paymentType)
	}

	return types, nil
}

// exportQuery разбирает параметры, общие для списка и выгрузки.
func exportQuery(ctx *fiber.Ctx) (dto.ExportRequest, error) {
	var (
		req dto.ExportRequest
		err error
	)

	req.Format = ctx.Query("format")

	if req.DealID, err = queryUUID(ctx, "dealId"); err != nil {
		return req, err
	}
	if req.PolicyID, err = queryUUID(ctx, "policyId"); err != nil {
		return req, err
	}
	if req.Statuses, err = queryStatuses(ctx); err != nil {
		return req, err
	}
	if req.Types, err = queryTypes(ctx); err != nil {
		return req, err
	}
	if req.FromDate, err = queryTime(ctx, "fromDate"); err != nil {
		return req, err
	}
	if req.ToDate, err = queryTime(ctx, "toDate"); err != nil {
		return req, err
	}
	if req.Limit, err = queryInt(ctx, "limit"); err != nil {
		return req, err
	}
	if req.Offset, err = queryInt(ctx, "offset"); err != nil {
		return req, err
	}

	return req, nil
}

func paymentFilter(ctx *fiber.Ctx) (dto.PaymentFilter, error) {
	req, err := exportQuery(ctx)
	if err != nil {
		return dto.PaymentFilter{}, err
	}

	filter := dto.PaymentFilter{
		DealID:   req.DealID,
		PolicyID: req.PolicyID,
		Statuses: req.Statuses,
		Types:    req.Types,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
	}
	if req.Limit != nil {
		filter.Limit = *req.Limit
	}
	if req.Offset != nil {
		filter.Offset = *req.Offset
	}

	return filter, nil
}
