package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	// amount хранится как NUMERIC(18,2)
	_amountScale = 2
)

var _amountLimit = decimal.New(1, 18-_amountScale)

type Option func(*PaymentUseCase)

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(uc *PaymentUseCase) {
		uc.now = now
	}
}

func PublishTimeout(timeout time.Duration) Option {
	return func(uc *PaymentUseCase) {
		if timeout > 0 {
			uc.publishTimeout = timeout
		}
	}
}

// ValidateCreate checks every constraint of a create request.
func ValidateCreate(req dto.PaymentCreate) error {
	if err := dto.Validate(req); err != nil {
		return err
	}

	if req.Currency != entity.Currency {
		return errs.Validation("currency", fmt.Sprintf("must be %s", entity.Currency))
	}

	return validateAmount(*req.Amount)
}

func ValidateUpdate(patch dto.PaymentUpdate) error {
	if err := dto.Validate(patch); err != nil {
		return err
	}

	if patch.Currency != nil && *patch.Currency != entity.Currency {
		return errs.Validation("currency", fmt.Sprintf("must be %s", entity.Currency))
	}

	if patch.Amount != nil {
		return validateAmount(*patch.Amount)
	}

	return nil
}

// validateAmount: не больше двух знаков после запятой и 16 до нее.
// 1.50 и 1.500 принимаются, 1.005 - нет.
func validateAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(_amountScale)) {
		return errs.Validation("amount", fmt.Sprintf("must have at most %d decimal places", _amountScale))
	}
	if amount.Abs().GreaterThanOrEqual(_amountLimit) {
		return errs.Validation("amount", fmt.Sprintf("must be less than %s", _amountLimit))
	}

	return nil
}

func ValidateStatusChange(req dto.PaymentStatusChange, now time.Time) error {
	if err := dto.Validate(req); err != nil {
		return err
	}

	if req.ActualDate != nil && req.ActualDate.After(now) {
		return errs.Validation("actualDate", "must not be in the future")
	}

	return nil
}

// normalizeFilter: limit по умолчанию 50 и не больше 200, offset не меньше 0.
func normalizeFilter(filter dto.PaymentFilter) (dto.PaymentFilter, error) {
	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return filter, errs.Validation("fromDate", "must be before toDate")
	}

	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultLimit
	case filter.Limit > MaxLimit:
		filter.Limit = MaxLimit
	}

	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return filter, nil
}

// applyPatch reports whether any present field differs from the stored value.
func applyPatch(p *entity.Payment, patch dto.PaymentUpdate) bool {
	changed := false

	if patch.Amount != nil && !amountEqual(p.Amount, *patch.Amount) {
		p.Amount = *patch.Amount
		changed = true
	}
	if patch.Currency != nil && p.Currency != *patch.Currency {
		p.Currency = *patch.Currency
		changed = true
	}
	if patch.DueDate != nil && !timeEqual(p.DueDate, patch.DueDate) {
		due := *patch.DueDate
		p.DueDate = &due
		changed = true
	}
	if patch.ProcessedAt != nil && !timeEqual(p.ProcessedAt, patch.ProcessedAt) {
		processed := *patch.ProcessedAt
		p.ProcessedAt = &processed
		changed = true
	}
	if patch.PaymentType != nil && p.PaymentType != *patch.PaymentType {
		p.PaymentType = *patch.PaymentType
		changed = true
	}
	if patch.Description != nil && (p.Description == nil || *p.Description != *patch.Description) {
		description := *patch.Description
		p.Description = &description
		changed = true
	}

	return changed
}

func applyBusEvent(p *entity.Payment, event entity.PaymentEvent, now time.Time) {
	if event.Status.Valid() {
		p.Status = event.Status
	}
	if event.Amount != nil {
		p.Amount = *event.Amount
	}

	if raw, ok := event.Metadata[entity.MetaActualDate]; ok && raw != nil {
		if actual, err := cast.ToTimeE(raw); err == nil {
			p.ProcessedAt = &actual
		}
	}
	if raw, ok := event.Metadata[entity.MetaConfirmationReference].(string); ok && strings.TrimSpace(raw) != "" {
		ref := raw
		p.ConfirmationReference = &ref
	}

	p.UpdatedAt = now

	if event.Status == entity.StatusCompleted && p.ProcessedAt == nil {
		processed := now
		if !event.OccurredAt.IsZero() {
			processed = event.OccurredAt
		}
		p.ProcessedAt = &processed
	}
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(*b)
}
