package dto

import (
	"encoding/json"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	// PaymentCreate принимает snake_case и camelCase имена полей.
	PaymentCreate struct {
		DealID          *uuid.UUID         `json:"deal_id" validate:"required"`
		PolicyID        *uuid.UUID         `json:"policy_id,omitempty"`
		InitiatorUserID *uuid.UUID         `json:"initiator_user_id" validate:"required"`
		Amount          *decimal.Decimal   `json:"amount" validate:"required,gt=0"`
		Currency        string             `json:"currency" validate:"required"`
		PaymentType     entity.PaymentType `json:"payment_type" validate:"required,oneof=INITIAL INSTALLMENT REFUND COMMISSION"`
		DueDate         *time.Time         `json:"planned_date,omitempty"`
		Description     *string            `json:"description,omitempty" validate:"omitempty,max=1024"`
	}

	PaymentUpdate struct {
		Amount      *decimal.Decimal    `json:"amount,omitempty" validate:"omitempty,gt=0"`
		Currency    *string             `json:"currency,omitempty"`
		DueDate     *time.Time          `json:"dueDate,omitempty"`
		ProcessedAt *time.Time          `json:"processedAt,omitempty"`
		PaymentType *entity.PaymentType `json:"paymentType,omitempty" validate:"omitempty,oneof=INITIAL INSTALLMENT REFUND COMMISSION"`
		Description *string             `json:"description,omitempty" validate:"omitempty,max=1024"`
		Comment     *string             `json:"comment,omitempty" validate:"omitempty,max=1024"`
		// UpdatedAt - версия, которую видел клиент.
		UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	}

	PaymentStatusChange struct {
		Status                entity.PaymentStatus `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED FAILED CANCELLED"`
		ActualDate            *time.Time           `json:"actualDate,omitempty"`
		ConfirmationReference *string              `json:"confirmationReference,omitempty" validate:"omitempty,max=128"`
		Comment               *string              `json:"comment,omitempty" validate:"omitempty,max=1024"`
	}

	PaymentFilter struct {
		DealID   *uuid.UUID
		PolicyID *uuid.UUID
		Statuses []entity.PaymentStatus
		Types    []entity.PaymentType
		FromDate *time.Time
		ToDate   *time.Time
		Limit    int
		Offset   int
	}

	PaymentResponse struct {
		ID                    uuid.UUID                `json:"id"`
		DealID                uuid.UUID                `json:"dealId"`
		PolicyID              *uuid.UUID               `json:"policyId"`
		InitiatorUserID       uuid.UUID                `json:"initiatorUserId"`
		Amount                decimal.Decimal          `json:"amount"`
		Currency              string                   `json:"currency"`
		Status                entity.PaymentStatus     `json:"status"`
		PaymentType           entity.PaymentType       `json:"paymentType"`
		DueDate               *time.Time               `json:"dueDate"`
		ProcessedAt           *time.Time               `json:"processedAt"`
		ConfirmationReference *string                  `json:"confirmationReference"`
		Description           *string                  `json:"description"`
		CreatedAt             time.Time                `json:"createdAt"`
		UpdatedAt             time.Time                `json:"updatedAt"`
		History               []PaymentHistoryResponse `json:"history"`
	}

	PaymentHistoryResponse struct {
		ID          int64                `json:"id"`
		Status      entity.PaymentStatus `json:"status"`
		Amount      decimal.Decimal      `json:"amount"`
		ChangedAt   time.Time            `json:"changedAt"`
		Description *string              `json:"description"`
	}
)

func (p *PaymentCreate) UnmarshalJSON(data []byte) error {
	var raw struct {
		DealID               *uuid.UUID         `json:"deal_id"`
		DealIDAlias          *uuid.UUID         `json:"dealId"`
		PolicyID             *uuid.UUID         `json:"policy_id"`
		PolicyIDAlias        *uuid.UUID         `json:"policyId"`
		InitiatorUserID      *uuid.UUID         `json:"initiator_user_id"`
		InitiatorUserIDAlias *uuid.UUID         `json:"initiatorUserId"`
		Amount               *decimal.Decimal   `json:"amount"`
		Currency             string             `json:"currency"`
		PaymentType          entity.PaymentType `json:"payment_type"`
		PaymentTypeAlias     entity.PaymentType `json:"paymentType"`
		DueDate              *time.Time         `json:"planned_date"`
		DueDateAlias         *time.Time         `json:"dueDate"`
		Description          *string            `json:"description"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = PaymentCreate{
		DealID:          firstNonNil(raw.DealID, raw.DealIDAlias),
		PolicyID:        firstNonNil(raw.PolicyID, raw.PolicyIDAlias),
		InitiatorUserID: firstNonNil(raw.InitiatorUserID, raw.InitiatorUserIDAlias),
		Amount:          raw.Amount,
		Currency:        raw.Currency,
		PaymentType:     raw.PaymentType,
		DueDate:         firstNonNil(raw.DueDate, raw.DueDateAlias),
		Description:     raw.Description,
	}
	if p.PaymentType == "" {
		p.PaymentType = raw.PaymentTypeAlias
	}

	return nil
}

func firstNonNil[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}

	return nil
}
