package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency - единственная поддерживаемая валюта.
const Currency = "RUB"

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "PENDING"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusCompleted  PaymentStatus = "COMPLETED"
	StatusFailed     PaymentStatus = "FAILED"
	StatusCancelled  PaymentStatus = "CANCELLED"
)

type PaymentType string

const (
	TypeInitial     PaymentType = "INITIAL"
	TypeInstallment PaymentType = "INSTALLMENT"
	TypeRefund      PaymentType = "REFUND"
	TypeCommission  PaymentType = "COMMISSION"
)

var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusProcessing, StatusCancelled},
	StatusCompleted:  {StatusCancelled},
	StatusCancelled:  {},
}

type Payment struct {
	ID                    uuid.UUID
	DealID                uuid.UUID
	PolicyID              *uuid.UUID
	InitiatorUserID       uuid.UUID
	Amount                decimal.Decimal
	Currency              string
	Status                PaymentStatus
	PaymentType           PaymentType
	DueDate               *time.Time
	ProcessedAt           *time.Time
	ConfirmationReference *string
	Description           *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (s PaymentStatus) Valid() bool {
	_, ok := transitions[s]

	return ok
}

// CanTransitionTo reports whether s -> target is in the transition matrix.
// Self-transitions are not part of the matrix.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}

	return false
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))

	return status, status.Valid()
}

func (t PaymentType) Valid() bool {
	switch t {
	case TypeInitial, TypeInstallment, TypeRefund, TypeCommission:
		return true
	}

	return false
}

func ParsePaymentType(s string) (PaymentType, bool) {
	t := PaymentType(strings.ToUpper(strings.TrimSpace(s)))

	return t, t.Valid()
}
