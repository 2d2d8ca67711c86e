package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentHistory is append-only.
type PaymentHistory struct {
	ID          int64
	PaymentID   uuid.UUID
	Status      PaymentStatus
	Amount      decimal.Decimal
	ChangedAt   time.Time
	Description *string
}
