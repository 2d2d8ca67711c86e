package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventPaymentCreated       = "payment.created"
	EventPaymentUpdated       = "payment.updated"
	EventPaymentStatusChanged = "payment.status_changed"
)

// Ключи metadata события смены статуса.
const (
	MetaActualDate            = "actualDate"
	MetaConfirmationReference = "confirmationReference"
	MetaComment               = "comment"
)

// PaymentEvent - конверт топика payments.events.
// Status и Amount опциональны у входящих событий.
type PaymentEvent struct {
	EventType  string           `json:"eventType"`
	PaymentID  uuid.UUID        `json:"paymentId"`
	DealID     uuid.UUID        `json:"dealId"`
	Status     PaymentStatus    `json:"status,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

type StreamEvent struct {
	Type       string          `json:"type"`
	PaymentID  uuid.UUID       `json:"paymentId"`
	Status     PaymentStatus   `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurredAt"`
	DealID     uuid.UUID       `json:"dealId"`
}

type ExportStorage struct {
	Bucket  string `json:"bucket"`
	Prefix  string `json:"prefix"`
	BaseURL string `json:"baseUrl"`
	// URLTTLSeconds - время жизни ссылки на скачивание в секундах.
	URLTTLSeconds int64 `json:"urlTtl"`
}

// URLTTL returns the download URL lifetime.
func (s ExportStorage) URLTTL() time.Duration {
	return time.Duration(s.URLTTLSeconds) * time.Second
}

type ExportJobMessage struct {
	JobID       uuid.UUID       `json:"jobId"`
	RequestedAt time.Time       `json:"requestedAt"`
	Format      ExportFormat    `json:"format"`
	Filters     json.RawMessage `json:"filters"`
	Storage     ExportStorage   `json:"storage"`
}

type ExportStatusMessage struct {
	JobID       uuid.UUID  `json:"jobId"`
	Status      string     `json:"status,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	StoragePath string     `json:"storagePath,omitempty"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
