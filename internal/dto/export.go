package dto

import (
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
)

type (
	ExportRequest struct {
		Format   string
		DealID   *uuid.UUID
		PolicyID *uuid.UUID
		Statuses []entity.PaymentStatus
		Types    []entity.PaymentType
		FromDate *time.Time
		ToDate   *time.Time
		Limit    *int
		Offset   *int
	}

	ExportResponse struct {
		JobID       uuid.UUID           `json:"jobId"`
		Status      entity.ExportStatus `json:"status"`
		DownloadURL *string             `json:"downloadUrl"`
	}
)

// ExportFilters - сохраненные параметры выгрузки. Порядок полей задает порядок ключей в JSON.
type ExportFilters struct {
	DealID   *uuid.UUID             `json:"dealId,omitempty"`
	PolicyID *uuid.UUID             `json:"policyId,omitempty"`
	Statuses []entity.PaymentStatus `json:"statuses,omitempty"`
	Types    []entity.PaymentType   `json:"types,omitempty"`
	FromDate *time.Time             `json:"fromDate,omitempty"`
	ToDate   *time.Time             `json:"toDate,omitempty"`
	Limit    *int                   `json:"limit,omitempty"`
	Offset   *int                   `json:"offset,omitempty"`
	Format   entity.ExportFormat    `json:"format"`
}

// PaymentFilter converts stored export filters into a list query.
func (f ExportFilters) PaymentFilter() PaymentFilter {
	filter := PaymentFilter{
		DealID:   f.DealID,
		PolicyID: f.PolicyID,
		Statuses: f.Statuses,
		Types:    f.Types,
		FromDate: f.FromDate,
		ToDate:   f.ToDate,
	}
	if f.Limit != nil {
		filter.Limit = *f.Limit
	}
	if f.Offset != nil {
		filter.Offset = *f.Offset
	}

	return filter
}
