package payment

import (
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// toEntity заполняет значения по умолчанию для нового платежа.
func toEntity(req dto.PaymentCreate, now time.Time) *entity.Payment {
	return &entity.Payment{
		ID:              uuid.New(),
		DealID:          *req.DealID,
		PolicyID:        req.PolicyID,
		InitiatorUserID: *req.InitiatorUserID,
		Amount:          *req.Amount,
		Currency:        entity.Currency,
		Status:          entity.StatusPending,
		PaymentType:     req.PaymentType,
		DueDate:         req.DueDate,
		Description:     req.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func toResponse(p *entity.Payment, history []*entity.PaymentHistory) *dto.PaymentResponse {
	resp := &dto.PaymentResponse{
		ID:                    p.ID,
		DealID:                p.DealID,
		PolicyID:              p.PolicyID,
		InitiatorUserID:       p.InitiatorUserID,
		Amount:                p.Amount,
		Currency:              p.Currency,
		Status:                p.Status,
		PaymentType:           p.PaymentType,
		DueDate:               p.DueDate,
		ProcessedAt:           p.ProcessedAt,
		ConfirmationReference: p.ConfirmationReference,
		Description:           p.Description,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		History:               make([]dto.PaymentHistoryResponse, 0, len(history)),
	}

	for _, h := range history {
		resp.History = append(resp.History, dto.PaymentHistoryResponse{
			ID:          h.ID,
			Status:      h.Status,
			Amount:      h.Amount,
			ChangedAt:   h.ChangedAt,
			Description: h.Description,
		})
	}

	return resp
}

// newHistory: описание - комментарий, если он не пустой, иначе тип события.
func newHistory(p *entity.Payment, amount decimal.Decimal, eventType, comment string, now time.Time) *entity.PaymentHistory {
	description := eventType
	if comment != "" {
		description = comment
	}

	return &entity.PaymentHistory{
		PaymentID:   p.ID,
		Status:      p.Status,
		Amount:      amount,
		ChangedAt:   now,
		Description: &description,
	}
}

func toBusEvent(eventType string, p *entity.Payment, amount decimal.Decimal, metadata map[string]any, now time.Time) entity.PaymentEvent {
	return entity.PaymentEvent{
		EventType:  eventType,
		PaymentID:  p.ID,
		DealID:     p.DealID,
		Status:     p.Status,
		Amount:     &amount,
		OccurredAt: now,
		Metadata:   metadata,
	}
}

func toStreamEvent(eventType string, p *entity.Payment, now time.Time) entity.StreamEvent {
	return entity.StreamEvent{
		Type:       eventType,
		PaymentID:  p.ID,
		Status:     p.Status,
		Amount:     p.Amount,
		OccurredAt: now,
		DealID:     p.DealID,
	}
}

// statusMetadata returns nil when nothing was supplied.
func statusMetadata(req dto.PaymentStatusChange) map[string]any {
	metadata := make(map[string]any, 3)

	if req.ActualDate != nil {
		metadata[entity.MetaActualDate] = *req.ActualDate
	}
	if ref := text(req.ConfirmationReference); ref != "" {
		metadata[entity.MetaConfirmationReference] = ref
	}
	if comment := text(req.Comment); comment != "" {
		metadata[entity.MetaComment] = comment
	}

	if len(metadata) == 0 {
		return nil
	}

	return metadata
}

// text возвращает "" для nil и строк из одних пробелов.
func text(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return ""
	}

	return *s
}
