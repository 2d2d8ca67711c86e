package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/internal/usecase/payment"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

type WebhookUseCase struct {
	payments usecase.PaymentUseCase
	secret   string

	logger logger.Interface
}

func New(payments usecase.PaymentUseCase, secret string, l logger.Interface) *WebhookUseCase {
	return &WebhookUseCase{
		payments: payments,
		secret:   secret,
		logger:   l,
	}
}

func (uc *WebhookUseCase) Handle(ctx context.Context, req dto.WebhookRequest) error {
	// 1. обязательные поля конверта
	if strings.TrimSpace(req.Event) == "" || !req.HasPayload() || strings.TrimSpace(req.Signature) == "" {
		return fmt.Errorf("WebhookUseCase - Handle: %w", errs.ErrInvalidPayload)
	}

	// 2. подпись
	ok, err := verify(uc.secret, req.Event, req.Payload, req.Signature)
	if err != nil {
		return fmt.Errorf("WebhookUseCase - Handle - verify: %w: %v", errs.ErrInvalidPayload, err)
	}
	if !ok {
		uc.logger.Warn("webhook %q rejected: signature mismatch", req.Event)

		return fmt.Errorf("WebhookUseCase - Handle: %w", errs.ErrInvalidSignature)
	}

	// 3. диспетчеризация по типу события
	switch req.Event {
	case entity.EventPaymentCreated:
		return uc.created(ctx, req.Payload)
	case entity.EventPaymentUpdated:
		return uc.updated(ctx, req.Payload)
	default:
		return fmt.Errorf("WebhookUseCase - Handle - %q: %w", req.Event, errs.ErrUnsupportedEvent)
	}
}

func (uc *WebhookUseCase) created(ctx context.Context, payload []byte) error {
	var req dto.PaymentCreate
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("WebhookUseCase - created - json.Unmarshal: %w: %v", errs.ErrInvalidPayload, err)
	}

	if err := payment.ValidateCreate(req); err != nil {
		return fmt.Errorf("WebhookUseCase - created - payment.ValidateCreate: %w: %v", errs.ErrInvalidPayload, err)
	}

	resp, err := uc.payments.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("WebhookUseCase - created - uc.payments.Create: %w", err)
	}

	uc.logger.Info("webhook payment.created accepted, payment %s", resp.ID)

	return nil
}

func (uc *WebhookUseCase) updated(ctx context.Context, payload []byte) error {
	fields, err := decodeFields(payload)
	if err != nil {
		return fmt.Errorf("WebhookUseCase - updated - decodeFields: %w: %v", errs.ErrInvalidPayload, err)
	}

	raw, ok := fields["paymentId"].(string)
	if !ok {
		return fmt.Errorf("WebhookUseCase - updated - paymentId is required: %w", errs.ErrInvalidPayload)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("WebhookUseCase - updated - uuid.Parse: %w: %v", errs.ErrInvalidPayload, err)
	}

	version, err := extractVersion(fields)
	if err != nil {
		return fmt.Errorf("WebhookUseCase - updated - extractVersion: %w: %v", errs.ErrInvalidPayload, err)
	}

	// неизвестные поля игнорируются
	var patch dto.PaymentUpdate
	if err := json.Unmarshal(withoutVersion(fields), &patch); err != nil {
		return fmt.Errorf("WebhookUseCase - updated - json.Unmarshal: %w: %v", errs.ErrInvalidPayload, err)
	}
	if err := payment.ValidateUpdate(patch); err != nil {
		return fmt.Errorf("WebhookUseCase - updated - payment.ValidateUpdate: %w: %v", errs.ErrInvalidPayload, err)
	}

	if _, err := uc.payments.Update(ctx, id, patch, &version); err != nil {
		return fmt.Errorf("WebhookUseCase - updated - uc.payments.Update: %w", err)
	}

	uc.logger.Info("webhook payment.updated accepted, payment %s", id)

	return nil
}

func decodeFields(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("payload must be an object")
	}

	return fields, nil
}

// extractVersion: updatedAt (RFC 3339) важнее revision (epoch ms, число или строка).
func extractVersion(fields map[string]any) (time.Time, error) {
	if raw, ok := fields["updatedAt"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return time.Time{}, fmt.Errorf("updatedAt must be a string")
		}

		version, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}

		return version, nil
	}

	if raw, ok := fields["revision"]; ok && raw != nil {
		var text string
		switch v := raw.(type) {
		case json.Number:
			text = v.String()
		case string:
			text = strings.TrimSpace(v)
		default:
			return time.Time{}, fmt.Errorf("revision must be a number or a numeric string")
		}

		ms, err := cast.ToInt64E(text)
		if err != nil {
			return time.Time{}, err
		}

		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("updatedAt or revision is required")
}

// withoutVersion убирает поля версии: они уже разобраны и не входят в патч.
func withoutVersion(fields map[string]any) []byte {
	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "updatedAt" || k == "revision" {
			continue
		}
		patch[k] = v
	}

	// map из json.Decoder всегда сериализуется
	data, _ := json.Marshal(patch)

	return data
}
