package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure"
	"github.com/andreyxaxa/crm-payments/internal/repo"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/andreyxaxa/crm-payments/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const _defaultPublishTimeout = 5 * time.Second

type PaymentUseCase struct {
	paymentRepo repo.PaymentRepo
	historyRepo repo.PaymentHistoryRepo
	transactor  repo.Transactor

	publisher infrastructure.PaymentEventPublisher
	sink      infrastructure.StreamSink

	publishTimeout time.Duration
	now            func() time.Time

	logger logger.Interface
}

func New(
	paymentRepo repo.PaymentRepo,
	historyRepo repo.PaymentHistoryRepo,
	transactor repo.Transactor,
	publisher infrastructure.PaymentEventPublisher,
	sink infrastructure.StreamSink,
	l logger.Interface,
	opts ...Option,
) *PaymentUseCase {
	uc := &PaymentUseCase{
		paymentRepo:    paymentRepo,
		historyRepo:    historyRepo,
		transactor:     transactor,
		publisher:      publisher,
		sink:           sink,
		publishTimeout: _defaultPublishTimeout,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         l,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *PaymentUseCase) List(ctx context.Context, filter dto.PaymentFilter) ([]*dto.PaymentResponse, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - List - normalizeFilter: %w", err)
	}

	payments, err := uc.paymentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - List - uc.paymentRepo.List: %w", err)
	}

	ids := make(uuid.UUIDs, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}

	histories, err := uc.historyRepo.ListByPaymentIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - List - uc.historyRepo.ListByPaymentIDs: %w", err)
	}

	result := make([]*dto.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, toResponse(p, histories[p.ID]))
	}

	return result, nil
}

func (uc *PaymentUseCase) Get(ctx context.Context, id uuid.UUID) (*dto.PaymentResponse, error) {
	p, err := uc.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Get - uc.load: %w", err)
	}

	resp, err := uc.withHistory(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Get - uc.withHistory: %w", err)
	}

	return resp, nil
}

func (uc *PaymentUseCase) Create(ctx context.Context, req dto.PaymentCreate) (*dto.PaymentResponse, error) {
	// 1. валидация
	if err := ValidateCreate(req); err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Create - ValidateCreate: %w", err)
	}

	now := uc.now()
	p := toEntity(req, now)
	entry := newHistory(p, p.Amount, entity.EventPaymentCreated, "", now)

	// 2. платеж и история в одной транзакции
	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.paymentRepo.Create(ctx, p); err != nil {
			return fmt.Errorf("PaymentUseCase - Create - uc.paymentRepo.Create: %w", err)
		}
		if err := uc.historyRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("PaymentUseCase - Create - uc.historyRepo.Create: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Create - uc.transactor.WithinTransaction: %w", err)
	}

	// 3. шина, затем стрим
	uc.publish(ctx, toBusEvent(entity.EventPaymentCreated, p, p.Amount, nil, now))
	uc.sink.Emit(toStreamEvent(entity.EventPaymentCreated, p, now))

	uc.logger.Info("payment %s created for deal %s", p.ID, p.DealID)

	return toResponse(p, []*entity.PaymentHistory{entry}), nil
}

func (uc *PaymentUseCase) Update(
	ctx context.Context,
	id uuid.UUID,
	patch dto.PaymentUpdate,
	expectedVersion *time.Time,
) (*dto.PaymentResponse, error) {
	// 1. валидация до любых обращений к хранилищу
	if err := ValidateUpdate(patch); err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Update - ValidateUpdate: %w", err)
	}

	p, err := uc.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Update - uc.load: %w", err)
	}

	// 2. оптимистичная блокировка по updated_at
	if expectedVersion != nil && p.UpdatedAt.After(*expectedVersion) {
		return nil, fmt.Errorf("PaymentUseCase - Update: %w", errs.ErrStaleUpdate)
	}

	// 3. применяем только присланные поля
	changed := applyPatch(p, patch)
	comment := text(patch.Comment)

	if !changed && comment == "" {
		resp, err := uc.withHistory(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("PaymentUseCase - Update - uc.withHistory: %w", err)
		}

		return resp, nil
	}

	now := uc.now()
	p.UpdatedAt = now

	amount := p.Amount
	if patch.Amount != nil {
		amount = *patch.Amount
	}

	err = uc.saveWithHistory(ctx, p, newHistory(p, amount, entity.EventPaymentUpdated, comment, now))
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Update - uc.saveWithHistory: %w", err)
	}

	uc.publish(ctx, toBusEvent(entity.EventPaymentUpdated, p, amount, nil, now))
	uc.sink.Emit(toStreamEvent(entity.EventPaymentUpdated, p, now))

	uc.logger.Info("payment %s updated for deal %s", p.ID, p.DealID)

	resp, err := uc.withHistory(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - Update - uc.withHistory: %w", err)
	}

	return resp, nil
}

func (uc *PaymentUseCase) UpdateStatus(ctx context.Context, id uuid.UUID, req dto.PaymentStatusChange) (*dto.PaymentResponse, error) {
	if err := ValidateStatusChange(req, uc.now()); err != nil {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus - ValidateStatusChange: %w", err)
	}

	p, err := uc.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus - uc.load: %w", err)
	}

	current, target := p.Status, req.Status

	// 1. тот же статус - ничего не делаем, история не пишется
	if current == target {
		uc.logger.Debug(fmt.Sprintf("payment %s already in status %s, skipping", p.ID, target))

		resp, err := uc.withHistory(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("PaymentUseCase - UpdateStatus - uc.withHistory: %w", err)
		}

		return resp, nil
	}

	// 2. матрица переходов
	if !current.CanTransitionTo(target) {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus: %w",
			&errs.InvalidStatusTransitionError{From: string(current), To: string(target)})
	}

	// 3. обязательные поля для конкретных статусов
	if target == entity.StatusCompleted && req.ActualDate == nil {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus: %w",
			errs.Validation("actualDate", "is required for COMPLETED"))
	}
	comment := text(req.Comment)
	if target == entity.StatusCancelled && comment == "" {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus: %w",
			errs.Validation("comment", "is required for CANCELLED"))
	}

	now := uc.now()

	p.Status = target
	if req.ActualDate != nil {
		actual := *req.ActualDate
		p.ProcessedAt = &actual
	} else if target == entity.StatusCompleted && p.ProcessedAt == nil {
		p.ProcessedAt = &now
	}
	if ref := text(req.ConfirmationReference); ref != "" {
		p.ConfirmationReference = &ref
	}
	p.UpdatedAt = now

	err = uc.saveWithHistory(ctx, p, newHistory(p, p.Amount, entity.EventPaymentStatusChanged, comment, now))
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus - uc.saveWithHistory: %w", err)
	}

	uc.publish(ctx, toBusEvent(entity.EventPaymentStatusChanged, p, p.Amount, statusMetadata(req), now))
	uc.sink.Emit(toStreamEvent(entity.EventPaymentStatusChanged, p, now))

	uc.logger.Info("payment %s moved %s -> %s", p.ID, current, target)

	resp, err := uc.withHistory(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("PaymentUseCase - UpdateStatus - uc.withHistory: %w", err)
	}

	return resp, nil
}

// AbsorbBusEvent применяет событие, пришедшее из шины. Обратно в шину ничего не публикуется.
func (uc *PaymentUseCase) AbsorbBusEvent(ctx context.Context, event entity.PaymentEvent) error {
	if event.PaymentID == uuid.Nil {
		uc.logger.Warn("bus event %q without paymentId, skipping", event.EventType)

		return nil
	}

	// создание уже зафиксировано тем, кто его опубликовал
	if strings.EqualFold(event.EventType, entity.EventPaymentCreated) {
		uc.logger.Debug(fmt.Sprintf("skipping %s for payment %s", event.EventType, event.PaymentID))

		return nil
	}

	p, err := uc.paymentRepo.GetByID(ctx, event.PaymentID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Warn("bus event %s refers to unknown payment %s", event.EventType, event.PaymentID)

			return nil
		}

		return fmt.Errorf("PaymentUseCase - AbsorbBusEvent - uc.paymentRepo.GetByID: %w", err)
	}

	now := uc.now()
	applyBusEvent(p, event, now)

	amount := p.Amount
	if event.Amount != nil {
		amount = *event.Amount
	}

	err = uc.saveWithHistory(ctx, p, newHistory(p, amount, event.EventType, "", now))
	if err != nil {
		return fmt.Errorf("PaymentUseCase - AbsorbBusEvent - uc.saveWithHistory: %w", err)
	}

	uc.sink.Emit(toStreamEvent(event.EventType, p, now))

	uc.logger.Info("payment %s absorbed %s, status %s", p.ID, event.EventType, p.Status)

	return nil
}

func (uc *PaymentUseCase) StreamEvents(ctx context.Context) <-chan entity.StreamEvent {
	return uc.sink.Subscribe(ctx)
}

func (uc *PaymentUseCase) load(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	p, err := uc.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}

		return nil, fmt.Errorf("uc.paymentRepo.GetByID: %w", err)
	}

	return p, nil
}

func (uc *PaymentUseCase) withHistory(ctx context.Context, p *entity.Payment) (*dto.PaymentResponse, error) {
	histories, err := uc.historyRepo.ListByPaymentIDs(ctx, uuid.UUIDs{p.ID})
	if err != nil {
		return nil, fmt.Errorf("uc.historyRepo.ListByPaymentIDs: %w", err)
	}

	return toResponse(p, histories[p.ID]), nil
}

func (uc *PaymentUseCase) saveWithHistory(ctx context.Context, p *entity.Payment, entry *entity.PaymentHistory) error {
	return uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.paymentRepo.Update(ctx, p); err != nil {
			return fmt.Errorf("uc.paymentRepo.Update: %w", err)
		}
		if err := uc.historyRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("uc.historyRepo.Create: %w", err)
		}

		return nil
	})
}

// publish - best-effort после коммита: ошибка только логируется.
func (uc *PaymentUseCase) publish(ctx context.Context, event entity.PaymentEvent) {
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.publishTimeout)
	defer cancel()

	if err := uc.publisher.Publish(publishCtx, event); err != nil {
		uc.logger.Warn("PaymentUseCase - publish - %s for payment %s: %v", event.EventType, event.PaymentID, err)
	}
}

func amountEqual(a, b decimal.Decimal) bool {
	return a.Cmp(b) == 0
}
