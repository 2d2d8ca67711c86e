package v1

import (
	"context"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type paymentsMock struct {
	listFn         func(ctx context.Context, filter dto.PaymentFilter) ([]*dto.PaymentResponse, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*dto.PaymentResponse, error)
	createFn       func(ctx context.Context, req dto.PaymentCreate) (*dto.PaymentResponse, error)
	updateFn       func(ctx context.Context, id uuid.UUID, patch dto.PaymentUpdate, expectedVersion *time.Time) (*dto.PaymentResponse, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, req dto.PaymentStatusChange) (*dto.PaymentResponse, error)
	streamFn       func(ctx context.Context) <-chan entity.StreamEvent
}

func (m *paymentsMock) List(ctx context.Context, filter dto.PaymentFilter) ([]*dto.PaymentResponse, error) {
	return m.listFn(ctx, filter)
}

func (m *paymentsMock) Get(ctx context.Context, id uuid.UUID) (*dto.PaymentResponse, error) {
	return m.getFn(ctx, id)
}

func (m *paymentsMock) Create(ctx context.Context, req dto.PaymentCreate) (*dto.PaymentResponse, error) {
	return m.createFn(ctx, req)
}

func (m *paymentsMock) Update(ctx context.Context, id uuid.UUID, patch dto.PaymentUpdate, v *time.Time) (*dto.PaymentResponse, error) {
	return m.updateFn(ctx, id, patch, v)
}

func (m *paymentsMock) UpdateStatus(ctx context.Context, id uuid.UUID, req dto.PaymentStatusChange) (*dto.PaymentResponse, error) {
	return m.updateStatusFn(ctx, id, req)
}

func (m *paymentsMock) AbsorbBusEvent(context.Context, entity.PaymentEvent) error {
	return nil
}

func (m *paymentsMock) StreamEvents(ctx context.Context) <-chan entity.StreamEvent {
	return m.streamFn(ctx)
}

type webhooksMock struct {
	handleFn func(ctx context.Context, req dto.WebhookRequest) error
}

func (m *webhooksMock) Handle(ctx context.Context, req dto.WebhookRequest) error {
	return m.handleFn(ctx, req)
}

type exportsMock struct {
	requestFn func(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error)
	statusFn  func(ctx context.Context, jobID uuid.UUID) (*dto.ExportResponse, error)
}

func (m *exportsMock) RequestExport(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	return m.requestFn(ctx, req)
}

func (m *exportsMock) GetStatus(ctx context.Context, jobID uuid.UUID) (*dto.ExportResponse, error) {
	return m.statusFn(ctx, jobID)
}

func (m *exportsMock) HandleStatusMessage(context.Context, entity.ExportStatusMessage) error {
	return nil
}

func (m *exportsMock) FailStuckJobs(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type testApp struct {
	app      *fiber.App
	payments *paymentsMock
	webhooks *webhooksMock
	exports  *exportsMock
	metrics  *metrics.Metrics
}

func newTestApp() *testApp {
	ta := &testApp{
		app:      fiber.New(),
		payments: &paymentsMock{},
		webhooks: &webhooksMock{},
		exports:  &exportsMock{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}

	NewPaymentRoutes(ta.app.Group("/api/v1"), ta.payments, ta.webhooks, ta.exports, ta.metrics, logger.Nop(), time.Minute)

	return ta
}
