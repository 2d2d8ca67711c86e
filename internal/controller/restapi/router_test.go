package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/config"
	"github.com/andreyxaxa/crm-payments/internal/controller/amqp"
	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/internal/repo/repotest"
	"github.com/andreyxaxa/crm-payments/internal/usecase/export"
	"github.com/andreyxaxa/crm-payments/internal/usecase/payment"
	"github.com/andreyxaxa/crm-payments/internal/usecase/webhook"
	"github.com/andreyxaxa/crm-payments/pkg/fanout"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/andreyxaxa/crm-payments/pkg/rabbitmq"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const webhookSecret = "crm-shared-secret"

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type busRecorder struct {
	mu     sync.Mutex
	events []entity.PaymentEvent
}

func (b *busRecorder) Publish(_ context.Context, event entity.PaymentEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	return nil
}

func (b *busRecorder) published() []entity.PaymentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]entity.PaymentEvent(nil), b.events...)
}

type queueRecorder struct {
	mu   sync.Mutex
	jobs []entity.ExportJobMessage
}

func (q *queueRecorder) PublishJob(_ context.Context, msg entity.ExportJobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, msg)

	return nil
}

// statusQueue подает доставки в контроллер статусов, как очередь payments.exports.status.
type statusQueue struct {
	deliveries chan amqp091.Delivery
	acked      chan uint64
}

func (q *statusQueue) Consume(ctx context.Context, _ string, handler rabbitmq.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-q.deliveries:
			handler(ctx, d)
		}
	}
}

func (q *statusQueue) Ack(tag uint64, _ bool) error {
	q.acked <- tag
	return nil
}

func (q *statusQueue) Nack(uint64, bool, bool) error {
	return errors.New("unexpected nack")
}

func (q *statusQueue) Reject(uint64, bool) error {
	return errors.New("unexpected reject")
}

type env struct {
	app      *fiber.App
	payments *repotest.Payments
	history  *repotest.History
	jobs     *repotest.ExportJobs
	bus      *busRecorder
	queue    *queueRecorder
	status   *statusQueue
	sink     *fanout.Sink[entity.StreamEvent]
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		app:      fiber.New(),
		payments: repotest.NewPayments(),
		history:  repotest.NewHistory(),
		jobs:     repotest.NewExportJobs(),
		bus:      &busRecorder{},
		queue:    &queueRecorder{},
		status:   &statusQueue{deliveries: make(chan amqp091.Delivery), acked: make(chan uint64, 1)},
		sink:     fanout.New[entity.StreamEvent](logger.Nop()),
	}
	t.Cleanup(e.sink.Close)

	l := logger.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	payments := payment.New(e.payments, e.history, &repotest.Transactor{}, e.bus, e.sink, l)
	webhooks := webhook.New(payments, webhookSecret, l)
	exports := export.New(e.jobs, repotest.NewArtifacts(), e.queue, entity.ExportStorage{
		Bucket:        "crm-exports",
		Prefix:        "payments/exports",
		URLTTLSeconds: 86400,
	}, l)

	statusController := amqp.NewStatusController(e.status, "payments.exports.status", exports, m, l, time.Second)
	if err := statusController.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = statusController.Shutdown(context.Background()) })

	cfg := &config.Config{}
	cfg.Metrics.Enabled = true
	cfg.Stream.Heartbeat = time.Minute

	NewRouter(e.app, cfg, payments, webhooks, exports, m, reg, l)

	return e
}

func (e *env) seed(status entity.PaymentStatus) *entity.Payment {
	p := &entity.Payment{
		ID:              uuid.New(),
		DealID:          uuid.New(),
		InitiatorUserID: uuid.New(),
		Amount:          decimal.NewFromInt(1000),
		Currency:        entity.Currency,
		Status:          status,
		PaymentType:     entity.TypeInitial,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	e.payments.Put(p)

	return p
}

func (e *env) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}

	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Current string `json:"current"`
	Target  string `json:"target"`
}

func TestCreatePaymentPublishesAndStreams(t *testing.T) {
	e := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := e.sink.Subscribe(ctx)

	deal, user := uuid.New(), uuid.New()
	body := `{"dealId":"` + deal.String() + `","initiatorUserId":"` + user.String() + `","amount":2500,"currency":"RUB","paymentType":"INITIAL"}`

	status, data := e.do(t, http.MethodPost, "/api/payments", body)
	if status != http.StatusCreated {
		t.Fatalf("status = %d (%s)", status, data)
	}

	created := decode[dto.PaymentResponse](t, data)
	if created.Status != entity.StatusPending || created.DealID != deal || !created.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("created = %+v", created)
	}

	events := e.bus.published()
	if len(events) != 1 || events[0].EventType != entity.EventPaymentCreated || events[0].PaymentID != created.ID {
		t.Errorf("bus = %+v", events)
	}

	select {
	case ev := <-stream:
		if ev.PaymentID != created.ID || ev.Type != entity.EventPaymentCreated {
			t.Errorf("stream event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no stream event")
	}

	select {
	case ev := <-stream:
		t.Errorf("unexpected second stream event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPatchAmount(t *testing.T) {
	e := newEnv(t)
	p := e.seed(entity.StatusPending)

	status, data := e.do(t, http.MethodPatch, "/api/v1/payments/"+p.ID.String(), `{"amount":150,"currency":"RUB"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, data)
	}

	updated := decode[dto.PaymentResponse](t, data)
	if !updated.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("amount = %s, want 150", updated.Amount)
	}
	if len(e.history.For(p.ID)) != 1 || len(updated.History) != 1 {
		t.Errorf("history: stored %d, returned %d, want 1", len(e.history.For(p.ID)), len(updated.History))
	}

	events := e.bus.published()
	if len(events) != 1 || events[0].EventType != entity.EventPaymentUpdated ||
		events[0].Amount == nil || !events[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("bus = %+v", events)
	}
}

func TestPatchForeignCurrency(t *testing.T) {
	e := newEnv(t)
	p := e.seed(entity.StatusPending)

	status, data := e.do(t, http.MethodPatch, "/api/v1/payments/"+p.ID.String(), `{"currency":"USD"}`)
	if status != http.StatusBadRequest || decode[errorBody](t, data).Error != "validation_error" {
		t.Fatalf("got %d %s, want 400 validation_error", status, data)
	}

	if e.payments.Updates != 0 || len(e.history.For(p.ID)) != 0 || len(e.bus.published()) != 0 {
		t.Errorf("persisted %d updates, %d history rows, %d bus events; want none",
			e.payments.Updates, len(e.history.For(p.ID)), len(e.bus.published()))
	}
}

func TestStatusTransitions(t *testing.T) {
	e := newEnv(t)

	pending := e.seed(entity.StatusPending)
	status, data := e.do(t, http.MethodPost, "/api/v1/payments/"+pending.ID.String()+"/status", `{"status":"PROCESSING","comment":"in flight"}`)
	if status != http.StatusOK || decode[dto.PaymentResponse](t, data).Status != entity.StatusProcessing {
		t.Errorf("PENDING -> PROCESSING: %d %s", status, data)
	}

	cancelled := e.seed(entity.StatusCancelled)
	status, data = e.do(t, http.MethodPost, "/api/v1/payments/"+cancelled.ID.String()+"/status", `{"status":"PROCESSING"}`)
	body := decode[errorBody](t, data)
	if status != http.StatusBadRequest || body.Error != "invalid_status_transition" || body.Current != "CANCELLED" || body.Target != "PROCESSING" {
		t.Errorf("CANCELLED -> PROCESSING: %d %s", status, data)
	}

	processing := e.seed(entity.StatusProcessing)
	status, data = e.do(t, http.MethodPost, "/api/v1/payments/"+processing.ID.String()+"/status", `{"status":"CANCELLED"}`)
	if status != http.StatusBadRequest || decode[errorBody](t, data).Error != "validation_error" {
		t.Errorf("PROCESSING -> CANCELLED without comment: %d %s", status, data)
	}
}

func TestWebhookCreated(t *testing.T) {
	e := newEnv(t)

	payload := `{"deal_id":"e1b8f44c-7c39-4e5c-8cb7-60c79c7c7bb5","initiator_user_id":"d3c0f842-8794-4f0e-b52e-4f219d2ef0c0","amount":1500,"currency":"RUB","payment_type":"INITIAL"}`
	signature, err := webhook.Sign(webhookSecret, entity.EventPaymentCreated, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}

	request := func(sig string) string {
		return `{"event":"payment.created","payload":` + payload + `,"signature":"` + sig + `"}`
	}

	status, data := e.do(t, http.MethodPost, "/api/v1/webhooks/crm", request(signature))
	if status != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", status, data)
	}

	stored, err := e.payments.List(context.Background(), dto.PaymentFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].DealID.String() != "e1b8f44c-7c39-4e5c-8cb7-60c79c7c7bb5" {
		t.Fatalf("stored = %+v", stored)
	}

	// одна измененная hex-цифра
	flipped := []byte(signature)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	status, data = e.do(t, http.MethodPost, "/api/v1/webhooks/crm", request(string(flipped)))
	if status != http.StatusUnauthorized || decode[errorBody](t, data).Error != "invalid_signature" {
		t.Errorf("altered signature: %d %s", status, data)
	}

	stored, _ = e.payments.List(context.Background(), dto.PaymentFilter{Limit: 10})
	if len(stored) != 1 {
		t.Errorf("stored %d payments after rejected webhook, want 1", len(stored))
	}
}

func TestExportStatusFromQueue(t *testing.T) {
	e := newEnv(t)
	deal := uuid.New()

	status, data := e.do(t, http.MethodGet, "/api/v1/payments/export?format=csv&dealId="+deal.String(), "")
	if status != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", status, data)
	}

	job := decode[dto.ExportResponse](t, data)
	if job.Status != entity.ExportProcessing || job.DownloadURL != nil {
		t.Fatalf("job = %+v", job)
	}

	e.queue.mu.Lock()
	queued := len(e.queue.jobs)
	e.queue.mu.Unlock()
	if queued != 1 {
		t.Fatalf("queued %d job messages, want 1", queued)
	}

	url := "https://storage.test/payments/export-" + job.JobID.String() + ".csv"
	e.status.deliveries <- amqp091.Delivery{
		Acknowledger: e.status,
		DeliveryTag:  1,
		Body:         []byte(`{"jobId":"` + job.JobID.String() + `","status":"DONE","downloadUrl":"` + url + `"}`),
	}

	select {
	case <-e.status.acked:
	case <-time.After(time.Second):
		t.Fatal("status message not acked")
	}

	status, data = e.do(t, http.MethodGet, "/api/v1/payments/export/"+job.JobID.String(), "")
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, data)
	}

	done := decode[dto.ExportResponse](t, data)
	if done.Status != entity.ExportDone || done.DownloadURL == nil || *done.DownloadURL != url {
		t.Errorf("job = %+v", done)
	}
}

func TestOpsEndpoints(t *testing.T) {
	e := newEnv(t)

	status, data := e.do(t, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Errorf("healthz: %d %s", status, data)
	}

	e.do(t, http.MethodGet, "/api/v1/payments/"+uuid.NewString(), "")

	status, data = e.do(t, http.MethodGet, "/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
	if !strings.Contains(string(data), `crm_payments_http_requests_total{method="GET",route="/api/v1/payments/:id",status="404"} 1`) {
		t.Errorf("metrics output lacks the request counter:\n%s", data)
	}
}
