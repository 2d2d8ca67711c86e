package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/andreyxaxa/crm-payments/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rabbitmq/amqp091-go"
)

type ackRecorder struct {
	mu    sync.Mutex
	acked []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()

	return nil
}

func (a *ackRecorder) Nack(uint64, bool, bool) error {
	return errors.New("unexpected nack")
}

func (a *ackRecorder) Reject(uint64, bool) error {
	return errors.New("unexpected reject")
}

func (a *ackRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.acked)
}

// consumerMock отдает заготовленные доставки и ждет отмены.
type consumerMock struct {
	queue      string
	deliveries []amqp091.Delivery
}

func (m *consumerMock) Consume(ctx context.Context, queue string, handler rabbitmq.Handler) error {
	m.queue = queue
	for _, d := range m.deliveries {
		handler(ctx, d)
	}
	<-ctx.Done()

	return nil
}

type exportsMock struct {
	mu       sync.Mutex
	messages []entity.ExportStatusMessage
	err      error
}

func (m *exportsMock) RequestExport(context.Context, dto.ExportRequest) (*dto.ExportResponse, error) {
	return nil, nil
}

func (m *exportsMock) GetStatus(context.Context, uuid.UUID) (*dto.ExportResponse, error) {
	return nil, nil
}

func (m *exportsMock) HandleStatusMessage(_ context.Context, msg entity.ExportStatusMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)

	return m.err
}

func (m *exportsMock) FailStuckJobs(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type workerMock struct {
	processFn func(ctx context.Context, msg entity.ExportJobMessage) error
}

func (m *workerMock) Process(ctx context.Context, msg entity.ExportJobMessage) error {
	return m.processFn(ctx, msg)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("condition not met in time")
}

func TestStatusControllerAcksEverything(t *testing.T) {
	acks := &ackRecorder{}
	jobID := uuid.New()

	consumer := &consumerMock{deliveries: []amqp091.Delivery{
		{Acknowledger: acks, DeliveryTag: 1, Body: []byte(`{"jobId":"` + jobID.String() + `","status":"DONE","downloadUrl":"https://x/` + jobID.String() + `"}`)},
		{Acknowledger: acks, DeliveryTag: 2, Body: []byte(`not json`)},
	}}
	exports := &exportsMock{err: nil}

	c := NewStatusController(consumer, "payments.exports.status", exports, metrics.New(prometheus.NewRegistry()), logger.Nop(), time.Second)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown(context.Background())

	waitFor(t, func() bool { return acks.count() == 2 })

	exports.mu.Lock()
	defer exports.mu.Unlock()
	if len(exports.messages) != 1 || exports.messages[0].JobID != jobID || exports.messages[0].Status != "DONE" {
		t.Errorf("handled = %+v", exports.messages)
	}
	if consumer.queue != "payments.exports.status" {
		t.Errorf("queue = %s", consumer.queue)
	}
}

func TestJobControllerAcksFailedJobs(t *testing.T) {
	acks := &ackRecorder{}
	jobID := uuid.New()

	consumer := &consumerMock{deliveries: []amqp091.Delivery{
		{Acknowledger: acks, DeliveryTag: 5, Body: []byte(`{"jobId":"` + jobID.String() + `","format":"csv","filters":{"format":"csv"},"storage":{"urlTtl":60}}`)},
	}}

	var got entity.ExportJobMessage
	worker := &workerMock{processFn: func(_ context.Context, msg entity.ExportJobMessage) error {
		got = msg
		return errors.New("s3 down")
	}}

	c := NewJobController(consumer, "payments.exports", worker, metrics.New(prometheus.NewRegistry()), logger.Nop(), time.Second)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return acks.count() == 1 })

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if got.JobID != jobID || got.Storage.URLTTL() != time.Minute || string(got.Filters) != `{"format":"csv"}` {
		t.Errorf("job = %+v", got)
	}
}

func TestControllerStartTwice(t *testing.T) {
	c := NewJobController(&consumerMock{}, "q", &workerMock{}, metrics.New(prometheus.NewRegistry()), logger.Nop(), time.Second)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown(context.Background())

	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}
}

func TestDeliverOutlivesConsumerCancel(t *testing.T) {
	acks := &ackRecorder{}

	var handlerErr error
	worker := &workerMock{processFn: func(ctx context.Context, _ entity.ExportJobMessage) error {
		handlerErr = ctx.Err()
		if _, ok := ctx.Deadline(); !ok {
			t.Error("process context has no deadline")
		}
		return nil
	}}

	c := NewJobController(&consumerMock{}, "payments.exports", worker, metrics.New(prometheus.NewRegistry()), logger.Nop(), time.Second)

	consumerCtx, cancel := context.WithCancel(context.Background())
	cancel()

	c.deliver(consumerCtx, amqp091.Delivery{
		Acknowledger: acks,
		DeliveryTag:  7,
		Body:         []byte(`{"jobId":"` + uuid.NewString() + `","format":"csv"}`),
	})

	if handlerErr != nil {
		t.Errorf("process context error = %v, want nil", handlerErr)
	}
	if acks.count() != 1 {
		t.Errorf("acked %d deliveries, want 1", acks.count())
	}
}
