package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type brokerMock struct {
	publishFn func(ctx context.Context, queue string, body []byte) error
}

func (m *brokerMock) Publish(ctx context.Context, queue string, body []byte) error {
	return m.publishFn(ctx, queue, body)
}

func TestPublishJob(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	var gotQueue string
	var gotBody []byte
	p := NewExportJobPublisher(&brokerMock{publishFn: func(_ context.Context, queue string, body []byte) error {
		gotQueue, gotBody = queue, body
		return nil
	}}, "payments.exports", m)

	jobID := uuid.New()
	err := p.PublishJob(context.Background(), entity.ExportJobMessage{
		JobID:   jobID,
		Format:  entity.FormatCSV,
		Filters: json.RawMessage(`{"format":"csv"}`),
		Storage: entity.ExportStorage{Bucket: "b", URLTTLSeconds: 60},
	})
	if err != nil {
		t.Fatalf("PublishJob() error = %v", err)
	}

	if gotQueue != "payments.exports" {
		t.Errorf("queue = %s", gotQueue)
	}

	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["jobId"] != jobID.String() {
		t.Errorf("jobId = %v", decoded["jobId"])
	}
	storage := decoded["storage"].(map[string]any)
	if storage["urlTtl"] != float64(60) {
		t.Errorf("urlTtl = %v, want 60", storage["urlTtl"])
	}
	if testutil.ToFloat64(m.BusPublished.WithLabelValues("payments.exports", metrics.ResultOK)) != 1 {
		t.Error("publish not counted")
	}
}

func TestPublishStatusFailure(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	p := NewExportStatusPublisher(&brokerMock{publishFn: func(context.Context, string, []byte) error {
		return errors.New("channel/connection is not open")
	}}, "payments.exports.status", m)

	if err := p.PublishStatus(context.Background(), entity.ExportStatusMessage{JobID: uuid.New(), Status: "done"}); err == nil {
		t.Fatal("PublishStatus() error = nil")
	}
	if testutil.ToFloat64(m.BusPublished.WithLabelValues("payments.exports.status", metrics.ResultFailed)) != 1 {
		t.Error("failure not counted")
	}
}
