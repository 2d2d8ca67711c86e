package exportworker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/repo/repotest"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type rendererMock struct {
	renderFn func(w io.Writer, format entity.ExportFormat, payments []*entity.Payment) error
}

func (m *rendererMock) Render(w io.Writer, format entity.ExportFormat, payments []*entity.Payment) error {
	return m.renderFn(w, format, payments)
}

type statusRecorder struct {
	messages []entity.ExportStatusMessage
	err      error
}

func (r *statusRecorder) PublishStatus(_ context.Context, msg entity.ExportStatusMessage) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)

	return nil
}

// countingRenderer пишет число платежей и запоминает формат.
func countingRenderer(gotFormat *entity.ExportFormat, gotCount *int) *rendererMock {
	return &rendererMock{renderFn: func(w io.Writer, format entity.ExportFormat, payments []*entity.Payment) error {
		*gotFormat, *gotCount = format, len(payments)
		_, err := fmt.Fprintf(w, "%d", len(payments))
		return err
	}}
}

func seedPayments(repo *repotest.Payments, deal uuid.UUID, n int) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		repo.Put(&entity.Payment{
			ID:          uuid.New(),
			DealID:      deal,
			Amount:      decimal.NewFromInt(int64(100 + i)),
			Currency:    entity.Currency,
			Status:      entity.StatusPending,
			PaymentType: entity.TypeInstallment,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestProcessPagesThroughAllPayments(t *testing.T) {
	payments := repotest.NewPayments()
	deal := uuid.New()
	seedPayments(payments, deal, 450)
	seedPayments(payments, uuid.New(), 3)

	artifacts := repotest.NewArtifacts()
	statuses := &statusRecorder{}

	var format entity.ExportFormat
	var count int
	uc := New(payments, artifacts, countingRenderer(&format, &count), statuses, logger.Nop())

	jobID := uuid.New()
	err := uc.Process(context.Background(), entity.ExportJobMessage{
		JobID:   jobID,
		Format:  entity.FormatXLSX,
		Filters: []byte(`{"dealId":"` + deal.String() + `","format":"xlsx"}`),
		Storage: entity.ExportStorage{Bucket: "crm-exports", Prefix: "payments/exports", BaseURL: "https://files.example.com/"},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if count != 450 || format != entity.FormatXLSX {
		t.Errorf("rendered %d payments as %s, want 450 as xlsx", count, format)
	}

	key := "payments/exports/export-" + jobID.String() + ".xlsx"
	if string(artifacts.Objects[key]) != "450" {
		t.Errorf("object %s = %q", key, artifacts.Objects[key])
	}
	if artifacts.Buckets[key] != "crm-exports" {
		t.Errorf("bucket of %s = %q, want crm-exports", key, artifacts.Buckets[key])
	}

	if len(statuses.messages) != 1 {
		t.Fatalf("published %d status messages, want 1", len(statuses.messages))
	}
	msg := statuses.messages[0]
	if msg.Status != "done" || msg.StoragePath != key || msg.DownloadURL != "https://files.example.com/"+key {
		t.Errorf("status message = %+v", msg)
	}
	if msg.CompletedAt == nil {
		t.Error("completedAt not set")
	}
}

func TestProcessHonoursLimit(t *testing.T) {
	payments := repotest.NewPayments()
	deal := uuid.New()
	seedPayments(payments, deal, 20)

	var format entity.ExportFormat
	var count int
	uc := New(payments, repotest.NewArtifacts(), countingRenderer(&format, &count), &statusRecorder{}, logger.Nop())

	err := uc.Process(context.Background(), entity.ExportJobMessage{
		JobID:   uuid.New(),
		Filters: []byte(`{"limit":5,"offset":2,"format":"csv"}`),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if count != 5 || format != entity.FormatCSV {
		t.Errorf("rendered %d payments as %s, want 5 as csv", count, format)
	}
}

func TestProcessPresignsWithoutBaseURL(t *testing.T) {
	statuses := &statusRecorder{}
	var format entity.ExportFormat
	var count int
	uc := New(repotest.NewPayments(), repotest.NewArtifacts(), countingRenderer(&format, &count), statuses, logger.Nop())

	jobID := uuid.New()
	err := uc.Process(context.Background(), entity.ExportJobMessage{
		JobID:   jobID,
		Format:  entity.FormatCSV,
		Storage: entity.ExportStorage{Prefix: "exports", URLTTLSeconds: 3600},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := "https://s3.test/exports/export-" + jobID.String() + ".csv?ttl=3600"
	if statuses.messages[0].DownloadURL != want {
		t.Errorf("downloadUrl = %s, want %s", statuses.messages[0].DownloadURL, want)
	}
}

func TestProcessReportsFailure(t *testing.T) {
	tests := []struct {
		name      string
		renderErr error
		uploadErr error
		filters   string
	}{
		{name: "render", renderErr: errors.New("sheet too large")},
		{name: "upload", uploadErr: errors.New("access denied")},
		{name: "bad filters", filters: `{"dealId":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := repotest.NewArtifacts()
			artifacts.UploadErr = tt.uploadErr
			statuses := &statusRecorder{}

			renderer := &rendererMock{renderFn: func(io.Writer, entity.ExportFormat, []*entity.Payment) error {
				return tt.renderErr
			}}
			uc := New(repotest.NewPayments(), artifacts, renderer, statuses, logger.Nop())

			jobID := uuid.New()
			err := uc.Process(context.Background(), entity.ExportJobMessage{
				JobID:   jobID,
				Format:  entity.FormatCSV,
				Filters: []byte(tt.filters),
			})
			if err == nil {
				t.Fatal("Process() error = nil, want failure")
			}

			if len(statuses.messages) != 1 {
				t.Fatalf("published %d status messages, want 1", len(statuses.messages))
			}
			msg := statuses.messages[0]
			if msg.JobID != jobID || msg.Status != "failed" || msg.Error == "" || msg.DownloadURL != "" {
				t.Errorf("status message = %+v", msg)
			}
		})
	}
}

func TestProcessDropsArtifactWhenStatusLost(t *testing.T) {
	artifacts := repotest.NewArtifacts()
	statuses := &statusRecorder{err: errors.New("channel closed")}

	var format entity.ExportFormat
	var count int
	uc := New(repotest.NewPayments(), artifacts, countingRenderer(&format, &count), statuses, logger.Nop())

	err := uc.Process(context.Background(), entity.ExportJobMessage{
		JobID:   uuid.New(),
		Format:  entity.FormatCSV,
		Storage: entity.ExportStorage{BaseURL: "https://files.example.com"},
	})
	if err == nil {
		t.Fatal("Process() error = nil, want publish failure")
	}

	if len(artifacts.Objects) != 0 {
		t.Errorf("objects left in storage: %v", artifacts.Objects)
	}
}
