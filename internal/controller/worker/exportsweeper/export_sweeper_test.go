package exportsweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/google/uuid"
)

type exportsMock struct {
	failStuckFn func(ctx context.Context, stuckAfter time.Duration) (int64, error)
}

func (m *exportsMock) RequestExport(context.Context, dto.ExportRequest) (*dto.ExportResponse, error) {
	return nil, nil
}

func (m *exportsMock) GetStatus(context.Context, uuid.UUID) (*dto.ExportResponse, error) {
	return nil, nil
}

func (m *exportsMock) HandleStatusMessage(context.Context, entity.ExportStatusMessage) error {
	return nil
}

func (m *exportsMock) FailStuckJobs(ctx context.Context, stuckAfter time.Duration) (int64, error) {
	return m.failStuckFn(ctx, stuckAfter)
}

func TestSweeperFailsStuckJobsPeriodically(t *testing.T) {
	var (
		calls atomic.Int32
		got   atomic.Int64
	)

	exports := &exportsMock{failStuckFn: func(ctx context.Context, stuckAfter time.Duration) (int64, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("sweep context has no deadline")
		}
		got.Store(int64(stuckAfter))

		if calls.Add(1) == 1 {
			return 0, errors.New("db is down")
		}
		return 2, nil
	}}

	s := New(exports, logger.Nop(), 10*time.Millisecond, 30*time.Minute, time.Second)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if calls.Load() < 3 {
		t.Fatalf("FailStuckJobs called %d times, want at least 3 (errors must not stop the worker)", calls.Load())
	}
	if time.Duration(got.Load()) != 30*time.Minute {
		t.Errorf("stuckAfter = %s, want 30m", time.Duration(got.Load()))
	}

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Error("sweeper kept running after Shutdown")
	}
}

func TestSweeperStartTwice(t *testing.T) {
	s := New(&exportsMock{failStuckFn: func(context.Context, time.Duration) (int64, error) { return 0, nil }},
		logger.Nop(), time.Hour, time.Minute, time.Second)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(&exportsMock{}, logger.Nop(), time.Second, time.Minute, time.Second)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
