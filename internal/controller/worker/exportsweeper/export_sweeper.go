package exportsweeper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/usecase"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
)

// ExportSweeper переводит в failed выгрузки, которые слишком долго висят в processing.
type ExportSweeper struct {
	exports usecase.ExportUseCase
	logger  logger.Interface

	sweepInterval time.Duration
	stuckAfter    time.Duration
	sweepTimeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	exports usecase.ExportUseCase,
	l logger.Interface,
	sweepInterval time.Duration,
	stuckAfter time.Duration,
	sweepTimeout time.Duration,
) *ExportSweeper {
	return &ExportSweeper{
		exports:       exports,
		logger:        l,
		sweepInterval: sweepInterval,
		stuckAfter:    stuckAfter,
		sweepTimeout:  sweepTimeout,
	}
}

func (s *ExportSweeper) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("ExportSweeper - Start - worker already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.worker(s.sweepInterval, func() {
		sweepCtx, sweepCancel := context.WithTimeout(s.ctx, s.sweepTimeout)
		defer sweepCancel()

		s.sweep(sweepCtx)
	})

	return nil
}

func (s *ExportSweeper) sweep(ctx context.Context) {
	n, err := s.exports.FailStuckJobs(ctx, s.stuckAfter)
	if err != nil {
		s.logger.Error(err, "ExportSweeper - sweep - s.exports.FailStuckJobs")

		return
	}

	if n > 0 {
		s.logger.Info("ExportSweeper - sweep - %d stuck export jobs failed", n)
	}
}

func (s *ExportSweeper) worker(interval time.Duration, task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (s *ExportSweeper) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ExportSweeper - Shutdown: %w", ctx.Err())
	}
}
