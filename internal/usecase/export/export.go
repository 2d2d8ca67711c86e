package export

import (
	"context"
	"encoding/json"
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
)

const (
	_maxLimit = 200

	// StuckReason пишется в error зависших выгрузок.
	StuckReason = "export timed out"
)

type ExportUseCase struct {
	jobRepo      repo.ExportJobRepo
	artifactRepo repo.ExportArtifactRepo
	publisher    infrastructure.ExportJobPublisher

	storage entity.ExportStorage
	now     func() time.Time

	logger logger.Interface
}

func New(
	jobRepo repo.ExportJobRepo,
	artifactRepo repo.ExportArtifactRepo,
	publisher infrastructure.ExportJobPublisher,
	storage entity.ExportStorage,
	l logger.Interface,
	opts ...Option,
) *ExportUseCase {
	uc := &ExportUseCase{
		jobRepo:      jobRepo,
		artifactRepo: artifactRepo,
		publisher:    publisher,
		storage:      storage,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       l,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *ExportUseCase) RequestExport(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	// 1. валидация и фильтры в фиксированном порядке ключей
	filters, err := buildFilters(req)
	if err != nil {
		return nil, fmt.Errorf("ExportUseCase - RequestExport - buildFilters: %w", err)
	}

	raw, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("ExportUseCase - RequestExport - json.Marshal: %w", err)
	}

	now := uc.now()
	job := &entity.ExportJob{
		ID:        uuid.New(),
		Status:    entity.ExportProcessing,
		Format:    filters.Format,
		Filters:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 2. сохраняем задачу
	if err := uc.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("ExportUseCase - RequestExport - uc.jobRepo.Create: %w", err)
	}

	// 3. отправляем в очередь; при ошибке задача остается processing до sweeper
	msg := entity.ExportJobMessage{
		JobID:       job.ID,
		RequestedAt: job.CreatedAt,
		Format:      job.Format,
		Filters:     json.RawMessage(raw),
		Storage:     uc.storage,
	}
	if err := uc.publisher.PublishJob(ctx, msg); err != nil {
		return nil, fmt.Errorf("ExportUseCase - RequestExport - uc.publisher.PublishJob: %w", err)
	}

	uc.logger.Info("export job %s queued, format %s", job.ID, job.Format)

	return toResponse(job), nil
}

func (uc *ExportUseCase) GetStatus(ctx context.Context, jobID uuid.UUID) (*dto.ExportResponse, error) {
	job, err := uc.load(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("ExportUseCase - GetStatus - uc.load: %w", err)
	}

	return toResponse(job), nil
}

// HandleStatusMessage применяет статус от воркера выгрузок.
// Сообщение для неизвестной задачи только логируется.
func (uc *ExportUseCase) HandleStatusMessage(ctx context.Context, msg entity.ExportStatusMessage) error {
	if msg.JobID == uuid.Nil {
		uc.logger.Warn("export status message without jobId, skipping")

		return nil
	}

	job, err := uc.jobRepo.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Warn("export status for unknown job %s", msg.JobID)

			return nil
		}

		return fmt.Errorf("ExportUseCase - HandleStatusMessage - uc.jobRepo.GetByID: %w", err)
	}

	var status entity.ExportStatus
	if strings.TrimSpace(msg.Status) != "" {
		parsed, ok := entity.ParseExportStatus(msg.Status)
		if !ok {
			return fmt.Errorf("ExportUseCase - HandleStatusMessage: %w",
				errs.Validation("status", fmt.Sprintf("unknown export status %q", msg.Status)))
		}
		status = parsed
	}

	// завершенная задача принимает только итоговый статус
	if job.Status.Terminal() && !status.Terminal() {
		return fmt.Errorf("ExportUseCase - HandleStatusMessage: %w",
			errs.Validation("status", fmt.Sprintf("export job %s is already %s", job.ID, job.Status)))
	}
	if status != "" {
		job.Status = status
	}

	if url := strings.TrimSpace(msg.DownloadURL); url != "" {
		job.DownloadURL = &url
	}
	if path := strings.TrimSpace(msg.StoragePath); path != "" {
		job.StoragePath = &path
	}
	if reason := strings.TrimSpace(msg.Error); reason != "" {
		job.Error = &reason
	}

	now := uc.now()
	job.UpdatedAt = now

	if status.Terminal() {
		completed := now
		if msg.CompletedAt != nil {
			completed = msg.CompletedAt.UTC()
		}
		job.CompletedAt = &completed
	}

	// done без ссылки: подписываем ссылку на объект в S3
	if job.Status == entity.ExportDone && job.DownloadURL == nil {
		if job.StoragePath == nil {
			return fmt.Errorf("ExportUseCase - HandleStatusMessage: %w",
				errs.Validation("downloadUrl", "done job needs a download URL or a storage path"))
		}

		url, err := uc.artifactRepo.PresignGet(ctx, uc.storage.Bucket, *job.StoragePath, uc.storage.URLTTL())
		if err != nil {
			return fmt.Errorf("ExportUseCase - HandleStatusMessage - uc.artifactRepo.PresignGet: %w", err)
		}
		job.DownloadURL = &url
	}

	// ссылка есть только у done, completed_at только у итоговых статусов
	if job.Status != entity.ExportDone {
		job.DownloadURL = nil
	}
	if !job.Status.Terminal() {
		job.CompletedAt = nil
	}

	if err := uc.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("ExportUseCase - HandleStatusMessage - uc.jobRepo.Update: %w", err)
	}

	uc.logger.Info("export job %s is %s", job.ID, job.Status)

	return nil
}

func (uc *ExportUseCase) FailStuckJobs(ctx context.Context, stuckAfter time.Duration) (int64, error) {
	n, err := uc.jobRepo.FailStuck(ctx, uc.now().Add(-stuckAfter), StuckReason)
	if err != nil {
		return 0, fmt.Errorf("ExportUseCase - FailStuckJobs - uc.jobRepo.FailStuck: %w", err)
	}

	if n > 0 {
		uc.logger.Warn("%d export jobs failed after %s in processing", n, stuckAfter)
	}

	return n, nil
}

func (uc *ExportUseCase) load(ctx context.Context, id uuid.UUID) (*entity.ExportJob, error) {
	job, err := uc.jobRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, errs.ErrExportNotFound
		}

		return nil, fmt.Errorf("uc.jobRepo.GetByID: %w", err)
	}

	return job, nil
}

func buildFilters(req dto.ExportRequest) (dto.ExportFilters, error) {
	format := entity.FormatCSV
	if strings.TrimSpace(req.Format) != "" {
		parsed, ok := entity.ParseExportFormat(req.Format)
		if !ok {
			return dto.ExportFilters{}, errs.Validation("format", "must be one of [csv xlsx]")
		}
		format = parsed
	}

	if req.Limit != nil && (*req.Limit <= 0 || *req.Limit > _maxLimit) {
		return dto.ExportFilters{}, errs.Validation("limit", fmt.Sprintf("must be in (0, %d]", _maxLimit))
	}
	if req.Offset != nil && *req.Offset < 0 {
		return dto.ExportFilters{}, errs.Validation("offset", "must not be negative")
	}
	if req.FromDate != nil && req.ToDate != nil && req.FromDate.After(*req.ToDate) {
		return dto.ExportFilters{}, errs.Validation("fromDate", "must be before toDate")
	}

	for _, s := range req.Statuses {
		if !s.Valid() {
			return dto.ExportFilters{}, errs.Validation("statuses", fmt.Sprintf("unknown status %q", s))
		}
	}
	for _, t := range req.Types {
		if !t.Valid() {
			return dto.ExportFilters{}, errs.Validation("types", fmt.Sprintf("unknown type %q", t))
		}
	}

	return dto.ExportFilters{
		DealID:   req.DealID,
		PolicyID: req.PolicyID,
		Statuses: req.Statuses,
		Types:    req.Types,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Limit:    req.Limit,
		Offset:   req.Offset,
		Format:   format,
	}, nil
}

func toResponse(job *entity.ExportJob) *dto.ExportResponse {
	return &dto.ExportResponse{
		JobID:       job.ID,
		Status:      job.Status,
		DownloadURL: job.DownloadURL,
	}
}
