package exportworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/dto"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure"
	"github.com/andreyxaxa/crm-payments/internal/repo"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
)

const (
	_pageSize   = 200
	_defaultTTL = 24 * time.Hour
)

// ExportWorkerUseCase выполняет задачу выгрузки: платежи -> файл -> S3 -> статус.
type ExportWorkerUseCase struct {
	paymentRepo  repo.PaymentRepo
	artifactRepo repo.ExportArtifactRepo
	renderer     infrastructure.ExportRenderer
	publisher    infrastructure.ExportStatusPublisher

	now    func() time.Time
	logger logger.Interface
}

func New(
	paymentRepo repo.PaymentRepo,
	artifactRepo repo.ExportArtifactRepo,
	renderer infrastructure.ExportRenderer,
	publisher infrastructure.ExportStatusPublisher,
	l logger.Interface,
) *ExportWorkerUseCase {
	return &ExportWorkerUseCase{
		paymentRepo:  paymentRepo,
		artifactRepo: artifactRepo,
		renderer:     renderer,
		publisher:    publisher,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       l,
	}
}

func (uc *ExportWorkerUseCase) Process(ctx context.Context, msg entity.ExportJobMessage) error {
	key, url, err := uc.export(ctx, msg)
	if err != nil {
		uc.logger.Error(err, "ExportWorkerUseCase - Process - job %s", msg.JobID)

		completed := uc.now()
		status := entity.ExportStatusMessage{
			JobID:       msg.JobID,
			Status:      string(entity.ExportFailed),
			Error:       err.Error(),
			CompletedAt: &completed,
		}
		if perr := uc.publisher.PublishStatus(ctx, status); perr != nil {
			return fmt.Errorf("ExportWorkerUseCase - Process - uc.publisher.PublishStatus: %w", perr)
		}

		return fmt.Errorf("ExportWorkerUseCase - Process: %w", err)
	}

	completed := uc.now()
	status := entity.ExportStatusMessage{
		JobID:       msg.JobID,
		Status:      string(entity.ExportDone),
		DownloadURL: url,
		StoragePath: key,
		CompletedAt: &completed,
	}
	if err := uc.publisher.PublishStatus(ctx, status); err != nil {
		// без статуса файл никто не найдет; задачу закроет sweeper
		if derr := uc.artifactRepo.Delete(ctx, msg.Storage.Bucket, key); derr != nil {
			uc.logger.Error(derr, "ExportWorkerUseCase - Process - uc.artifactRepo.Delete %s", key)
		}

		return fmt.Errorf("ExportWorkerUseCase - Process - uc.publisher.PublishStatus: %w", err)
	}

	uc.logger.Info("export job %s uploaded to %s", msg.JobID, key)

	return nil
}

func (uc *ExportWorkerUseCase) export(ctx context.Context, msg entity.ExportJobMessage) (string, string, error) {
	// 1. фильтры
	var filters dto.ExportFilters
	if len(msg.Filters) > 0 && string(msg.Filters) != "null" {
		if err := json.Unmarshal(msg.Filters, &filters); err != nil {
			return "", "", fmt.Errorf("decode filters: %w", err)
		}
	}

	format, ok := entity.ParseExportFormat(string(msg.Format))
	if !ok {
		format, ok = entity.ParseExportFormat(string(filters.Format))
	}
	if !ok {
		format = entity.FormatCSV
	}

	// 2. платежи
	payments, err := uc.collect(ctx, filters.PaymentFilter())
	if err != nil {
		return "", "", err
	}

	// 3. файл
	var buf bytes.Buffer
	if err := uc.renderer.Render(&buf, format, payments); err != nil {
		return "", "", fmt.Errorf("render %s: %w", format, err)
	}

	// 4. загрузка в бакет из сообщения (пустой - бакет воркера)
	key := path.Join(msg.Storage.Prefix, "export-"+msg.JobID.String()+format.Extension())
	if err := uc.artifactRepo.Upload(ctx, msg.Storage.Bucket, key, bytes.NewReader(buf.Bytes()), format.ContentType(), int64(buf.Len())); err != nil {
		return "", "", fmt.Errorf("upload %s: %w", key, err)
	}

	// 5. ссылка
	url, err := uc.downloadURL(ctx, msg.Storage, key)
	if err != nil {
		return "", "", err
	}

	return key, url, nil
}

// collect читает одну страницу, если limit задан, иначе все страницы по _pageSize.
func (uc *ExportWorkerUseCase) collect(ctx context.Context, filter dto.PaymentFilter) ([]*entity.Payment, error) {
	if filter.Limit > 0 {
		payments, err := uc.paymentRepo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}

		return payments, nil
	}

	var result []*entity.Payment

	filter.Limit = _pageSize
	for {
		page, err := uc.paymentRepo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list payments at offset %d: %w", filter.Offset, err)
		}

		result = append(result, page...)
		if len(page) < _pageSize {
			return result, nil
		}
		filter.Offset += _pageSize
	}
}

func (uc *ExportWorkerUseCase) downloadURL(ctx context.Context, storage entity.ExportStorage, key string) (string, error) {
	if base := strings.TrimRight(storage.BaseURL, "/"); base != "" {
		return base + "/" + key, nil
	}

	ttl := storage.URLTTL()
	if ttl <= 0 {
		ttl = _defaultTTL
	}

	url, err := uc.artifactRepo.PresignGet(ctx, storage.Bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	return url, nil
}
