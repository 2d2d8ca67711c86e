package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ExportStatus string

const (
	ExportProcessing ExportStatus = "processing"
	ExportDone       ExportStatus = "done"
	ExportFailed     ExportStatus = "failed"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

type ExportJob struct {
	ID          uuid.UUID
	Status      ExportStatus
	Format      ExportFormat
	Filters     []byte // JSON, порядок ключей сохраняется
	DownloadURL *string
	StoragePath *string
	Error       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (s ExportStatus) Terminal() bool {
	return s == ExportDone || s == ExportFailed
}

func ParseExportStatus(s string) (ExportStatus, bool) {
	status := ExportStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case ExportProcessing, ExportDone, ExportFailed:
		return status, true
	}

	return "", false
}

func ParseExportFormat(s string) (ExportFormat, bool) {
	format := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case FormatCSV, FormatXLSX:
		return format, true
	}

	return "", false
}

func (f ExportFormat) Extension() string {
	return "." + string(f)
}

func (f ExportFormat) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	return "text/csv"
}
