package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/xuri/excelize/v2"
)

const _sheet = "Payments"

var header = []string{
	"id", "dealId", "policyId", "initiatorUserId", "amount", "currency", "status", "paymentType",
	"dueDate", "processedAt", "confirmationReference", "description", "createdAt", "updatedAt",
}

// Renderer пишет платежи в CSV или XLSX.
type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Render(w io.Writer, format entity.ExportFormat, payments []*entity.Payment) error {
	switch format {
	case entity.FormatCSV:
		return renderCSV(w, payments)
	case entity.FormatXLSX:
		return renderXLSX(w, payments)
	default:
		return fmt.Errorf("Renderer - Render: unsupported format %q", format)
	}
}

func renderCSV(w io.Writer, payments []*entity.Payment) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("renderCSV - cw.Write: %w", err)
	}
	for _, p := range payments {
		if err := cw.Write(row(p)); err != nil {
			return fmt.Errorf("renderCSV - cw.Write: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("renderCSV - cw.Flush: %w", err)
	}

	return nil
}

func renderXLSX(w io.Writer, payments []*entity.Payment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", _sheet); err != nil {
		return fmt.Errorf("renderXLSX - f.SetSheetName: %w", err)
	}

	sw, err := f.NewStreamWriter(_sheet)
	if err != nil {
		return fmt.Errorf("renderXLSX - f.NewStreamWriter: %w", err)
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("renderXLSX - sw.SetRow: %w", err)
	}

	for i, p := range payments {
		values := row(p)

		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = v
		}
		// сумма - числом, чтобы по ней работали формулы
		cells[4] = p.Amount.InexactFloat64()

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("renderXLSX - excelize.CoordinatesToCellName: %w", err)
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("renderXLSX - sw.SetRow: %w", err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("renderXLSX - sw.Flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("renderXLSX - f.WriteTo: %w", err)
	}

	return nil
}

func row(p *entity.Payment) []string {
	return []string{
		p.ID.String(),
		p.DealID.String(),
		optionalUUID(p),
		p.InitiatorUserID.String(),
		p.Amount.StringFixed(2),
		p.Currency,
		string(p.Status),
		string(p.PaymentType),
		optionalTime(p.DueDate),
		optionalTime(p.ProcessedAt),
		optionalString(p.ConfirmationReference),
		optionalString(p.Description),
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func optionalUUID(p *entity.Payment) string {
	if p.PolicyID == nil {
		return ""
	}

	return p.PolicyID.String()
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
