package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func samplePayments() []*entity.Payment {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	policy := uuid.MustParse("2b8f2a4e-3c1d-4e5f-8a9b-0c1d2e3f4a5b")
	description := `first, "quoted" part`

	return []*entity.Payment{
		{
			ID:              uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			DealID:          uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			PolicyID:        &policy,
			InitiatorUserID: uuid.MustParse("33333333-3333-3333-3333-333333333333"),
			Amount:          decimal.RequireFromString("2500.5"),
			Currency:        "RUB",
			Status:          entity.StatusPending,
			PaymentType:     entity.TypeInitial,
			Description:     &description,
			CreatedAt:       created,
			UpdatedAt:       created,
		},
		{
			ID:              uuid.MustParse("44444444-4444-4444-4444-444444444444"),
			DealID:          uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			InitiatorUserID: uuid.MustParse("33333333-3333-3333-3333-333333333333"),
			Amount:          decimal.NewFromInt(100),
			Currency:        "RUB",
			Status:          entity.StatusCompleted,
			PaymentType:     entity.TypeRefund,
			ProcessedAt:     &created,
			CreatedAt:       created,
			UpdatedAt:       created,
		},
	}
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := New().Render(&buf, entity.FormatCSV, samplePayments()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}
	if records[0][0] != "id" || records[0][4] != "amount" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][4] != "2500.50" || records[1][2] != "2b8f2a4e-3c1d-4e5f-8a9b-0c1d2e3f4a5b" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[1][11] != `first, "quoted" part` {
		t.Errorf("description = %q", records[1][11])
	}
	if records[2][2] != "" || records[2][9] != "2025-03-01T10:00:00Z" {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestRenderCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := New().Render(&buf, entity.FormatCSV, nil); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 1 {
		t.Errorf("rows = %d, want header only", len(records))
	}
}

func TestRenderXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := New().Render(&buf, entity.FormatXLSX, samplePayments()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(_sheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("first id = %s", rows[1][0])
	}
	if rows[2][6] != "COMPLETED" {
		t.Errorf("status = %s", rows[2][6])
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if err := New().Render(&bytes.Buffer{}, "pdf", nil); err == nil {
		t.Error("Render() accepted pdf")
	}
}
