package entity

import "testing"

func TestCanTransitionTo(t *testing.T) {
	all := []PaymentStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled}

	allowed := map[PaymentStatus]map[PaymentStatus]bool{
		StatusPending:    {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing: {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
		StatusFailed:     {StatusProcessing: true, StatusCancelled: true},
		StatusCompleted:  {StatusCancelled: true},
		StatusCancelled:  {},
	}

	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != allowed[from][to] {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, allowed[from][to])
			}
		}
	}
}

func TestParsePaymentStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   PaymentStatus
		wantOK bool
	}{
		{in: "PENDING", want: StatusPending, wantOK: true},
		{in: " completed ", want: StatusCompleted, wantOK: true},
		{in: "Cancelled", want: StatusCancelled, wantOK: true},
		{in: "LOST", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := ParsePaymentStatus(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParsePaymentStatus(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParsePaymentStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParsePaymentType(t *testing.T) {
	if got, ok := ParsePaymentType("refund"); !ok || got != TypeRefund {
		t.Errorf("ParsePaymentType(refund) = %s, %v", got, ok)
	}
	if _, ok := ParsePaymentType("BONUS"); ok {
		t.Error("ParsePaymentType(BONUS) accepted")
	}
}

func TestExportParsing(t *testing.T) {
	if s, ok := ParseExportStatus("DONE"); !ok || s != ExportDone {
		t.Errorf("ParseExportStatus(DONE) = %s, %v", s, ok)
	}
	if _, ok := ParseExportStatus("queued"); ok {
		t.Error("ParseExportStatus(queued) accepted")
	}
	if !ExportFailed.Terminal() || ExportProcessing.Terminal() {
		t.Error("Terminal() mismatch")
	}

	f, ok := ParseExportFormat("XLSX")
	if !ok || f != FormatXLSX || f.Extension() != ".xlsx" {
		t.Errorf("ParseExportFormat(XLSX) = %s, %v", f, ok)
	}
	if FormatCSV.ContentType() != "text/csv" {
		t.Errorf("csv content type = %s", FormatCSV.ContentType())
	}
}
