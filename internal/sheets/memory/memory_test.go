package memory

import (
	"context"
	"errors"
	"testing"

	"profitcalc/internal/core"
)

func TestWriter_WriteAndDelete(t *testing.T) {
	w := New()
	ctx := context.Background()

	ref, err := w.WriteReport(ctx, "2025-07", []core.ReportRow{{Period: "2025-07", TotalSales: 10}})
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if ref != "mem:2025-07:1" {
		t.Errorf("ref = %q", ref)
	}
	rows, ok := w.Report("2025-07")
	if !ok || len(rows) != 1 || rows[0].TotalSales != 10 {
		t.Errorf("Report() = %v, %v", rows, ok)
	}
	if w.Writes() != 1 {
		t.Errorf("Writes() = %d", w.Writes())
	}

	if err := w.DeleteReport(ctx, "2025-07"); err != nil {
		t.Fatalf("DeleteReport() error = %v", err)
	}
	if _, ok := w.Report("2025-07"); ok {
		t.Error("report still present after delete")
	}
}

func TestWriter_Err(t *testing.T) {
	w := New()
	w.SetErr(errors.New("quota"))
	if _, err := w.WriteReport(context.Background(), "2025-07", nil); err == nil {
		t.Error("expected injected error")
	}
	if w.Writes() != 0 {
		t.Error("failed write should not count")
	}
}
