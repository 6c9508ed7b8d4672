package memory

import (
	"context"
	"fmt"
	"sync"

	"profitcalc/internal/core"
	ports "profitcalc/internal/sheets"
)

// Writer records reports in memory. It stands in for Google Sheets when no
// spreadsheet is configured and in tests.
type Writer struct {
	mu      sync.Mutex
	reports map[string][]core.ReportRow
	writes  int
	// Err, when set, is returned by every call.
	Err error
}

var _ ports.ReportSink = (*Writer)(nil)

func New() *Writer {
	return &Writer{reports: map[string][]core.ReportRow{}}
}

// WriteReport stores a copy of rows and returns a synthetic reference.
func (w *Writer) WriteReport(_ context.Context, month string, rows []core.ReportRow) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return "", w.Err
	}
	w.reports[month] = append([]core.ReportRow(nil), rows...)
	w.writes++
	return fmt.Sprintf("mem:%s:%d", month, len(rows)), nil
}

func (w *Writer) DeleteReport(_ context.Context, month string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	delete(w.reports, month)
	return nil
}

// Report returns the rows last written for month.
func (w *Writer) Report(month string) ([]core.ReportRow, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.reports[month]
	return rows, ok
}

// Writes counts successful WriteReport calls.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

func (w *Writer) SetErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Err = err
}
