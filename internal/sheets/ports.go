package sheets

import (
	"context"

	"profitcalc/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter publishes a month's report rows to an external sheet.
	ReportWriter interface {
		// WriteReport replaces the month's sheet with rows and returns a
		// reference to the written range.
		WriteReport(ctx context.Context, month string, rows []core.ReportRow) (ref string, err error)
	}

	// ReportDeleter removes a month's sheet. Deleting a missing sheet is not an error.
	ReportDeleter interface {
		DeleteReport(ctx context.Context, month string) error
	}

	ReportSink interface {
		ReportWriter
		ReportDeleter
	}
)
