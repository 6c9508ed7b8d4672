package worker

import (
	"context"
	"fmt"
	"log/slog"

	"profitcalc/internal/amqp"
	"profitcalc/internal/core"
	"profitcalc/internal/services"
)

// MonthSyncer writes stored months to the report sink.
type MonthSyncer interface {
	SyncMonth(ctx context.Context, month core.Period) error
	SyncAll(ctx context.Context) (int, error)
}

// SyncWorker applies report sync messages received over AMQP.
type SyncWorker struct {
	syncer MonthSyncer
	logger *slog.Logger
}

var _ MonthSyncer = (*services.ReportSyncer)(nil)

func NewSyncWorker(syncer MonthSyncer, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{syncer: syncer, logger: logger}
}

// HandleReportSync processes a single report sync message. Malformed months
// are dropped with a log line because redelivery cannot fix them.
func (w *SyncWorker) HandleReportSync(ctx context.Context, msg *amqp.ReportSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		"month", msg.Month,
		"batch_id", msg.BatchID,
		"published_at", msg.Timestamp)

	month := core.Period(msg.Month)
	if !month.Valid() {
		w.logger.WarnContext(ctx, "Dropping sync message with invalid month", "month", msg.Month)
		return nil
	}

	if err := w.syncer.SyncMonth(ctx, month); err != nil {
		return fmt.Errorf("sync month %s: %w", month, err)
	}
	return nil
}

// StartupSyncCheck rewrites every stored month so reports missed while the
// worker was down catch up.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.syncer.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}
