package services

import (
	"context"
	"errors"
	"fmt"

	"profitcalc/internal/core"
	applog "profitcalc/internal/log"
	"profitcalc/internal/sheets"
	"profitcalc/internal/storage"
)

// ReportSyncer copies saved months to an external report sink. Both the
// AMQP consumer and the sqlite queue processor go through it.
type ReportSyncer struct {
	store  storage.MonthStore
	sink   sheets.ReportSink
	logger *applog.Logger
}

func NewReportSyncer(store storage.MonthStore, sink sheets.ReportSink, logger *applog.Logger) *ReportSyncer {
	if logger == nil {
		logger = applog.Nop()
	}
	return &ReportSyncer{store: store, sink: sink, logger: logger.WithComponent(applog.ComponentSheets)}
}

// SyncMonth writes the stored report of month. A month deleted since the
// sync was requested is skipped.
func (s *ReportSyncer) SyncMonth(ctx context.Context, month core.Period) error {
	rec, err := s.store.LoadMonth(ctx, month)
	if errors.Is(err, storage.ErrMonthNotFound) {
		s.logger.WarnContext(ctx, "Month no longer stored, skipping sync", applog.FieldMonth, string(month))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load month %s: %w", month, err)
	}

	ref, err := s.sink.WriteReport(ctx, string(month), rec.Spreadsheet)
	if err != nil {
		return fmt.Errorf("write report %s: %w", month, err)
	}

	s.logger.InfoContext(ctx, "Synced month report",
		applog.FieldMonth, string(month),
		applog.FieldBatchID, rec.Metadata.BatchID,
		applog.FieldRows, len(rec.Spreadsheet),
		applog.FieldSheetsRef, ref)
	return nil
}

// DeleteMonth removes the month's report from the sink.
func (s *ReportSyncer) DeleteMonth(ctx context.Context, month core.Period) error {
	if err := s.sink.DeleteReport(ctx, string(month)); err != nil {
		return fmt.Errorf("delete report %s: %w", month, err)
	}
	s.logger.InfoContext(ctx, "Deleted month report", applog.FieldMonth, string(month))
	return nil
}

// SyncAll writes every stored month and returns how many succeeded. A
// failing month is logged and does not stop the others.
func (s *ReportSyncer) SyncAll(ctx context.Context) (int, error) {
	metas, err := s.store.ListMonths(ctx)
	if err != nil {
		return 0, fmt.Errorf("list months: %w", err)
	}
	synced := 0
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := s.SyncMonth(ctx, meta.Month); err != nil {
			s.logger.ErrorContext(ctx, "Failed to sync month", applog.FieldMonth, string(meta.Month), applog.FieldError, err)
			continue
		}
		synced++
	}
	return synced, nil
}
