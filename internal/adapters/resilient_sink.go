package adapters

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"

	"profitcalc/internal/core"
	"profitcalc/internal/resilience"
	"profitcalc/internal/sheets"
)

// SyncRecorder counts report write outcomes.
type SyncRecorder interface {
	SheetsSync(result string)
}

// ResilientSink guards a ReportSink with a circuit breaker and bounded retry
// so a flaky Sheets API cannot stall the sync worker.
type ResilientSink struct {
	next     sheets.ReportSink
	breaker  *gobreaker.CircuitBreaker
	retry    resilience.Config
	recorder SyncRecorder
	logger   *slog.Logger
}

var _ sheets.ReportSink = (*ResilientSink)(nil)

func NewResilientSink(next sheets.ReportSink, retry resilience.Config, recorder SyncRecorder, logger *slog.Logger) *ResilientSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientSink{
		next:     next,
		breaker:  resilience.NewCircuitBreaker(resilience.BreakerSettings{Name: "google-sheets", Logger: logger}),
		retry:    retry,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *ResilientSink) WriteReport(ctx context.Context, month string, rows []core.ReportRow) (string, error) {
	var ref string
	err := resilience.Retry(ctx, s.retry, func() error {
		out, err := s.breaker.Execute(func() (interface{}, error) {
			return s.next.WriteReport(ctx, month, rows)
		})
		if err != nil {
			s.logger.WarnContext(ctx, "Report write attempt failed", "month", month, "error", err)
			return err
		}
		ref = out.(string)
		return nil
	})
	s.record(err)
	return ref, err
}

func (s *ResilientSink) DeleteReport(ctx context.Context, month string) error {
	err := resilience.Retry(ctx, s.retry, func() error {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.next.DeleteReport(ctx, month)
		})
		return err
	})
	s.record(err)
	return err
}

// State exposes the breaker state for health reporting.
func (s *ResilientSink) State() string {
	return s.breaker.State().String()
}

func (s *ResilientSink) record(err error) {
	if s.recorder == nil {
		return
	}
	switch {
	case err == nil:
		s.recorder.SheetsSync("success")
	case resilience.IsOpen(err):
		s.recorder.SheetsSync("breaker_open")
	default:
		s.recorder.SheetsSync("failure")
	}
}
