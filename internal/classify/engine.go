// Package classify turns vendor CSV rows into per-period bucket sums.
//
// Every source shares one algorithm: locate the row's date, resolve it to
// a period, then route column values into buckets through the source's
// Profile. Merge and Project combine the per-source results into the
// monthly report.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"profitcalc/internal/core"
)

// ErrUnknownSource is returned when no profile exists for a source.
var ErrUnknownSource = errors.New("no classifier for source")

// Observer receives per-row counters. The metrics package implements it.
type Observer interface {
	RowProcessed(source core.Source)
	RowSkipped(source core.Source)
	SourceFailed(source core.Source)
}

type nopObserver struct{}

func (nopObserver) RowProcessed(core.Source) {}
func (nopObserver) RowSkipped(core.Source)   {}
func (nopObserver) SourceFailed(core.Source) {}

// Stats describes one classification run.
type Stats struct {
	Source    core.Source
	Account   core.Account
	Rows      int
	Processed int
	Undated   int
	Failed    int
	Periods   int
	Notes     []ColumnNote
	Err       error
}

// Engine classifies records with a registry of profiles.
type Engine struct {
	profiles map[core.Source]Profile
	logger   *slog.Logger
	observer Observer
}

// Option customises an Engine.
type Option func(*Engine)

// WithObserver installs a row counter sink.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithProfile registers or replaces the profile of p.Source.
func WithProfile(p Profile) Option {
	return func(e *Engine) { e.profiles[p.Source] = p }
}

// NewEngine returns an engine loaded with the built-in profiles.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		profiles: Builtin(),
		logger:   logger,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile returns the registered profile of a source.
func (e *Engine) Profile(source core.Source) (Profile, bool) {
	p, ok := e.profiles[source]
	return p, ok
}

// Classify aggregates records of one source and account.
//
// Row failures are logged and skipped. A failure of the whole run,
// including context cancellation, yields an empty aggregate and sets
// Stats.Err.
func (e *Engine) Classify(ctx context.Context, source core.Source, account core.Account, records []core.Record) (agg core.Aggregate, stats Stats) {
	stats = Stats{Source: source, Account: account, Rows: len(records)}
	logger := e.logger.With("source", string(source), "account", string(account))

	profile, ok := e.profiles[source]
	if !ok {
		stats.Err = fmt.Errorf("%w: %s", ErrUnknownSource, source)
		e.observer.SourceFailed(source)
		return core.Aggregate{}, stats
	}

	defer func() {
		if r := recover(); r != nil {
			stats.Err = fmt.Errorf("classify %s: panic: %v", source, r)
			logger.Error("Source classification failed", "error", stats.Err)
			e.observer.SourceFailed(source)
			agg = core.Aggregate{}
		}
	}()

	if profile.Inspect != nil {
		stats.Notes = profile.Inspect(records)
		for _, n := range stats.Notes {
			logger.Info("Column candidate", "column", n.Column, "reason", n.Reason, "samples", n.Samples)
		}
	}

	sums := map[core.Period]Sums{}
	for i, rec := range records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				stats.Err = fmt.Errorf("classify %s: %w", source, err)
				e.observer.SourceFailed(source)
				return core.Aggregate{}, stats
			}
		}

		raw, ok := profile.Date.Locate(rec)
		if !ok {
			stats.Undated++
			e.observer.RowSkipped(source)
			continue
		}
		period := core.ResolvePeriod(raw)

		row := Row{Index: i, Account: account, Record: rec}
		if err := e.classifyRow(profile, row, period, sums); err != nil {
			stats.Failed++
			e.observer.RowSkipped(source)
			logger.Warn("Row skipped", "row", i, "error", err)
			continue
		}
		stats.Processed++
		e.observer.RowProcessed(source)
	}

	agg = truncate(sums)
	stats.Periods = len(agg)
	logger.Info("Source classified",
		"rows", stats.Rows,
		"processed", stats.Processed,
		"undated", stats.Undated,
		"failed", stats.Failed,
		"periods", stats.Periods,
	)
	return agg, stats
}

// classifyRow applies the profile to one row. A dated row always opens its
// period; partial sums of a failing row are discarded.
func (e *Engine) classifyRow(p Profile, row Row, period core.Period, sums map[core.Period]Sums) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	target, ok := sums[period]
	if !ok {
		target = Sums{}
		for _, b := range p.Buckets(row.Account) {
			target[b] = 0
		}
		sums[period] = target
	}

	local := Sums{}
	if err := p.apply(row, local); err != nil {
		return err
	}
	for b, v := range local {
		target[b] += v
	}
	return nil
}

// truncate converts sums to whole units, rounding toward zero.
func truncate(sums map[core.Period]Sums) core.Aggregate {
	out := make(core.Aggregate, len(sums))
	for p, s := range sums {
		buckets := make(core.PeriodAggregate, len(s))
		for k, v := range s {
			buckets[k] = wholeUnits(v)
		}
		out[p] = buckets
	}
	return out
}

// wholeUnits drops the fraction of v. Values beyond the int64 range clamp
// to its bounds so the sign is kept; NaN and infinities become 0.
func wholeUnits(v float64) int64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0
	case v >= 1<<63:
		return math.MaxInt64
	case v < -(1 << 63):
		return math.MinInt64
	}
	return int64(v)
}
