// Package memory provides an in-process storage.MonthStore for tests and
// local runs without a data directory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"profitcalc/internal/core"
	"profitcalc/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	months map[core.Period]storage.MonthRecord
}

var _ storage.MonthStore = (*Store)(nil)

func New() *Store {
	return &Store{months: map[core.Period]storage.MonthRecord{}}
}

func (s *Store) SaveMonth(_ context.Context, rec storage.MonthRecord) error {
	if err := storage.ValidateKey(rec.Metadata.Month); err != nil {
		return err
	}
	rec.Results = rec.Results.Clone()
	rec.Spreadsheet = append([]core.ReportRow(nil), rec.Spreadsheet...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.months[rec.Metadata.Month] = rec
	return nil
}

func (s *Store) LoadMonth(_ context.Context, key core.Period) (storage.MonthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.months[key]
	if !ok {
		return storage.MonthRecord{}, fmt.Errorf("%w: %s", storage.ErrMonthNotFound, key)
	}
	rec.Results = rec.Results.Clone()
	return rec, nil
}

func (s *Store) ListMonths(context.Context) ([]storage.MonthMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.MonthMeta, 0, len(s.months))
	for _, rec := range s.months {
		out = append(out, rec.Metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *Store) DeleteMonth(_ context.Context, key core.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.months[key]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrMonthNotFound, key)
	}
	delete(s.months, key)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }
