// Package files stores each month as a directory of JSON documents:
//
//	<root>/<month>/metadata.json
//	<root>/<month>/results.json
//	<root>/<month>/spreadsheet.json
//	<root>/<month>/summary.json
//
// Raw uploads archived locally share the same tree under <month>/files.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"profitcalc/internal/core"
	"profitcalc/internal/storage"
)

const (
	metadataFile    = "metadata.json"
	resultsFile     = "results.json"
	spreadsheetFile = "spreadsheet.json"
	summaryFile     = "summary.json"
)

// Store is a directory-backed storage.MonthStore.
type Store struct {
	root   string
	logger *slog.Logger
	mu     sync.RWMutex
}

var _ storage.MonthStore = (*Store)(nil)

// New creates root if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", root, err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) monthDir(key core.Period) string {
	return filepath.Join(s.root, string(key))
}

func (s *Store) SaveMonth(ctx context.Context, rec storage.MonthRecord) error {
	key := rec.Metadata.Month
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.monthDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create month directory: %w", err)
	}

	// metadata goes last: its presence marks the month as saved
	docs := []struct {
		name string
		v    any
	}{
		{resultsFile, rec.Results},
		{spreadsheetFile, rec.Spreadsheet},
		{summaryFile, rec.Summary},
		{metadataFile, rec.Metadata},
	}
	for _, d := range docs {
		if err := writeJSON(filepath.Join(dir, d.name), d.v); err != nil {
			return fmt.Errorf("save %s for %s: %w", d.name, key, err)
		}
	}

	s.logger.InfoContext(ctx, "Month saved", "month", key, "dir", dir)
	return nil
}

func (s *Store) LoadMonth(ctx context.Context, key core.Period) (storage.MonthRecord, error) {
	if err := storage.ValidateKey(key); err != nil {
		return storage.MonthRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return storage.MonthRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.monthDir(key)
	var rec storage.MonthRecord
	if err := readJSON(filepath.Join(dir, metadataFile), &rec.Metadata); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.MonthRecord{}, fmt.Errorf("%w: %s", storage.ErrMonthNotFound, key)
		}
		return storage.MonthRecord{}, fmt.Errorf("load metadata of %s: %w", key, err)
	}
	if err := readJSON(filepath.Join(dir, resultsFile), &rec.Results); err != nil {
		return storage.MonthRecord{}, fmt.Errorf("load results of %s: %w", key, err)
	}
	if err := readJSON(filepath.Join(dir, spreadsheetFile), &rec.Spreadsheet); err != nil {
		return storage.MonthRecord{}, fmt.Errorf("load spreadsheet of %s: %w", key, err)
	}
	// summary.json is absent in directories written before it existed
	if err := readJSON(filepath.Join(dir, summaryFile), &rec.Summary); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storage.MonthRecord{}, fmt.Errorf("load summary of %s: %w", key, err)
	}
	if rec.Summary.TotalMonths == 0 && len(rec.Results) > 0 {
		rec.Summary = core.Summarize(rec.Results)
	}
	return rec, nil
}

func (s *Store) ListMonths(ctx context.Context) ([]storage.MonthMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list data directory: %w", err)
	}

	var out []storage.MonthMeta
	for _, e := range entries {
		if !e.IsDir() || !core.Period(e.Name()).Valid() {
			continue
		}
		var meta storage.MonthMeta
		err := readJSON(filepath.Join(s.root, e.Name(), metadataFile), &meta)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.WarnContext(ctx, "Unreadable month metadata", "month", e.Name(), "error", err)
			continue
		}
		meta.Month = core.Period(e.Name())
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// DeleteMonth removes the whole month directory, archived uploads included.
func (s *Store) DeleteMonth(ctx context.Context, key core.Period) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.monthDir(key)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrMonthNotFound, key)
		}
		return fmt.Errorf("stat month %s: %w", key, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete month %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "Month deleted", "month", key)
	return nil
}

// Ping checks the data directory is still reachable.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", s.root)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Files lists every file stored for a month, relative to the month directory.
func (s *Store) Files(key core.Period) ([]string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.monthDir(key)
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrMonthNotFound, key)
	}
	return out, err
}

// writeJSON writes through a temp file so readers never see a partial document.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
