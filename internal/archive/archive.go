// Package archive keeps the raw uploaded CSV files next to the processed
// month so a report can be traced back to its inputs.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"profitcalc/internal/core"
)

// Archiver stores one raw upload and returns where it went.
type Archiver interface {
	Store(ctx context.Context, month core.Period, key core.FileKey, data []byte) (location string, err error)
}

// Local writes uploads to <root>/<month>/files/<key>.csv.
type Local struct {
	root   string
	logger *slog.Logger
}

func NewLocal(root string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{root: root, logger: logger}
}

func (l *Local) Store(ctx context.Context, month core.Period, key core.FileKey, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !month.Valid() {
		return "", fmt.Errorf("archive %s: %w: %q", key, core.ErrInvalidPeriod, month)
	}
	dir := filepath.Join(l.root, string(month), "files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dir, string(key)+".csv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	l.logger.DebugContext(ctx, "Archived upload", "month", month, "file_key", key, "path", path, "bytes", len(data))
	return path, nil
}

// Nop discards uploads.
type Nop struct{}

func (Nop) Store(context.Context, core.Period, core.FileKey, []byte) (string, error) { return "", nil }

// objectName is the bucket-relative name of an archived upload.
func objectName(prefix string, month core.Period, key core.FileKey) string {
	name := fmt.Sprintf("%s/%s.csv", month, key)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
