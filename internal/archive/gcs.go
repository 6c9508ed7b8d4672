package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"profitcalc/internal/core"
)

const uploadTimeout = 2 * time.Minute

// GCS writes uploads to gs://<bucket>/<prefix>/<month>/<key>.csv.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCS creates a storage client using Application Default Credentials
// unless opts say otherwise.
func NewGCS(ctx context.Context, bucket, prefix string, logger *slog.Logger, opts ...option.ClientOption) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS bucket")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

func (g *GCS) Store(ctx context.Context, month core.Period, key core.FileKey, data []byte) (string, error) {
	if !month.Valid() {
		return "", fmt.Errorf("archive %s: %w: %q", key, core.ErrInvalidPeriod, month)
	}
	name := objectName(g.prefix, month, key)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy upload to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", g.bucket, name)
	g.logger.InfoContext(ctx, "Archived upload to GCS", "month", month, "file_key", key, "uri", uri)
	return uri, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
