package storage

import (
	"context"
	"errors"
	"time"

	"profitcalc/internal/core"
)

var (
	ErrMonthNotFound = errors.New("month not found")
	ErrInvalidMonth  = errors.New("invalid month key")
)

// MonthMeta describes one saved upload batch.
type MonthMeta struct {
	Month         core.Period       `json:"month"`
	Timestamp     time.Time         `json:"timestamp"`
	UploadedFiles map[string]string `json:"uploaded_files"`
	BatchID       string            `json:"batch_id,omitempty"`
}

// MonthRecord is everything persisted for a target month.
type MonthRecord struct {
	Metadata    MonthMeta        `json:"metadata"`
	Results     core.Aggregate   `json:"results"`
	Spreadsheet []core.ReportRow `json:"spreadsheet_data"`
	Summary     core.Summary     `json:"summary"`
}

// MonthStore persists processed months.
type MonthStore interface {
	SaveMonth(ctx context.Context, rec MonthRecord) error
	// LoadMonth returns ErrMonthNotFound when nothing is stored for key.
	LoadMonth(ctx context.Context, key core.Period) (MonthRecord, error)
	// ListMonths returns saved months ordered by key.
	ListMonths(ctx context.Context) ([]MonthMeta, error)
	// DeleteMonth returns ErrMonthNotFound when nothing is stored for key.
	DeleteMonth(ctx context.Context, key core.Period) error
	Ping(ctx context.Context) error
	Close() error
}

// Sync queue item states.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

// Sync queue operations.
const (
	OpSyncReport   = "sync"
	OpDeleteReport = "delete"
)

// SyncItem is one queued sheets operation for a month.
type SyncItem struct {
	ID        int64
	Month     core.Period
	BatchID   string
	Operation string
	Status    string
	Attempts  int64
	LastError string
	CreatedAt time.Time
}

// SyncStats counts queue items by state.
type SyncStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// SyncQueue is the durable outbox drained by the sync processor.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, month core.Period, batchID, operation string) error
	DequeueSyncBatch(ctx context.Context, limit int) ([]SyncItem, error)
	MarkSyncProcessing(ctx context.Context, id int64) error
	MarkSyncComplete(ctx context.Context, id int64) error
	MarkSyncFailed(ctx context.Context, id int64, reason string) error
	IncrementSyncAttempt(ctx context.Context, id int64, reason string) error
	ResetStaleProcessing(ctx context.Context) error
	CleanupCompletedSyncs(ctx context.Context, before time.Time) error
	RetryFailedSyncs(ctx context.Context) error
	SyncQueueStats(ctx context.Context) (SyncStats, error)
}

// ValidateKey rejects keys that are not canonical periods. Stores use it
// before touching the filesystem or database.
func ValidateKey(key core.Period) error {
	if !key.Valid() {
		return ErrInvalidMonth
	}
	return nil
}
