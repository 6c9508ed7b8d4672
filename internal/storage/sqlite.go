package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"profitcalc/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps months and the sheets sync queue in one database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ MonthStore = (*SQLiteStore)(nil)
	_ SyncQueue  = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens dbPath, creating its directory, and applies migrations.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMonth replaces the stored month and queues a sheets sync in the same transaction.
func (s *SQLiteStore) SaveMonth(ctx context.Context, rec MonthRecord) error {
	key := rec.Metadata.Month
	if err := ValidateKey(key); err != nil {
		return err
	}

	files, err := json.Marshal(rec.Metadata.UploadedFiles)
	if err != nil {
		return fmt.Errorf("encode uploaded files: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	sheet, err := json.Marshal(rec.Spreadsheet)
	if err != nil {
		return fmt.Errorf("encode spreadsheet: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO months (month, batch_id, saved_at, uploaded_files, results, spreadsheet, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			batch_id = excluded.batch_id,
			saved_at = excluded.saved_at,
			uploaded_files = excluded.uploaded_files,
			results = excluded.results,
			spreadsheet = excluded.spreadsheet,
			summary = excluded.summary`,
		string(key), rec.Metadata.BatchID, rec.Metadata.Timestamp.UTC(), string(files), string(results), string(sheet), string(summary))
	if err != nil {
		return fmt.Errorf("upsert month %s: %w", key, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_queue (month, batch_id, operation) VALUES (?, ?, ?)`,
		string(key), rec.Metadata.BatchID, OpSyncReport)
	if err != nil {
		return fmt.Errorf("enqueue sync %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	s.logger.InfoContext(ctx, "Month saved to SQLite", "month", key, "batch_id", rec.Metadata.BatchID)
	return nil
}

func (s *SQLiteStore) LoadMonth(ctx context.Context, key core.Period) (MonthRecord, error) {
	if err := ValidateKey(key); err != nil {
		return MonthRecord{}, err
	}

	var (
		rec                            MonthRecord
		savedAt                        time.Time
		files, results, sheet, summary string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT batch_id, saved_at, uploaded_files, results, spreadsheet, summary
		FROM months WHERE month = ?`, string(key)).
		Scan(&rec.Metadata.BatchID, &savedAt, &files, &results, &sheet, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return MonthRecord{}, fmt.Errorf("%w: %s", ErrMonthNotFound, key)
	}
	if err != nil {
		return MonthRecord{}, fmt.Errorf("load month %s: %w", key, err)
	}

	rec.Metadata.Month = key
	rec.Metadata.Timestamp = savedAt
	for _, f := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"uploaded files", files, &rec.Metadata.UploadedFiles},
		{"results", results, &rec.Results},
		{"spreadsheet", sheet, &rec.Spreadsheet},
		{"summary", summary, &rec.Summary},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return MonthRecord{}, fmt.Errorf("decode %s of %s: %w", f.name, key, err)
		}
	}
	return rec, nil
}

func (s *SQLiteStore) ListMonths(ctx context.Context) ([]MonthMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, batch_id, saved_at, uploaded_files FROM months ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var out []MonthMeta
	for rows.Next() {
		var (
			m     MonthMeta
			month string
			files string
		)
		if err := rows.Scan(&month, &m.BatchID, &m.Timestamp, &files); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		m.Month = core.Period(month)
		if err := json.Unmarshal([]byte(files), &m.UploadedFiles); err != nil {
			return nil, fmt.Errorf("decode uploaded files of %s: %w", month, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMonth removes the month and queues removal of its sheet tab.
func (s *SQLiteStore) DeleteMonth(ctx context.Context, key core.Period) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM months WHERE month = ?`, string(key))
	if err != nil {
		return fmt.Errorf("delete month %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete month %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMonthNotFound, key)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_queue (month, operation) VALUES (?, ?)`, string(key), OpDeleteReport)
	if err != nil {
		return fmt.Errorf("enqueue delete %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	s.logger.InfoContext(ctx, "Month deleted from SQLite", "month", key)
	return nil
}

// EnqueueSync adds a pending queue item.
func (s *SQLiteStore) EnqueueSync(ctx context.Context, month core.Period, batchID, operation string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (month, batch_id, operation) VALUES (?, ?, ?)`,
		string(month), batchID, operation)
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// DequeueSyncBatch returns up to limit pending items, oldest first.
func (s *SQLiteStore) DequeueSyncBatch(ctx context.Context, limit int) ([]SyncItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month, batch_id, operation, status, attempts, last_error, created_at
		FROM sync_queue
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	defer rows.Close()

	var items []SyncItem
	for rows.Next() {
		var (
			it    SyncItem
			month string
		)
		if err := rows.Scan(&it.ID, &month, &it.BatchID, &it.Operation, &it.Status, &it.Attempts, &it.LastError, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		it.Month = core.Period(month)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) setStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("mark sync %d %s: %w", id, status, err)
	}
	return nil
}

func (s *SQLiteStore) MarkSyncProcessing(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, SyncProcessing)
}

func (s *SQLiteStore) MarkSyncComplete(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, SyncCompleted)
}

func (s *SQLiteStore) MarkSyncFailed(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, SyncFailed, reason, id)
	if err != nil {
		return fmt.Errorf("mark sync %d failed: %w", id, err)
	}
	return nil
}

// IncrementSyncAttempt records a failed attempt and returns the item to pending.
func (s *SQLiteStore) IncrementSyncAttempt(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, SyncPending, reason, id)
	if err != nil {
		return fmt.Errorf("increment sync attempt %d: %w", id, err)
	}
	return nil
}

// ResetStaleProcessing returns items left processing by a crashed worker to pending.
func (s *SQLiteStore) ResetStaleProcessing(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		SyncPending, SyncProcessing)
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.WarnContext(ctx, "Reset stale sync items", "count", n)
	}
	return nil
}

func (s *SQLiteStore) CleanupCompletedSyncs(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND updated_at < ?`, SyncCompleted, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup completed syncs: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RetryFailedSyncs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		SyncPending, SyncFailed)
	if err != nil {
		return fmt.Errorf("retry failed syncs: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SyncQueueStats(ctx context.Context) (SyncStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return SyncStats{}, fmt.Errorf("sync queue stats: %w", err)
	}
	defer rows.Close()

	var st SyncStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return SyncStats{}, fmt.Errorf("scan sync stats: %w", err)
		}
		switch status {
		case SyncPending:
			st.Pending = n
		case SyncProcessing:
			st.Processing = n
		case SyncCompleted:
			st.Completed = n
		case SyncFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}
