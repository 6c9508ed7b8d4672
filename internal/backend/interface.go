package backend

import (
	"context"

	"profitcalc/internal/amqp"
	"profitcalc/internal/archive"
	"profitcalc/internal/sheets"
	"profitcalc/internal/storage"
)

// Backend bundles the persistence and delivery components selected by
// configuration.
type Backend struct {
	Store    storage.MonthStore
	Archiver archive.Archiver
	Sink     sheets.ReportSink
	// Queue is the durable sync outbox; only the sqlite backend has one.
	Queue storage.SyncQueue
	// AMQP is nil when no broker is configured or it was unreachable.
	AMQP *amqp.Client
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Files specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// AMQP, optional for every type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Archive     ArchiveType
	ArchiveRoot string
	GCSBucket   string
	GCSPrefix   string

	// Google Sheets, optional; reports go to memory when unset
	GoogleSpreadsheetID        string
	GoogleSheetPrefix          string
	GoogleServiceAccountJSON   string
	GoogleServiceAccountFile   string
	GoogleApplicationCredsFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	FilesBackend  BackendType = "files"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FilesBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ArchiveType selects where raw uploads are kept.
type ArchiveType string

const (
	LocalArchive ArchiveType = "local"
	GCSArchive   ArchiveType = "gcs"
	NoArchive    ArchiveType = "none"
)

func (at ArchiveType) IsValid() bool {
	switch at {
	case LocalArchive, GCSArchive, NoArchive:
		return true
	default:
		return false
	}
}
