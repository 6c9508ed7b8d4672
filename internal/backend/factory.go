package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"profitcalc/internal/adapters"
	"profitcalc/internal/amqp"
	"profitcalc/internal/archive"
	"profitcalc/internal/resilience"
	"profitcalc/internal/sheets"
	gsheet "profitcalc/internal/sheets/google"
	"profitcalc/internal/sheets/memory"
	"profitcalc/internal/storage"
	"profitcalc/internal/storage/files"
	memstore "profitcalc/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *slog.Logger
	recorder adapters.SyncRecorder
	retry    resilience.Config
}

type FactoryOption func(*DefaultFactory)

// WithSyncRecorder counts sheet sync outcomes, usually into metrics.
func WithSyncRecorder(r adapters.SyncRecorder) FactoryOption {
	return func(f *DefaultFactory) { f.recorder = r }
}

func WithRetry(cfg resilience.Config) FactoryOption {
	return func(f *DefaultFactory) { f.retry = cfg }
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger, opts ...FactoryOption) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &DefaultFactory{logger: logger, retry: resilience.DefaultConfig()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend implements Factory.CreateBackend. Components created before
// a failure are closed before returning.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b       = &Backend{}
		closers []func() error
	)
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*BackendResult, error) {
		if cerr := cleanup(); cerr != nil {
			f.logger.Warn("Cleanup after failed backend creation", "error", cerr)
		}
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath, f.logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize SQLite store: %w", err))
		}
		b.Store, b.Queue = store, store
		closers = append(closers, store.Close)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case FilesBackend:
		store, err := files.New(config.DataDirectory, f.logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize files store: %w", err))
		}
		b.Store = store
		f.logger.Info("Initialized files backend", "data_directory", config.DataDirectory)
	case MemoryBackend:
		b.Store = memstore.New()
		f.logger.Info("Initialized memory backend")
	default:
		return fail(fmt.Errorf("unsupported backend type: %s", config.Type))
	}

	switch config.Archive {
	case GCSArchive:
		gcs, err := archive.NewGCS(ctx, config.GCSBucket, config.GCSPrefix, f.logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize GCS archive: %w", err))
		}
		b.Archiver = gcs
		closers = append(closers, gcs.Close)
		f.logger.Info("Archiving uploads to GCS", "bucket", config.GCSBucket, "prefix", config.GCSPrefix)
	case LocalArchive:
		b.Archiver = archive.NewLocal(config.ArchiveRoot, f.logger)
	default:
		b.Archiver = archive.Nop{}
	}

	sink, err := f.createSink(ctx, config)
	if err != nil {
		return fail(err)
	}
	b.Sink = adapters.NewResilientSink(sink, f.retry, f.recorder, f.logger)

	// AMQP is optional: a broker outage at startup must not stop uploads
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync messages", "error", err)
		} else {
			b.AMQP = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	return &BackendResult{Backend: b, Cleanup: cleanup}, nil
}

func (f *DefaultFactory) createSink(ctx context.Context, config Config) (sheets.ReportSink, error) {
	if !config.SheetsEnabled() {
		f.logger.Info("No spreadsheet configured, keeping reports in memory")
		return memory.New(), nil
	}
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		SheetPrefix:   config.GoogleSheetPrefix,
		Credentials: gsheet.Credentials{
			JSON:            config.GoogleServiceAccountJSON,
			File:            config.GoogleServiceAccountFile,
			ApplicationFile: config.GoogleApplicationCredsFile,
		},
		Logger: f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets sink", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}
