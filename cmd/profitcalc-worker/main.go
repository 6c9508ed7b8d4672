package main

import (
	"context"
	"errors"
	"os"

	"profitcalc/internal/backend"
	"profitcalc/internal/cli"
	applog "profitcalc/internal/log"
	"profitcalc/internal/services"
	"profitcalc/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting profitcalc-worker")

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Slog()).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	b := res.Backend
	if b.AMQP == nil && b.Queue == nil {
		logger.Error("Nothing to consume: configure AMQP_URL or the sqlite backend")
		_ = res.Cleanup()
		os.Exit(1)
	}
	if !bcfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled - reports are kept in memory only")
	}

	syncer := services.NewReportSyncer(b.Store, b.Sink, logger)
	syncWorker := worker.NewSyncWorker(syncer, logger.Slog())

	var processor *services.SyncProcessor
	if b.Queue != nil {
		pcfg := services.DefaultSyncProcessorConfig()
		pcfg.PollInterval = cfg.SyncInterval
		pcfg.BatchSize = cfg.SyncBatchSize
		pcfg.MaxRetries = cfg.SyncMaxRetries
		processor = services.NewSyncProcessor(b.Queue, syncer, pcfg, logger)
	}

	ctx, done := cli.GracefulShutdown(logger.Slog(), cfg.ShutdownTimeout, func(ctx context.Context) {
		if processor != nil {
			if err := processor.Stop(ctx); err != nil {
				logger.Warn("Sync processor stop error", applog.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	// months saved while the worker was down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	if processor != nil {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start sync processor", applog.FieldError, err)
		} else {
			logger.Info("Sync queue processor started", "interval", cfg.SyncInterval, "batch_size", cfg.SyncBatchSize)
		}
	}

	if b.AMQP != nil {
		go func() {
			err := b.AMQP.ConsumeReportSync(ctx, syncWorker.HandleReportSync)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
		}()
		logger.Info("Consuming report sync messages", "queue", bcfg.AMQPQueue)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
