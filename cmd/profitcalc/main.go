package main

import (
	"context"
	"os"
	"time"

	"profitcalc/internal/backend"
	"profitcalc/internal/classify"
	"profitcalc/internal/cli"
	"profitcalc/internal/core"
	apphttp "profitcalc/internal/http"
	"profitcalc/internal/ingest"
	applog "profitcalc/internal/log"
	"profitcalc/internal/middleware/ratelimit"
	"profitcalc/internal/observability"
	"profitcalc/internal/services"
)

// inlineSync writes a saved month straight to the sink when no broker or
// sync queue is configured.
type inlineSync struct {
	syncer *services.ReportSyncer
}

func (s inlineSync) PublishReportSync(ctx context.Context, month, _ string) error {
	return s.syncer.SyncMonth(ctx, core.Period(month))
}

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	window, err := cfg.Window()
	if err != nil {
		logger.Error("Invalid month window", applog.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()
	metrics := observability.NewMetrics()
	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{Enabled: cfg.TracingEnabled}, logger.Slog())
	if err != nil {
		logger.Error("Failed to set up tracing", applog.FieldError, err)
		os.Exit(1)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Slog(), backend.WithSyncRecorder(metrics)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	b := res.Backend

	opts := []services.ServiceOption{
		services.WithArchiver(b.Archiver),
		services.WithUploadRecorder(metrics),
		services.WithLimits(ingest.Limits{MaxBytes: cfg.MaxUploadBytes(), MaxRows: cfg.MaxRows}),
	}
	switch {
	case b.AMQP != nil:
		opts = append(opts, services.WithPublisher(b.AMQP))
	case b.Queue != nil:
		logger.Info("Sheet sync delegated to the sync queue worker")
	default:
		opts = append(opts, services.WithPublisher(inlineSync{services.NewReportSyncer(b.Store, b.Sink, logger)}))
		logger.Info("No broker configured, syncing sheets inline")
	}
	engine := classify.NewEngine(logger.Slog(), classify.WithObserver(metrics))
	svc := services.NewProfitService(engine, b.Store, logger, opts...)

	httpCfg := apphttp.Config{
		Addr:           ":" + cfg.Port,
		Window:         window,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Metrics: metrics,
		Logger:  logger,
	}
	// the sqlite store queues its own sheet deletions
	if b.Queue == nil {
		httpCfg.ReportDeleter = b.Sink
	}
	srv := apphttp.NewServer(httpCfg, svc, b.Store)
	srv.ReadTimeout = 2 * time.Minute
	srv.WriteTimeout = 2 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger.Slog(), cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("Tracing shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting profitcalc server",
		"port", cfg.Port,
		"backend", bcfg.Type,
		"archive", bcfg.Archive,
		"sheets", bcfg.SheetsEnabled(),
		"window_start", window.Start(),
		"window_end", window.End())

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
