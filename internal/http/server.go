// Package http exposes the profit calculator as a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"profitcalc/internal/cache"
	"profitcalc/internal/core"
	applog "profitcalc/internal/log"
	"profitcalc/internal/middleware/ratelimit"
	"profitcalc/internal/middleware/security"
	"profitcalc/internal/middleware/trace"
	"profitcalc/internal/observability"
	"profitcalc/internal/services"
	"profitcalc/internal/sheets"
	"profitcalc/internal/storage"
)

const (
	// multipartMemory is how much of a multipart body is held in memory
	// before spilling to temp files.
	multipartMemory = 16 << 20

	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute
	cacheCleanup     = 10 * time.Minute
)

// Config carries the server's tunables. Zero values fall back to defaults.
type Config struct {
	Addr   string
	Window core.MonthWindow
	// MaxUploadBytes caps each uploaded file.
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
	CacheSize      int
	CacheTTL       time.Duration
	TrustedProxies []string
	Metrics        *observability.Metrics
	Logger         *applog.Logger
	// ReportDeleter removes a month's sheet after a delete when the store
	// has no sync queue of its own.
	ReportDeleter sheets.ReportDeleter
}

type Server struct {
	http.Server
	service *services.ProfitService
	store   storage.MonthStore
	deleter sheets.ReportDeleter
	window  core.MonthWindow

	maxUploadBytes int64

	monthCache   *cache.LRUCache[storage.MonthRecord]
	cacheManager *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracing  *trace.Middleware
	metrics  *observability.Metrics
	logger   *applog.Logger

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc *services.ProfitService, store storage.MonthStore) *Server {
	if cfg.Logger == nil {
		cfg.Logger = applog.Nop()
	}
	if cfg.Window == (core.MonthWindow{}) {
		cfg.Window = core.DefaultMonthWindow()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics()
	}
	logger := cfg.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		service:        svc,
		store:          store,
		deleter:        cfg.ReportDeleter,
		window:         cfg.Window,
		maxUploadBytes: cfg.MaxUploadBytes,
		monthCache:     cache.NewLRUCache[storage.MonthRecord](cfg.CacheSize, cfg.CacheTTL),
		cacheManager:   cache.NewManager(logger.Slog()),
		limiter:        ratelimit.NewLimiter(cfg.RateLimit),
		detector:       security.NewDetector(),
		tracing:        trace.NewMiddleware(observability.Tracer(), cfg.Metrics.ObserveHTTP),
		metrics:        cfg.Metrics,
		logger:         logger,
		started:        time.Now(),
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}
	s.cacheManager.Register(s.monthCache)
	s.cacheManager.StartCleanup(cacheCleanup)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(s.tracing.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(applog.AccessLog(s.detector.ExtractClientIP))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger.Slog()))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/profit/health", s.handleProfitHealth)

		limited := r.With(s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited))
		limited.Post("/profit/upload", s.handleUpload)
		limited.Post("/profit/validate", s.handleValidate)

		r.Get("/months", s.handleListMonths)
		r.Get("/months/{key}", s.handleGetMonth)
		r.Get("/months/{key}/spreadsheet", s.handleSpreadsheet)
		r.Delete("/months/{key}", s.handleDeleteMonth)

		r.Get("/debug/check-saved-data", s.handleCheckSavedData)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再試行してください")
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe runs until Shutdown; ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
