// Package observability holds the Prometheus metrics and the OpenTelemetry
// tracer setup.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profitcalc/internal/core"
)

// Sheets sync results.
const (
	SyncSuccess = "success"
	SyncFailure = "failure"
	SyncOpen    = "breaker_open"
)

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	rowsProcessed  *prometheus.CounterVec
	rowsSkipped    *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	sheetsSync     *prometheus.CounterVec
	uploads        *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry, so it may be
// called more than once in tests.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profitcalc_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profitcalc_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rowsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profitcalc_rows_processed_total",
			Help: "CSV rows classified, by source.",
		}, []string{"source"}),
		rowsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profitcalc_rows_skipped_total",
			Help: "CSV rows skipped (undated or failed), by source.",
		}, []string{"source"}),
		sourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profitcalc_source_failures_total",
			Help: "Source files that failed to decode or classify.",
		}, []string{"source"}),
		sheetsSync: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profitcalc_sheets_sync_total",
			Help: "Google Sheets report writes by result.",
		}, []string{"result"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profitcalc_uploads_total",
			Help: "Processed uploads by whether the month was saved.",
		}, []string{"saved"}),
	}
}

func (m *Metrics) RowProcessed(source core.Source) {
	m.rowsProcessed.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) RowSkipped(source core.Source) {
	m.rowsSkipped.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) SourceFailed(source core.Source) {
	m.sourceFailures.WithLabelValues(string(source)).Inc()
}

// SheetsSync counts one report write attempt.
func (m *Metrics) SheetsSync(result string) {
	m.sheetsSync.WithLabelValues(result).Inc()
}

func (m *Metrics) UploadProcessed(saved bool) {
	m.uploads.WithLabelValues(strconv.FormatBool(saved)).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
