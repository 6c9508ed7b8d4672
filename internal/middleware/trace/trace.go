// Package trace assigns request IDs and wraps each request in an
// OpenTelemetry server span.
package trace

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type ContextKey string

const (
	RequestIDKey    ContextKey = "request_id"
	RequestIDHeader            = "X-Request-ID"
	maxRequestIDLen            = 128
)

// Observer receives one call per completed request, typically metrics.
type Observer func(method, route string, status int, elapsed time.Duration)

// Middleware handles request tracing
type Middleware struct {
	tracer   oteltrace.Tracer
	observe  Observer
	total    atomic.Int64
	inflight atomic.Int64
}

// NewMiddleware uses tracer for spans; observe may be nil.
func NewMiddleware(tracer oteltrace.Tracer, observe Observer) *Middleware {
	if tracer == nil {
		tracer = otel.Tracer("profitcalc/http")
	}
	return &Middleware{tracer: tracer, observe: observe}
}

// Metrics tracks request counts
type Metrics struct {
	TotalRequests    int64
	InFlightRequests int64
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.total.Add(1)
		m.inflight.Add(1)
		defer m.inflight.Add(-1)

		requestID := incomingRequestID(r)
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		ctx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			oteltrace.WithSpanKind(oteltrace.SpanKindServer),
			oteltrace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request_id", requestID),
			))
		defer span.End()

		w.Header().Set(RequestIDHeader, requestID)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(rw, r)

		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", rw.statusCode),
		)
		if rw.statusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
		}
		if m.observe != nil {
			m.observe(r.Method, route, rw.statusCode, time.Since(start))
		}
	})
}

// routePattern is the matched chi pattern, so metrics do not get one label
// per month key.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// incomingRequestID keeps a caller-supplied ID when it is short and
// printable, otherwise generates one.
func incomingRequestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen || strings.ContainsFunc(id, func(c rune) bool { return c < 0x21 || c > 0x7e }) {
		return GenerateRequestID()
	}
	return id
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + id.String()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestIDFromRequest adapts GetRequestID for log middleware.
func RequestIDFromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:    m.total.Load(),
		InFlightRequests: m.inflight.Load(),
	}
}
