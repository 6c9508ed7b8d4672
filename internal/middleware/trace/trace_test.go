package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddleware_SpanAndRequestID(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer tp.Shutdown(context.Background())

	var (
		gotRoute  string
		gotStatus int
		seenID    string
	)
	mw := NewMiddleware(tp.Tracer("test"), func(method, route string, status int, _ time.Duration) {
		gotRoute, gotStatus = route, status
	})

	r := chi.NewRouter()
	r.Use(mw.Middleware)
	r.Get("/api/months/{month}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/months/2025-07", nil))

	if gotRoute != "/api/months/{month}" {
		t.Errorf("route = %q", gotRoute)
	}
	if gotStatus != http.StatusNotFound {
		t.Errorf("status = %d", gotStatus)
	}
	if !strings.HasPrefix(seenID, "req_") || rec.Header().Get(RequestIDHeader) != seenID {
		t.Errorf("request id %q not propagated to header %q", seenID, rec.Header().Get(RequestIDHeader))
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "GET /api/months/{month}" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if mw.GetMetrics().TotalRequests != 1 {
		t.Errorf("unexpected metrics %+v", mw.GetMetrics())
	}
}

func TestIncomingRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	if got := incomingRequestID(r); got != "abc-123" {
		t.Errorf("got %q, want caller id", got)
	}

	r.Header.Set(RequestIDHeader, "bad id\n")
	if got := incomingRequestID(r); !strings.HasPrefix(got, "req_") {
		t.Errorf("invalid id should be replaced, got %q", got)
	}

	r.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	if got := incomingRequestID(r); !strings.HasPrefix(got, "req_") {
		t.Errorf("long id should be replaced, got %q", got)
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	if GetRequestID(context.Background()) != "" {
		t.Error("expected empty id")
	}
}
