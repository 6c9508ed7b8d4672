package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowBurstThenReject(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 1, Burst: 3})
	defer rl.Stop()
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Error("a token should refill after one second")
	}

	m := rl.GetMetrics()
	if m.TotalHits != 1 || m.ClientCount != 2 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")

	if n := rl.cleanupStaleEntries(); n != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", n)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("expected 1 active client, got %d", rl.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 0.5, Burst: 1})
	defer rl.Stop()
	rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}
