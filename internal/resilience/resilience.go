// Package resilience wraps outbound calls with retry and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds retry parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig retries twice starting at 500ms.
func DefaultConfig() Config {
	return Config{MaxRetries: 2, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry runs fn until it succeeds, returns a permanent error, the breaker
// is open, or MaxRetries is exhausted. It respects context cancellation.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var perm permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if IsOpen(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Backoff(cfg, attempt)):
			}
		}
	}
	return lastErr
}

// Backoff returns the wait before retry number attempt+1: exponential
// growth from InitialBackoff plus up to 50% jitter, capped at MaxBackoff.
func Backoff(cfg Config, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
	if half := int64(backoff / 2); half > 0 {
		backoff += time.Duration(rand.Int63n(half))
	}
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}

// BreakerSettings tunes NewCircuitBreaker.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

// NewCircuitBreaker trips after ConsecutiveFailures (default 5) and
// half-opens after OpenTimeout (default 30s). Context cancellation is not
// counted as a failure.
func NewCircuitBreaker(s BreakerSettings) *gobreaker.CircuitBreaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := s.ConsecutiveFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// IsOpen reports whether err was produced by a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
