package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitcalc/internal/resilience"
)

func fastConfig(retries int) resilience.Config {
	return resilience.Config{MaxRetries: retries, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := resilience.Retry(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := resilience.Retry(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("still failing")
	})
	require.EqualError(t, err, "still failing")
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := resilience.Retry(context.Background(), fastConfig(5), func() error {
		calls++
		return resilience.Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := resilience.Retry(ctx, fastConfig(3), func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := resilience.Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}
	assert.GreaterOrEqual(t, resilience.Backoff(cfg, 0), time.Second)
	assert.Less(t, resilience.Backoff(cfg, 0), 1500*time.Millisecond)
	assert.Equal(t, 3*time.Second, resilience.Backoff(cfg, 6))
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Hour,
	})
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.True(t, resilience.IsOpen(err))
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.False(t, called)
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.BreakerSettings{Name: "test", ConsecutiveFailures: 1})
	_, err := cb.Execute(func() (interface{}, error) { return nil, context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestRetry_StopsWhenBreakerOpen(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.BreakerSettings{Name: "test", ConsecutiveFailures: 1, OpenTimeout: time.Hour})
	calls := 0
	err := resilience.Retry(context.Background(), fastConfig(5), func() error {
		_, err := cb.Execute(func() (interface{}, error) {
			calls++
			return nil, errors.New("down")
		})
		return err
	})
	assert.True(t, resilience.IsOpen(err))
	assert.Equal(t, 1, calls)
}
