package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesOnceOnTransient(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond}
	got, err := DoVal(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(eris.New("boom"), http.StatusBadGateway)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestDoVal_StopsAfterOneRetry(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("still down"), http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoVal_NoRetryOnPermanentError(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_BeforeRetryGateAbandonsRetry(t *testing.T) {
	calls := 0
	cfg := RetryConfig{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		BeforeRetry: func(ctx context.Context) error { return eris.New("no budget") },
	}
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("down"), 503)
	})
	require.Error(t, err)
	assert.True(t, IsTransient(err), "the attempt error surfaces, not the gate error")
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, Backoff: time.Minute}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
			calls++
			return 0, NewTransientError(eris.New("down"), 500)
		})
		assert.Error(t, err)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 503)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("x"), 500), "outer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code=%d", code)
	}
	for _, code := range []int{200, 400, 401, 404, 422, 429} {
		assert.False(t, IsTransientHTTPStatus(code), "code=%d", code)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(eris.New("down"))
	}
	assert.Equal(t, CircuitOpen, cb.State())
	assert.True(t, eris.Is(cb.Allow(), ErrCircuitOpen))

	// After the reset timeout a single probe is admitted.
	now = now.Add(31 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Probe success closes the circuit.
	cb.Record(nil)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second}).
		WithNow(func() time.Time { return now })

	require.NoError(t, cb.Allow())
	cb.Record(eris.New("down"))
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Allow())
	cb.Record(eris.New("still down"))
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Error(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	cb.Record(eris.New("one"))
	cb.Record(nil)
	cb.Record(eris.New("two"))
	assert.Equal(t, CircuitClosed, cb.State())
}
