package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the fixed-backoff retry applied to provider calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	// Provider calls use 2: one call plus one retry. Default: 2.
	MaxAttempts int

	// Backoff is the fixed delay before each retry. Default: 500ms.
	Backoff time.Duration

	// ShouldRetry overrides the default IsTransient check when set.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)

	// BeforeRetry gates each retry attempt after the backoff sleep. A non-nil
	// return abandons the retry and surfaces the previous attempt's error.
	// Provider calls use it to re-acquire rate-limit budget so a retry can
	// never issue an over-budget call.
	BeforeRetry func(ctx context.Context) error
}

// DefaultRetryConfig returns the retry-once policy used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		Backoff:     500 * time.Millisecond,
	}
}

// DoVal executes fn, retrying transient failures with a fixed backoff.
// Non-transient errors and context cancellation return immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}

		if cfg.BeforeRetry != nil {
			if gateErr := cfg.BeforeRetry(ctx); gateErr != nil {
				return zero, lastErr
			}
		}
	}

	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(provider, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying provider call",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
