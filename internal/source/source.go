// Package source adapts each external provider into a uniform SourceClient:
// resolve an identifier (or artist name) into a SourceRecord, honoring the
// shared rate limiter, retrying transient failures exactly once, and
// reporting expected conditions (not-found, unavailable, rate-limited) as
// values rather than errors.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/resilience"
)

// Status is the outcome class of a resolve attempt.
type Status int

const (
	// StatusOK means the provider returned data.
	StatusOK Status = iota
	// StatusNotFound means the provider affirmatively has no data. This is
	// a valid terminal answer, never retried.
	StatusNotFound
	// StatusUnavailable means the provider could not answer (transient
	// failure after the one permitted retry, or a rate-limit skip).
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one provider resolve.
type Result struct {
	Provider string
	Status   Status
	Record   *model.SourceRecord
	// Err carries the cause for StatusUnavailable; check for
	// ratelimit.ErrPatienceExceeded to distinguish rate-limit skips.
	Err error
}

// RateLimited reports whether the result is a rate-limit skip.
func (r Result) RateLimited() bool {
	return r.Err != nil && isPatienceExceeded(r.Err)
}

func ok(provider string, rec *model.SourceRecord) Result {
	return Result{Provider: provider, Status: StatusOK, Record: rec}
}

func notFound(provider string) Result {
	return Result{Provider: provider, Status: StatusNotFound}
}

func unavailable(provider string, err error) Result {
	return Result{Provider: provider, Status: StatusUnavailable, Err: err}
}

// Query carries what a provider needs to resolve an artist. ISRC is always
// set; ArtistName is populated from the primary provider's answer before any
// secondary provider runs.
type Query struct {
	ISRC       model.ISRC
	ArtistName string
}

// Client is one provider variant. Implementations never return Go errors for
// expected conditions — those are Result statuses.
type Client interface {
	Name() string
	// Required reports whether a failed resolve aborts the aggregation.
	Required() bool
	Resolve(ctx context.Context, q Query) Result
}

// deps shared by every variant.
type base struct {
	limiter  *ratelimit.Limiter
	patience time.Duration
	retry    resilience.RetryConfig
	now      func() time.Time
}

func newBase(limiter *ratelimit.Limiter, patience time.Duration) base {
	return base{
		limiter:  limiter,
		patience: patience,
		retry:    resilience.DefaultRetryConfig(),
		now:      time.Now,
	}
}

// acquire blocks on the limiter up to the variant's patience.
func (b *base) acquire(ctx context.Context, provider, op string) error {
	return b.limiter.Wait(ctx, provider, op, b.patience)
}

// retryConfig builds the per-call retry policy: log each retry, and
// re-acquire the limiter before the second attempt so the retried request is
// budgeted like any other. When the re-acquire cannot wait it out, the retry
// is abandoned and the first attempt's failure stands.
func (b *base) retryConfig(provider, op string) resilience.RetryConfig {
	cfg := b.retry
	cfg.OnRetry = resilience.RetryLogger(provider, op)
	cfg.BeforeRetry = func(ctx context.Context) error {
		return b.acquire(ctx, provider, op)
	}
	return cfg
}

func isPatienceExceeded(err error) bool {
	return eris.Is(err, ratelimit.ErrPatienceExceeded)
}
