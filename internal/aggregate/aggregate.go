// Package aggregate runs the multi-provider pipeline: the required primary
// lookup first, then the optional providers concurrently, then a
// deterministic merge into a single record per identifier.
package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/resilience"
	"github.com/sells-group/trackscout/internal/source"
)

// Failure reasons as stored in failure reports and provider failure lists.
const (
	ReasonNotFound    = "not_found"
	ReasonUnavailable = "unavailable"
	ReasonRateLimited = "rate_limited"
	ReasonDisabled    = "disabled"
	ReasonInvalidISRC = "invalid_isrc"
	ReasonCanceled    = "canceled"
)

// Error is a terminal aggregation failure for one identifier: the primary
// provider could not supply an answer.
type Error struct {
	ISRC   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("aggregate: %s: %s", e.ISRC, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Pipeline aggregates provider answers for one identifier at a time. Safe
// for concurrent use.
type Pipeline struct {
	primary  source.Client
	optional []source.Client
	disabled []string

	// One breaker per optional provider: a provider failing repeatedly
	// across a batch gets benched instead of slowing every identifier.
	breakers map[string]*resilience.CircuitBreaker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDisabled records providers skipped for missing credentials, so every
// merged record names them in its failure list.
func WithDisabled(names ...string) Option {
	return func(p *Pipeline) { p.disabled = append(p.disabled, names...) }
}

// WithBreakerConfig overrides the default circuit breaker settings.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(p *Pipeline) {
		for _, c := range p.optional {
			p.breakers[c.Name()] = resilience.NewCircuitBreaker(cfg)
		}
	}
}

// New creates a pipeline around the primary provider and any enabled
// optional providers.
func New(primary source.Client, optional []source.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		primary:  primary,
		optional: optional,
		breakers: make(map[string]*resilience.CircuitBreaker, len(optional)),
	}
	for _, c := range optional {
		p.breakers[c.Name()] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run aggregates one identifier. The primary provider runs first and its
// failure is terminal; optional providers run concurrently and their
// failures degrade the record instead of aborting it.
func (p *Pipeline) Run(ctx context.Context, isrc model.ISRC) (*model.MergedRecord, error) {
	q := source.Query{ISRC: isrc}

	primRes := p.primary.Resolve(ctx, q)
	switch primRes.Status {
	case source.StatusNotFound:
		return nil, &Error{ISRC: isrc.String(), Reason: ReasonNotFound}
	case source.StatusUnavailable:
		reason := ReasonUnavailable
		if primRes.RateLimited() {
			reason = ReasonRateLimited
		}
		return nil, &Error{ISRC: isrc.String(), Reason: reason, Err: primRes.Err}
	}

	q.ArtistName = primRes.Record.ArtistName

	results := make([]source.Result, len(p.optional))
	g, gctx := errgroup.WithContext(ctx)
	for i, client := range p.optional {
		i, client := i, client
		g.Go(func() error {
			results[i] = p.resolveOptional(gctx, client, q)
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	merged := merge(isrc, primRes.Record, p.optional, results)
	for _, name := range p.disabled {
		merged.ProvidersFailed = append(merged.ProvidersFailed,
			model.ProviderFailure{Provider: name, Reason: ReasonDisabled})
	}

	zap.L().Debug("aggregated identifier",
		zap.String("isrc", isrc.String()),
		zap.Strings("sources", merged.DataSourcesUsed),
		zap.Int("failed", len(merged.ProvidersFailed)),
	)
	return merged, nil
}

// resolveOptional runs one optional provider behind its circuit breaker.
func (p *Pipeline) resolveOptional(ctx context.Context, client source.Client, q source.Query) source.Result {
	name := client.Name()
	cb := p.breakers[name]

	if err := cb.Allow(); err != nil {
		return source.Result{Provider: name, Status: source.StatusUnavailable, Err: err}
	}

	res := client.Resolve(ctx, q)
	if res.Status == source.StatusUnavailable {
		cb.Record(res.Err)
	} else {
		// Not-found is an answer, not an outage.
		cb.Record(nil)
	}
	return res
}
