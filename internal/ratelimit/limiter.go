// Package ratelimit enforces per-provider request budgets across rolling
// second/minute windows and a unit-weighted daily quota with a fixed UTC
// reset boundary. A single Limiter instance is shared by every in-flight
// aggregation so provider ceilings hold regardless of batch concurrency.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrPatienceExceeded is returned by Wait when the required wait is longer
// than the caller is willing to tolerate. Callers treat it as "rate limited,
// skip this provider now" — it is never a hard failure.
var ErrPatienceExceeded = eris.New("ratelimit: wait exceeds caller patience")

// Limits configures one provider's budget. Zero fields mean no ceiling at
// that granularity.
type Limits struct {
	PerSecond  int
	PerMinute  int
	DailyUnits int
	// OpCosts maps operation names to daily-quota units. Operations not
	// listed cost 1 unit. Costs apply to the daily quota only; every call
	// counts as one request toward the second/minute windows.
	OpCosts map[string]int
}

// WindowStatus is a diagnostic snapshot of one budget window.
type WindowStatus struct {
	Granularity string `json:"granularity"` // "second", "minute", "day"
	Used        int    `json:"used"`
	Limit       int    `json:"limit"`
	Remaining   int    `json:"remaining"`
}

type providerWindow struct {
	limits Limits

	secHits []time.Time
	minHits []time.Time

	dayStart time.Time
	dayUsed  int
}

// Limiter tracks budgets for all configured providers. It is safe for
// concurrent use; acquire-and-record is atomic under one mutex so concurrent
// callers can never jointly exceed a ceiling.
type Limiter struct {
	mu        sync.Mutex
	now       func() time.Time
	providers map[string]*providerWindow
}

// New creates a Limiter from per-provider limits.
func New(limits map[string]Limits) *Limiter {
	l := &Limiter{
		now:       time.Now,
		providers: make(map[string]*providerWindow, len(limits)),
	}
	for name, lim := range limits {
		l.providers[name] = &providerWindow{limits: lim}
	}
	return l
}

// WithNow sets a fixed or fake clock for testing.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

// Acquire attempts to admit one call of the given operation. A zero return
// means the usage was recorded and the caller may proceed immediately. A
// nonzero return is the duration until capacity frees up (oldest request
// leaving its rolling window, or the daily reset boundary); nothing is
// recorded and the caller must re-acquire after waiting. Acquire never
// errors for being over budget.
func (l *Limiter) Acquire(provider, op string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.providers[provider]
	if !ok {
		// Unconfigured providers are unmetered.
		return 0
	}

	now := l.now()
	w.prune(now)

	if w.limits.PerSecond > 0 && len(w.secHits) >= w.limits.PerSecond {
		return w.secHits[0].Add(time.Second).Sub(now)
	}
	if w.limits.PerMinute > 0 && len(w.minHits) >= w.limits.PerMinute {
		return w.minHits[0].Add(time.Minute).Sub(now)
	}

	cost := w.opCost(op)
	if w.limits.DailyUnits > 0 && w.dayUsed+cost > w.limits.DailyUnits {
		return w.dayStart.Add(24 * time.Hour).Sub(now)
	}

	// Capacity everywhere: record the usage.
	if w.limits.PerSecond > 0 {
		w.secHits = append(w.secHits, now)
	}
	if w.limits.PerMinute > 0 {
		w.minHits = append(w.minHits, now)
	}
	if w.limits.DailyUnits > 0 {
		w.dayUsed += cost
	}
	return 0
}

// Wait acquires capacity, sleeping through any returned waits, until either
// the call is admitted, the accumulated wait would exceed patience
// (ErrPatienceExceeded), or ctx is cancelled. A patience of zero tolerates
// no wait at all.
func (l *Limiter) Wait(ctx context.Context, provider, op string, patience time.Duration) error {
	deadline := l.clock()().Add(patience)

	for {
		d := l.Acquire(provider, op)
		if d == 0 {
			return nil
		}
		if l.clock()().Add(d).After(deadline) {
			return eris.Wrapf(ErrPatienceExceeded, "%s: wait %s", provider, d)
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Status reports used/limit/remaining for each configured window of the
// provider. Unknown providers report nothing.
func (l *Limiter) Status(provider string) []WindowStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.providers[provider]
	if !ok {
		return nil
	}
	w.prune(l.now())

	var out []WindowStatus
	if w.limits.PerSecond > 0 {
		out = append(out, windowStatus("second", len(w.secHits), w.limits.PerSecond))
	}
	if w.limits.PerMinute > 0 {
		out = append(out, windowStatus("minute", len(w.minHits), w.limits.PerMinute))
	}
	if w.limits.DailyUnits > 0 {
		out = append(out, windowStatus("day", w.dayUsed, w.limits.DailyUnits))
	}
	return out
}

// Providers returns the configured provider names.
func (l *Limiter) Providers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.providers))
	for name := range l.providers {
		names = append(names, name)
	}
	return names
}

func (l *Limiter) clock() func() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

func windowStatus(gran string, used, limit int) WindowStatus {
	return WindowStatus{
		Granularity: gran,
		Used:        used,
		Limit:       limit,
		Remaining:   max(limit-used, 0),
	}
}

func (w *providerWindow) opCost(op string) int {
	if c, ok := w.limits.OpCosts[op]; ok && c > 0 {
		return c
	}
	return 1
}

// prune drops rolling-window entries that have aged out and rolls the daily
// window forward across its fixed UTC-midnight boundary.
func (w *providerWindow) prune(now time.Time) {
	w.secHits = dropBefore(w.secHits, now.Add(-time.Second))
	w.minHits = dropBefore(w.minHits, now.Add(-time.Minute))

	dayStart := now.UTC().Truncate(24 * time.Hour)
	if !dayStart.Equal(w.dayStart) {
		w.dayStart = dayStart
		w.dayUsed = 0
	}
}

func dropBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
