package aggregate

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trackscout/internal/model"
)

// DefaultConcurrency bounds how many identifiers aggregate at once. The
// shared rate limiter is the real throttle; this only caps goroutines.
const DefaultConcurrency = 10

// BatchOutput is the result of one batch run. Records is order-preserving
// and index-aligned with the input; failed identifiers leave a nil slot and
// a FailureReport.
type BatchOutput struct {
	RunID    string
	Records  []*model.MergedRecord
	Failures []model.FailureReport
}

// RunBatch aggregates a list of raw identifier strings. Invalid identifiers
// fail fast without spending any rate-limit budget; a canceled context stops
// new identifiers from starting but lets in-flight ones finish.
func (p *Pipeline) RunBatch(ctx context.Context, rawISRCs []string, concurrency int) *BatchOutput {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	out := &BatchOutput{
		RunID:   uuid.NewString(),
		Records: make([]*model.MergedRecord, len(rawISRCs)),
	}

	var mu sync.Mutex
	fail := func(raw, reason string) {
		mu.Lock()
		out.Failures = append(out.Failures, model.FailureReport{ISRC: raw, Reason: reason})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, raw := range rawISRCs {
		i, raw := i, raw
		if ctx.Err() != nil {
			fail(raw, ReasonCanceled)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				fail(raw, ReasonCanceled)
				return nil
			}

			isrc, err := model.ParseISRC(raw)
			if err != nil {
				fail(raw, ReasonInvalidISRC)
				return nil
			}

			// Cancellation stops identifiers from starting; one that has
			// started runs to completion so the batch never holds a
			// partially merged record.
			rec, err := p.Run(context.WithoutCancel(ctx), isrc)
			if err != nil {
				reason := ReasonUnavailable
				var aggErr *Error
				if errors.As(err, &aggErr) {
					reason = aggErr.Reason
				}
				fail(raw, reason)
				return nil
			}
			out.Records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.String("run_id", out.RunID),
		zap.Int("requested", len(rawISRCs)),
		zap.Int("failed", len(out.Failures)),
	)
	return out
}
