// Package store persists score breakdowns and failure reports, grouped by
// batch run. Two drivers: sqlite (default, zero-setup) and postgres.
package store

import (
	"context"

	"github.com/sells-group/trackscout/internal/model"
)

// ResultFilter specifies criteria for listing stored results.
type ResultFilter struct {
	RunID    string     `json:"run_id,omitempty"`
	Tier     model.Tier `json:"tier,omitempty"`
	MinTotal float64    `json:"min_total,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// StoredResult is one persisted breakdown with its run context.
type StoredResult struct {
	ID        string               `json:"id"`
	RunID     string               `json:"run_id"`
	Breakdown model.ScoreBreakdown `json:"breakdown"`
	CreatedAt string               `json:"created_at"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	SaveResult(ctx context.Context, runID string, b *model.ScoreBreakdown) error
	ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error)

	SaveFailure(ctx context.Context, runID string, f model.FailureReport) error
	ListFailures(ctx context.Context, runID string) ([]model.FailureReport, error)

	Migrate(ctx context.Context) error
	Close() error
}
