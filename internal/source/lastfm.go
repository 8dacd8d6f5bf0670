package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/resilience"
	"github.com/sells-group/trackscout/pkg/lastfm"
)

// LastFM resolves social-listening stats (listeners, playcount) by artist
// name. Lowest-confidence provider: name matching is fuzzy.
type LastFM struct {
	base
	api lastfm.Client
}

// NewLastFM wraps a Last.fm API client as a source client.
func NewLastFM(api lastfm.Client, limiter *ratelimit.Limiter, patience time.Duration) *LastFM {
	return &LastFM{base: newBase(limiter, patience), api: api}
}

func (s *LastFM) Name() string   { return model.ProviderLastFM }
func (s *LastFM) Required() bool { return false }

func (s *LastFM) Resolve(ctx context.Context, q Query) Result {
	if q.ArtistName == "" {
		return unavailable(model.ProviderLastFM, eris.New("lastfm: no artist name to look up"))
	}

	if err := s.acquire(ctx, model.ProviderLastFM, "getinfo"); err != nil {
		return unavailable(model.ProviderLastFM, err)
	}

	cfg := s.retryConfig(model.ProviderLastFM, "getinfo")
	info, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*lastfm.ArtistInfo, error) {
		return s.api.ArtistInfo(ctx, q.ArtistName)
	})
	switch {
	case eris.Is(err, lastfm.ErrNotFound):
		return notFound(model.ProviderLastFM)
	case err != nil:
		return unavailable(model.ProviderLastFM, err)
	}

	return ok(model.ProviderLastFM, &model.SourceRecord{
		Provider:        model.ProviderLastFM,
		FetchedAt:       s.now(),
		Confidence:      model.ConfidenceWeights[model.ProviderLastFM],
		ArtistName:      info.Name,
		LastFMListeners: info.Listeners,
		Playcount:       info.Playcount,
	})
}
