package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/resilience"
	"github.com/sells-group/trackscout/pkg/youtube"
)

// uploadsLookback is the window for counting recent uploads.
const uploadsLookback = 90 * 24 * time.Hour

// YouTube resolves the artist's channel presence by name: a search operation
// (expensive under the daily unit quota) followed by cheap detail fetches.
// It needs the artist name from the primary answer, not the identifier.
type YouTube struct {
	base
	api youtube.Client
}

// NewYouTube wraps a YouTube Data API client as a source client.
func NewYouTube(api youtube.Client, limiter *ratelimit.Limiter, patience time.Duration) *YouTube {
	return &YouTube{base: newBase(limiter, patience), api: api}
}

func (s *YouTube) Name() string   { return model.ProviderYouTube }
func (s *YouTube) Required() bool { return false }

func (s *YouTube) Resolve(ctx context.Context, q Query) Result {
	if q.ArtistName == "" {
		return unavailable(model.ProviderYouTube, eris.New("youtube: no artist name to search"))
	}

	if err := s.acquire(ctx, model.ProviderYouTube, "search"); err != nil {
		return unavailable(model.ProviderYouTube, err)
	}

	cfg := s.retryConfig(model.ProviderYouTube, "search")
	ref, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*youtube.ChannelRef, error) {
		return s.api.SearchChannel(ctx, q.ArtistName)
	})
	switch {
	case eris.Is(err, youtube.ErrNotFound):
		// No channel exists. Still an answer: the record carries a nil
		// Channel and the classifier reads that as no presence.
		return ok(model.ProviderYouTube, &model.SourceRecord{
			Provider:   model.ProviderYouTube,
			FetchedAt:  s.now(),
			Confidence: model.ConfidenceWeights[model.ProviderYouTube],
		})
	case err != nil:
		return unavailable(model.ProviderYouTube, err)
	}

	if err := s.acquire(ctx, model.ProviderYouTube, "details"); err != nil {
		return unavailable(model.ProviderYouTube, err)
	}
	cfg = s.retryConfig(model.ProviderYouTube, "details")
	details, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*youtube.ChannelDetails, error) {
		return s.api.ChannelDetails(ctx, ref.ChannelID)
	})
	if err != nil {
		return unavailable(model.ProviderYouTube, err)
	}

	stats := &model.ChannelStats{
		ChannelID:   details.ChannelID,
		Title:       details.Title,
		Subscribers: details.Subscribers,
		TotalViews:  details.TotalViews,
		VideoCount:  details.VideoCount,
	}

	// Upload cadence is best-effort: the channel stats alone are enough to
	// contribute.
	if details.UploadsPlaylist != "" {
		if err := s.acquire(ctx, model.ProviderYouTube, "details"); err == nil {
			cutoff := s.now().Add(-uploadsLookback)
			n, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
				return s.api.UploadsSince(ctx, details.UploadsPlaylist, cutoff)
			})
			if err != nil {
				zap.L().Warn("youtube uploads count failed",
					zap.String("channel_id", details.ChannelID), zap.Error(err))
			} else {
				stats.UploadsLast90d = n
			}
		}
	}

	return ok(model.ProviderYouTube, &model.SourceRecord{
		Provider:   model.ProviderYouTube,
		FetchedAt:  s.now(),
		Confidence: model.ConfidenceWeights[model.ProviderYouTube],
		Channel:    stats,
	})
}
