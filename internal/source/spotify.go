package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/resilience"
	"github.com/sells-group/trackscout/pkg/spotify"
)

// Spotify resolves streaming presence and audience size: track search by
// identifier, then a follow-up artist fetch for follower counts. A not-found
// answer is meaningful (absence from the platform) and reported as such.
type Spotify struct {
	base
	api spotify.Client
}

// NewSpotify wraps a Spotify API client as a source client.
func NewSpotify(api spotify.Client, limiter *ratelimit.Limiter, patience time.Duration) *Spotify {
	return &Spotify{base: newBase(limiter, patience), api: api}
}

func (s *Spotify) Name() string   { return model.ProviderSpotify }
func (s *Spotify) Required() bool { return false }

func (s *Spotify) Resolve(ctx context.Context, q Query) Result {
	if err := s.acquire(ctx, model.ProviderSpotify, "search"); err != nil {
		return unavailable(model.ProviderSpotify, err)
	}

	cfg := s.retryConfig(model.ProviderSpotify, "search")
	trk, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*spotify.Track, error) {
		return s.api.TrackByISRC(ctx, q.ISRC.String())
	})
	switch {
	case eris.Is(err, spotify.ErrNotFound):
		return notFound(model.ProviderSpotify)
	case err != nil:
		return unavailable(model.ProviderSpotify, err)
	}

	sr := &model.SourceRecord{
		Provider:    model.ProviderSpotify,
		FetchedAt:   s.now(),
		Confidence:  model.ConfidenceWeights[model.ProviderSpotify],
		ArtistName:  trk.ArtistName,
		TrackTitle:  trk.Name,
		OnSpotify:   true,
		MarketCount: trk.MarketCount,
	}
	if d, pOK := parseSpotifyDate(trk.ReleaseDate); pOK {
		sr.LatestRelease = &d
	}

	// The artist fetch enriches the record; the track answer alone is still
	// a usable contribution when it fails.
	if trk.ArtistID == "" {
		return ok(model.ProviderSpotify, sr)
	}
	if err := s.acquire(ctx, model.ProviderSpotify, "details"); err != nil {
		zap.L().Debug("spotify artist fetch skipped by limiter", zap.Error(err))
		return ok(model.ProviderSpotify, sr)
	}
	cfg = s.retryConfig(model.ProviderSpotify, "details")
	artist, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*spotify.ArtistInfo, error) {
		return s.api.Artist(ctx, trk.ArtistID)
	})
	if err != nil {
		zap.L().Warn("spotify artist fetch failed",
			zap.String("artist_id", trk.ArtistID), zap.Error(err))
		return ok(model.ProviderSpotify, sr)
	}

	sr.Followers = artist.Followers
	// Follower count stands in for monthly listeners: the public API does
	// not expose the listener figure directly.
	sr.MonthlyListeners = artist.Followers
	return ok(model.ProviderSpotify, sr)
}

// parseSpotifyDate handles release_date precision: day, month or year.
func parseSpotifyDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
