package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/resilience"
	"github.com/sells-group/trackscout/pkg/musicbrainz"
)

// MusicBrainz is the required primary provider: it resolves the identifier to
// artist identity, labels and release activity. Aggregation cannot proceed
// without its answer.
type MusicBrainz struct {
	base
	api musicbrainz.Client
}

// NewMusicBrainz wraps a MusicBrainz API client as a source client.
func NewMusicBrainz(api musicbrainz.Client, limiter *ratelimit.Limiter, patience time.Duration) *MusicBrainz {
	return &MusicBrainz{base: newBase(limiter, patience), api: api}
}

func (s *MusicBrainz) Name() string   { return model.ProviderMusicBrainz }
func (s *MusicBrainz) Required() bool { return true }

func (s *MusicBrainz) Resolve(ctx context.Context, q Query) Result {
	if err := s.acquire(ctx, model.ProviderMusicBrainz, "lookup"); err != nil {
		return unavailable(model.ProviderMusicBrainz, err)
	}

	cfg := s.retryConfig(model.ProviderMusicBrainz, "lookup")
	rec, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*musicbrainz.Recording, error) {
		return s.api.LookupISRC(ctx, q.ISRC.String())
	})
	switch {
	case eris.Is(err, musicbrainz.ErrNotFound):
		return notFound(model.ProviderMusicBrainz)
	case err != nil:
		zap.L().Warn("primary lookup failed",
			zap.String("isrc", q.ISRC.String()), zap.Error(err))
		return unavailable(model.ProviderMusicBrainz, err)
	}

	sr := &model.SourceRecord{
		Provider:      model.ProviderMusicBrainz,
		FetchedAt:     s.now(),
		Confidence:    model.ConfidenceWeights[model.ProviderMusicBrainz],
		ArtistName:    rec.Artist.Name,
		ArtistID:      rec.Artist.MBID,
		TrackTitle:    rec.Title,
		Country:       rec.Artist.Country,
		HasPublisher:  rec.HasPublisher,
		LatestRelease: rec.LatestRelease,
		ReleaseCount:  rec.ReleaseCount,
	}
	for _, l := range rec.Labels {
		sr.Labels = append(sr.Labels, model.LabelInfo{Name: l.Name, Type: l.Type})
	}
	return ok(model.ProviderMusicBrainz, sr)
}
