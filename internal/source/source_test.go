package source

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/ratelimit"
	"github.com/sells-group/trackscout/internal/resilience"
	"github.com/sells-group/trackscout/pkg/lastfm"
	"github.com/sells-group/trackscout/pkg/musicbrainz"
	"github.com/sells-group/trackscout/pkg/spotify"
	"github.com/sells-group/trackscout/pkg/youtube"
)

func mustISRC(t *testing.T, s string) model.ISRC {
	t.Helper()
	id, err := model.ParseISRC(s)
	require.NoError(t, err)
	return id
}

// openLimiter admits everything: no provider configured means unmetered.
func openLimiter() *ratelimit.Limiter {
	return ratelimit.New(nil)
}

type fakeMusicBrainz struct {
	rec      *musicbrainz.Recording
	err      error
	failOnce error // returned on the first call only
	calls    int
}

func (f *fakeMusicBrainz) LookupISRC(ctx context.Context, isrc string) (*musicbrainz.Recording, error) {
	f.calls++
	if f.failOnce != nil && f.calls == 1 {
		return nil, f.failOnce
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func TestMusicBrainzResolve_MapsRecord(t *testing.T) {
	rel := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	api := &fakeMusicBrainz{rec: &musicbrainz.Recording{
		Title:  "Night Drive",
		Artist: musicbrainz.Artist{MBID: "mbid-123", Name: "Vera Nocturne", Country: "US"},
		Labels: []musicbrainz.Label{{Name: "Vera Nocturne", Type: "Original Production"}},
		HasPublisher:  false,
		LatestRelease: &rel,
		ReleaseCount:  2,
	}}

	s := NewMusicBrainz(api, openLimiter(), time.Second)
	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})

	require.Equal(t, StatusOK, res.Status)
	require.NotNil(t, res.Record)
	assert.Equal(t, model.ProviderMusicBrainz, res.Record.Provider)
	assert.Equal(t, "Vera Nocturne", res.Record.ArtistName)
	assert.Equal(t, "mbid-123", res.Record.ArtistID)
	assert.Equal(t, "US", res.Record.Country)
	assert.Equal(t, 2, res.Record.ReleaseCount)
	assert.Equal(t, 1.0, res.Record.Confidence)
	assert.True(t, s.Required())
}

func TestMusicBrainzResolve_NotFoundIsTerminal(t *testing.T) {
	api := &fakeMusicBrainz{err: musicbrainz.ErrNotFound}
	s := NewMusicBrainz(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, 1, api.calls, "not-found must not be retried")
}

func TestMusicBrainzResolve_TransientRetriedOnce(t *testing.T) {
	api := &fakeMusicBrainz{err: resilience.NewTransientError(eris.New("flaky"), 503)}
	s := NewMusicBrainz(api, openLimiter(), time.Second)
	s.retry.Backoff = time.Millisecond

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Equal(t, 2, api.calls)
}

func TestMusicBrainzResolve_RetryIsBudgeted(t *testing.T) {
	// The retried request must be acquired like any other: with a per-minute
	// window both physical calls are recorded against the budget.
	lim := ratelimit.New(map[string]ratelimit.Limits{
		model.ProviderMusicBrainz: {PerMinute: 10},
	})
	api := &fakeMusicBrainz{
		failOnce: resilience.NewTransientError(eris.New("flaky"), 503),
		rec:      &musicbrainz.Recording{Title: "Night Drive"},
	}
	s := NewMusicBrainz(api, lim, time.Second)
	s.retry.Backoff = time.Millisecond

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 2, api.calls)

	st := lim.Status(model.ProviderMusicBrainz)
	require.Len(t, st, 1)
	assert.Equal(t, 2, st[0].Used, "both the call and its retry must be recorded")
}

func TestMusicBrainzResolve_RetryBlockedByBudget(t *testing.T) {
	// 1 req/s, no burst: the first call spends the only slot, so the retry
	// cannot be admitted within zero patience and must never reach the network.
	lim := ratelimit.New(map[string]ratelimit.Limits{
		model.ProviderMusicBrainz: {PerSecond: 1},
	})
	api := &fakeMusicBrainz{err: resilience.NewTransientError(eris.New("flaky"), 503)}
	s := NewMusicBrainz(api, lim, 0)
	s.retry.Backoff = time.Millisecond

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Equal(t, 1, api.calls, "retry must not exceed the per-second budget")
}

func TestMusicBrainzResolve_RateLimitSkip(t *testing.T) {
	// 1 req/s and the slot already spent: patience 0 cannot wait it out.
	lim := ratelimit.New(map[string]ratelimit.Limits{
		model.ProviderMusicBrainz: {PerSecond: 1},
	})
	require.Zero(t, lim.Acquire(model.ProviderMusicBrainz, "lookup"))

	api := &fakeMusicBrainz{rec: &musicbrainz.Recording{Title: "x"}}
	s := NewMusicBrainz(api, lim, 0)

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.True(t, res.RateLimited())
	assert.Zero(t, api.calls, "over-budget resolve must not reach the network")
}

type fakeSpotify struct {
	track     *spotify.Track
	trackErr  error
	artist    *spotify.ArtistInfo
	artistErr error
}

func (f *fakeSpotify) TrackByISRC(ctx context.Context, isrc string) (*spotify.Track, error) {
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	return f.track, nil
}

func (f *fakeSpotify) Artist(ctx context.Context, id string) (*spotify.ArtistInfo, error) {
	if f.artistErr != nil {
		return nil, f.artistErr
	}
	return f.artist, nil
}

func TestSpotifyResolve_TrackAndArtist(t *testing.T) {
	api := &fakeSpotify{
		track: &spotify.Track{
			ID: "trk1", Name: "Night Drive", ArtistID: "art1",
			ArtistName: "Vera Nocturne", ReleaseDate: "2025-06-20", MarketCount: 3,
		},
		artist: &spotify.ArtistInfo{ID: "art1", Followers: 48210},
	}
	s := NewSpotify(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	require.Equal(t, StatusOK, res.Status)
	assert.True(t, res.Record.OnSpotify)
	assert.Equal(t, 3, res.Record.MarketCount)
	assert.Equal(t, int64(48210), res.Record.Followers)
	assert.Equal(t, int64(48210), res.Record.MonthlyListeners)
	require.NotNil(t, res.Record.LatestRelease)
	assert.False(t, s.Required())
}

func TestSpotifyResolve_ArtistFailureStillContributesTrack(t *testing.T) {
	api := &fakeSpotify{
		track:     &spotify.Track{ID: "trk1", ArtistID: "art1", MarketCount: 2},
		artistErr: eris.New("permanent"),
	}
	s := NewSpotify(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	require.Equal(t, StatusOK, res.Status)
	assert.True(t, res.Record.OnSpotify)
	assert.Zero(t, res.Record.Followers)
}

func TestSpotifyResolve_NotFound(t *testing.T) {
	api := &fakeSpotify{trackErr: spotify.ErrNotFound}
	s := NewSpotify(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	assert.Equal(t, StatusNotFound, res.Status)
}

type fakeYouTube struct {
	ref        *youtube.ChannelRef
	searchErr  error
	details    *youtube.ChannelDetails
	detailsErr error
	uploads    int
	uploadsErr error
}

func (f *fakeYouTube) SearchChannel(ctx context.Context, name string) (*youtube.ChannelRef, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.ref, nil
}

func (f *fakeYouTube) ChannelDetails(ctx context.Context, id string) (*youtube.ChannelDetails, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details, nil
}

func (f *fakeYouTube) UploadsSince(ctx context.Context, playlistID string, cutoff time.Time) (int, error) {
	if f.uploadsErr != nil {
		return 0, f.uploadsErr
	}
	return f.uploads, nil
}

func TestYouTubeResolve_FullChannel(t *testing.T) {
	api := &fakeYouTube{
		ref: &youtube.ChannelRef{ChannelID: "UCabc", Title: "Vera Nocturne"},
		details: &youtube.ChannelDetails{
			ChannelID: "UCabc", Title: "Vera Nocturne",
			Subscribers: 1530, TotalViews: 204000, VideoCount: 48,
			UploadsPlaylist: "UUabc",
		},
		uploads: 7,
	}
	s := NewYouTube(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{
		ISRC: mustISRC(t, "USRC17607839"), ArtistName: "Vera Nocturne",
	})
	require.Equal(t, StatusOK, res.Status)
	require.NotNil(t, res.Record.Channel)
	assert.Equal(t, int64(1530), res.Record.Channel.Subscribers)
	assert.Equal(t, 7, res.Record.Channel.UploadsLast90d)
}

func TestYouTubeResolve_NoChannelIsOKWithNilStats(t *testing.T) {
	api := &fakeYouTube{searchErr: youtube.ErrNotFound}
	s := NewYouTube(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{
		ISRC: mustISRC(t, "USRC17607839"), ArtistName: "Vera Nocturne",
	})
	require.Equal(t, StatusOK, res.Status)
	assert.Nil(t, res.Record.Channel)
}

func TestYouTubeResolve_NoArtistName(t *testing.T) {
	s := NewYouTube(&fakeYouTube{}, openLimiter(), time.Second)
	res := s.Resolve(context.Background(), Query{ISRC: mustISRC(t, "USRC17607839")})
	assert.Equal(t, StatusUnavailable, res.Status)
}

func TestYouTubeResolve_UploadsFailureKeepsStats(t *testing.T) {
	api := &fakeYouTube{
		ref: &youtube.ChannelRef{ChannelID: "UCabc"},
		details: &youtube.ChannelDetails{
			ChannelID: "UCabc", Subscribers: 10, UploadsPlaylist: "UUabc",
		},
		uploadsErr: eris.New("permanent"),
	}
	s := NewYouTube(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{
		ISRC: mustISRC(t, "USRC17607839"), ArtistName: "Vera Nocturne",
	})
	require.Equal(t, StatusOK, res.Status)
	require.NotNil(t, res.Record.Channel)
	assert.Zero(t, res.Record.Channel.UploadsLast90d)
}

type fakeLastFM struct {
	info *lastfm.ArtistInfo
	err  error
}

func (f *fakeLastFM) ArtistInfo(ctx context.Context, artist string) (*lastfm.ArtistInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func TestLastFMResolve_MapsStats(t *testing.T) {
	api := &fakeLastFM{info: &lastfm.ArtistInfo{
		Name: "Vera Nocturne", Listeners: 20541, Playcount: 301200,
	}}
	s := NewLastFM(api, openLimiter(), time.Second)

	res := s.Resolve(context.Background(), Query{
		ISRC: mustISRC(t, "USRC17607839"), ArtistName: "Vera Nocturne",
	})
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, int64(20541), res.Record.LastFMListeners)
	assert.Equal(t, int64(301200), res.Record.Playcount)
	assert.Equal(t, 0.6, res.Record.Confidence)
}

func TestLastFMResolve_NotFound(t *testing.T) {
	s := NewLastFM(&fakeLastFM{err: lastfm.ErrNotFound}, openLimiter(), time.Second)
	res := s.Resolve(context.Background(), Query{
		ISRC: mustISRC(t, "USRC17607839"), ArtistName: "nobody",
	})
	assert.Equal(t, StatusNotFound, res.Status)
}
