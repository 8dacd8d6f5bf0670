package scorer

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trackscout/internal/model"
)

var ref = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func mustISRC(t *testing.T, s string) model.ISRC {
	t.Helper()
	id, err := model.ParseISRC(s)
	require.NoError(t, err)
	return id
}

func baseRecord(t *testing.T) *model.MergedRecord {
	return &model.MergedRecord{
		ISRC:            mustISRC(t, "USRC17607839"),
		ArtistName:      "Vera Nocturne",
		Country:         "US",
		DataSourcesUsed: []string{model.ProviderMusicBrainz},
	}
}

func TestScore_SelfReleasedEmergingArtist(t *testing.T) {
	rel := ref.AddDate(0, -2, 0)
	rec := baseRecord(t)
	rec.Labels = []model.LabelInfo{{Name: "Vera Nocturne"}}
	rec.SpotifyQueried = true // queried, absent
	rec.LastFMListeners = 20541
	rec.LatestRelease = &rel
	rec.DataSourcesUsed = []string{model.ProviderMusicBrainz, model.ProviderLastFM}

	e := New(nil)
	b, err := e.Score(rec, ref)
	require.NoError(t, err)

	assert.Equal(t, 100.0, b.IndependenceScore)
	assert.Equal(t, "self-released", b.IndependenceClass)
	// absent 20 + no publisher 10 + growing band 15 + recent release 15
	assert.Equal(t, 60.0, b.OpportunityScore)
	assert.Equal(t, 30.0, b.GeographicScore)
	assert.Equal(t, 70.0, b.TotalScore)
	assert.Equal(t, model.TierA, b.Tier)
	assert.Equal(t, model.YouTubeUnknown, b.YouTubeClass)
	assert.Equal(t, 60.0, b.Confidence)
}

func TestScore_MajorLabelEstablishedArtist(t *testing.T) {
	rel := ref.AddDate(-3, 0, 0)
	rec := baseRecord(t)
	rec.Country = "DE"
	rec.Labels = []model.LabelInfo{{Name: "Universal Music Group"}}
	rec.HasPublisher = true
	rec.SpotifyQueried = true
	rec.OnSpotify = true
	rec.MonthlyListeners = 2_000_000
	rec.MarketCount = 180
	rec.LatestRelease = &rel
	rec.YouTubeQueried = true
	rec.Channel = &model.ChannelStats{Subscribers: 900_000, UploadsLast90d: 12}

	e := New(nil)
	b, err := e.Score(rec, ref)
	require.NoError(t, err)

	assert.Equal(t, 0.0, b.IndependenceScore)
	assert.Equal(t, "major-distributed", b.IndependenceClass)
	assert.Equal(t, 0.0, b.OpportunityScore)
	assert.Equal(t, 5.0, b.GeographicScore)
	assert.Equal(t, 1.0, b.TotalScore)
	assert.Equal(t, model.TierD, b.Tier)
	assert.Equal(t, model.YouTubeAdequate, b.YouTubeClass)
}

func TestScore_Deterministic(t *testing.T) {
	rec := baseRecord(t)
	rec.Labels = []model.LabelInfo{{Name: "Moonlit Tapes"}}
	rec.SpotifyQueried = true
	rec.OnSpotify = true
	rec.MarketCount = 12

	e := New(nil)
	first, err := e.Score(rec, ref)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Score(rec, ref)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_ContractViolations(t *testing.T) {
	e := New(nil)

	_, err := e.Score(nil, ref)
	var se *ScoringError
	require.ErrorAs(t, err, &se)

	rec := baseRecord(t)
	rec.ArtistName = ""
	_, err = e.Score(rec, ref)
	require.ErrorAs(t, err, &se)
}

func TestIndependence_Classes(t *testing.T) {
	e := New(nil)
	cases := []struct {
		name   string
		artist string
		labels []model.LabelInfo
		class  string
		score  float64
	}{
		{"no labels at all", "Vera", nil, "self-released", 100},
		{"label equals artist", "Vera", []model.LabelInfo{{Name: "vera"}}, "self-released", 100},
		{"distrokid", "Vera", []model.LabelInfo{{Name: "DistroKid LLC"}}, "small-distributor", 87.5},
		{"major", "Vera", []model.LabelInfo{{Name: "Sony Music Entertainment"}}, "major-distributed", 0},
		{"unknown indie", "Vera", []model.LabelInfo{{Name: "Moonlit Tapes"}}, "indie-label", 62.5},
		{"most independent wins", "Vera",
			[]model.LabelInfo{{Name: "Warner Records"}, {Name: "TuneCore"}},
			"small-distributor", 87.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &model.MergedRecord{ArtistName: tc.artist, Labels: tc.labels}
			score, class := e.independence(rec)
			assert.Equal(t, tc.class, class)
			assert.Equal(t, tc.score, score)
		})
	}
}

func TestGeographic_NormalizationAndBands(t *testing.T) {
	e := New(nil)
	cases := map[string]float64{
		"US": 30,
		"us": 30,
		"GB": 20,
		"CA": 15,
		"AU": 10,
		"IE": 10,
		"DE": 5,
		"":   5,
		"??": 5,
	}
	for country, want := range cases {
		assert.Equal(t, want, e.geographic(country), "country %q", country)
	}
}

func TestOpportunity_CappedAt100(t *testing.T) {
	rel := ref.AddDate(0, -1, 0)
	rec := baseRecord(t)
	rec.SpotifyQueried = true // absent: 20
	rec.LastFMListeners = 50_000
	rec.LatestRelease = &rel
	rec.YouTubeQueried = true // no channel + listeners: 25

	e := New(nil)
	// 25 + 20 + 10 + 15 + 15 = 85, under the cap.
	got := e.opportunity(rec, ref, 25)
	assert.Equal(t, 85.0, got)

	// Force past the cap.
	got = e.opportunity(rec, ref, 60)
	assert.Equal(t, 100.0, got)
}

func TestConfidence_GrowsWithOptionalProviders(t *testing.T) {
	rec := baseRecord(t)
	assert.Equal(t, 40.0, confidence(rec))

	rec.DataSourcesUsed = append(rec.DataSourcesUsed, model.ProviderSpotify)
	assert.Equal(t, 60.0, confidence(rec))

	rec.DataSourcesUsed = append(rec.DataSourcesUsed,
		model.ProviderYouTube, model.ProviderLastFM)
	assert.Equal(t, 100.0, confidence(rec))
}

func TestLoadTables_Override(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/tables.yaml"
	err := os.WriteFile(path, []byte(`
independence:
  classes:
    - name: everyone
      score: 50
      fallback: true
      match_no_labels: true
opportunity:
  cap: 10
geographic:
  default: 1
youtube: {}
`), 0o644)
	require.NoError(t, err)

	tbl, err := LoadTables(path)
	require.NoError(t, err)
	assert.Len(t, tbl.Independence.Classes, 1)
	assert.Equal(t, 10.0, tbl.Opportunity.Cap)

	_, err = LoadTables(dir + "/missing.yaml")
	assert.Error(t, err)
}
