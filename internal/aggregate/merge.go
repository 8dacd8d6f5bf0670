package aggregate

import (
	"sort"

	"github.com/sells-group/trackscout/internal/model"
	"github.com/sells-group/trackscout/internal/source"
)

// merge folds the primary record and the optional results into one
// MergedRecord. Identity fields always come from the primary and are never
// overridden. For overlapping numeric fields the winner is the most recently
// fetched contribution; ties go to the higher-confidence provider, then to
// the primary.
func merge(isrc model.ISRC, primary *model.SourceRecord, clients []source.Client, results []source.Result) *model.MergedRecord {
	m := &model.MergedRecord{
		ISRC:       isrc,
		ArtistName: primary.ArtistName,
		ArtistID:   primary.ArtistID,
		TrackTitle: primary.TrackTitle,
		Country:    primary.Country,

		Labels:       primary.Labels,
		HasPublisher: primary.HasPublisher,

		LatestRelease: primary.LatestRelease,
		ReleaseCount:  primary.ReleaseCount,

		DataSourcesUsed: []string{primary.Provider},
	}

	contributions := []*model.SourceRecord{primary}
	for i, res := range results {
		name := clients[i].Name()
		switch res.Status {
		case source.StatusOK:
			m.DataSourcesUsed = append(m.DataSourcesUsed, name)
			contributions = append(contributions, res.Record)
			markQueried(m, name)
		case source.StatusNotFound:
			// The provider answered "no data": that absence is itself
			// signal, so the queried flag is set even though nothing
			// merges in.
			markQueried(m, name)
			m.ProvidersFailed = append(m.ProvidersFailed,
				model.ProviderFailure{Provider: name, Reason: ReasonNotFound})
		case source.StatusUnavailable:
			reason := ReasonUnavailable
			if res.RateLimited() {
				reason = ReasonRateLimited
			}
			m.ProvidersFailed = append(m.ProvidersFailed,
				model.ProviderFailure{Provider: name, Reason: reason})
		}
	}

	// Highest precedence first; fields fill from the front.
	sort.SliceStable(contributions, func(i, j int) bool {
		a, b := contributions[i], contributions[j]
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Provider == model.ProviderMusicBrainz
	})

	for _, c := range contributions {
		if c.OnSpotify {
			m.OnSpotify = true
		}
		if m.MonthlyListeners == 0 && c.MonthlyListeners > 0 {
			m.MonthlyListeners = c.MonthlyListeners
		}
		if m.MarketCount == 0 && c.MarketCount > 0 {
			m.MarketCount = c.MarketCount
		}
		if m.LastFMListeners == 0 && c.LastFMListeners > 0 {
			m.LastFMListeners = c.LastFMListeners
		}
		if m.Playcount == 0 && c.Playcount > 0 {
			m.Playcount = c.Playcount
		}
		if m.Channel == nil && c.Channel != nil {
			m.Channel = c.Channel
		}
		// A provider may know about a newer release than the registry does.
		if c.LatestRelease != nil &&
			(m.LatestRelease == nil || c.LatestRelease.After(*m.LatestRelease)) {
			m.LatestRelease = c.LatestRelease
		}
	}

	return m
}

func markQueried(m *model.MergedRecord, provider string) {
	switch provider {
	case model.ProviderSpotify:
		m.SpotifyQueried = true
	case model.ProviderYouTube:
		m.YouTubeQueried = true
	}
}
