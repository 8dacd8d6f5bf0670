package model

import "time"

// Provider names as they appear in rate-limit config, source records and
// score provenance.
const (
	ProviderMusicBrainz = "musicbrainz"
	ProviderSpotify     = "spotify"
	ProviderYouTube     = "youtube"
	ProviderLastFM      = "lastfm"
)

// Confidence weights are fixed per provider and feed the numeric-field merge
// precedence (higher weight wins when fetch times are equal).
var ConfidenceWeights = map[string]float64{
	ProviderMusicBrainz: 1.0,
	ProviderSpotify:     0.9,
	ProviderYouTube:     0.8,
	ProviderLastFM:      0.6,
}

// LabelInfo is one label or distributor attached to a release.
type LabelInfo struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"` // e.g. "Original Production", "Distributor"
}

// ChannelStats holds video-platform channel statistics for an artist.
type ChannelStats struct {
	ChannelID      string `json:"channel_id"`
	Title          string `json:"title,omitempty"`
	Subscribers    int64  `json:"subscribers"`
	TotalViews     int64  `json:"total_views"`
	VideoCount     int64  `json:"video_count"`
	UploadsLast90d int    `json:"uploads_last_90d"`
}

// SourceRecord is one provider's raw contribution for an identifier. It is
// ephemeral: created per successful provider call, discarded after merge.
type SourceRecord struct {
	Provider   string    `json:"provider"`
	FetchedAt  time.Time `json:"fetched_at"`
	Confidence float64   `json:"confidence"`

	// Identity fields (authoritative only from the primary provider).
	ArtistName string `json:"artist_name,omitempty"`
	ArtistID   string `json:"artist_id,omitempty"`
	TrackTitle string `json:"track_title,omitempty"`
	Country    string `json:"country,omitempty"`

	// Label / distribution.
	Labels       []LabelInfo `json:"labels,omitempty"`
	HasPublisher bool        `json:"has_publisher,omitempty"`

	// Release activity.
	LatestRelease *time.Time `json:"latest_release,omitempty"`
	ReleaseCount  int        `json:"release_count,omitempty"`

	// Streaming metrics.
	OnSpotify        bool  `json:"on_spotify,omitempty"`
	MonthlyListeners int64 `json:"monthly_listeners,omitempty"`
	Followers        int64 `json:"followers,omitempty"`
	MarketCount      int   `json:"market_count,omitempty"`

	// Social listening.
	LastFMListeners int64 `json:"lastfm_listeners,omitempty"`
	Playcount       int64 `json:"playcount,omitempty"`

	// Video platform.
	Channel *ChannelStats `json:"channel,omitempty"`
}

// ProviderFailure records an optional provider that was skipped or failed
// during aggregation.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"` // "not_found", "unavailable", "rate_limited", "disabled"
}

// MergedRecord is the reconciled per-identifier view handed to the scoring
// engine. One winning value per field; identity fields always come from the
// primary provider and are never overridden.
type MergedRecord struct {
	ISRC ISRC `json:"isrc"`

	ArtistName string `json:"artist_name"`
	ArtistID   string `json:"artist_id"`
	TrackTitle string `json:"track_title"`
	Country    string `json:"country"`

	Labels       []LabelInfo `json:"labels,omitempty"`
	HasPublisher bool        `json:"has_publisher"`

	LatestRelease *time.Time `json:"latest_release,omitempty"`
	ReleaseCount  int        `json:"release_count"`

	OnSpotify        bool  `json:"on_spotify"`
	SpotifyQueried   bool  `json:"spotify_queried"`
	MonthlyListeners int64 `json:"monthly_listeners"`
	MarketCount      int   `json:"market_count"`

	LastFMListeners int64 `json:"lastfm_listeners"`
	Playcount       int64 `json:"playcount"`

	// YouTubeQueried distinguishes "provider answered, no channel exists"
	// (Channel nil, YouTubeQueried true) from "provider never contributed"
	// (YouTubeQueried false), which scores as unknown rather than no_presence.
	YouTubeQueried bool          `json:"youtube_queried"`
	Channel        *ChannelStats `json:"channel,omitempty"`

	DataSourcesUsed []string          `json:"data_sources_used"`
	ProvidersFailed []ProviderFailure `json:"providers_failed,omitempty"`
}

// ContributedOptional returns how many optional providers supplied data.
func (m *MergedRecord) ContributedOptional() int {
	n := 0
	for _, p := range m.DataSourcesUsed {
		if p != ProviderMusicBrainz {
			n++
		}
	}
	return n
}

// UsedProvider reports whether the named provider contributed to the merge.
func (m *MergedRecord) UsedProvider(name string) bool {
	for _, p := range m.DataSourcesUsed {
		if p == name {
			return true
		}
	}
	return false
}

// FailureReport describes an identifier that could not be scored.
type FailureReport struct {
	ISRC   string `json:"isrc"`
	Reason string `json:"reason"`
}
