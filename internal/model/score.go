package model

import "math"

// Tier is the coarse lead-priority bucket derived from the total score.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Dimension weights for the total score. The breakdown stores unweighted
// component scores; Total applies these.
const (
	WeightIndependence = 0.40
	WeightOpportunity  = 0.40
	WeightGeographic   = 0.20
)

// YouTubeClass labels the channel-vs-streaming mismatch for an artist.
type YouTubeClass string

const (
	YouTubeNoPresence    YouTubeClass = "no_presence"
	YouTubeUnderperform  YouTubeClass = "underperforming"
	YouTubeInconsistent  YouTubeClass = "inconsistent_uploader"
	YouTubeHighPotential YouTubeClass = "high_potential"
	YouTubeAdequate      YouTubeClass = "adequate"
	// YouTubeUnknown means the video-platform provider never contributed,
	// so the dimension cannot be judged at all.
	YouTubeUnknown YouTubeClass = "unknown"
)

// ScoreBreakdown is the scoring engine's output and the only artifact the
// core hands to callers for persistence.
type ScoreBreakdown struct {
	ISRC       string `json:"isrc"`
	ArtistName string `json:"artist_name"`

	IndependenceScore float64 `json:"independence_score"`
	IndependenceClass string  `json:"independence_class"`
	OpportunityScore  float64 `json:"opportunity_score"`
	GeographicScore   float64 `json:"geographic_score"`
	TotalScore        float64 `json:"total_score"`

	Tier         Tier         `json:"tier"`
	YouTubeClass YouTubeClass `json:"youtube_class"`

	Confidence      float64  `json:"confidence"`
	DataSourcesUsed []string `json:"data_sources_used"`
}

// TotalFrom computes the weighted total, rounded to one decimal place.
func TotalFrom(independence, opportunity, geographic float64) float64 {
	total := WeightIndependence*independence +
		WeightOpportunity*opportunity +
		WeightGeographic*geographic
	return math.Round(total*10) / 10
}

// TierFor maps a total score to its tier. Band lower bounds are inclusive.
func TierFor(total float64) Tier {
	switch {
	case total >= 70:
		return TierA
	case total >= 50:
		return TierB
	case total >= 30:
		return TierC
	default:
		return TierD
	}
}
