package scorer

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTablesYAML []byte

// IndependenceClass is one ordered rule in the independence table. Rules are
// evaluated top to bottom; the first match wins, so the table lists the most
// independent classes first and keyword-matched majors before the fallback.
type IndependenceClass struct {
	Name  string  `yaml:"name"`
	Score float64 `yaml:"score"`
	// MatchArtistLabel matches when a label name equals the artist name.
	MatchArtistLabel bool `yaml:"match_artist_label"`
	// MatchNoLabels matches when the record carries no labels at all.
	MatchNoLabels bool     `yaml:"match_no_labels"`
	Keywords      []string `yaml:"keywords"`
	// Fallback matches any labeled record nothing else claimed.
	Fallback bool `yaml:"fallback"`
}

// OpportunityTable holds the additive criteria points and their thresholds.
type OpportunityTable struct {
	AbsentSpotify         float64 `yaml:"absent_spotify"`
	NarrowMarkets         float64 `yaml:"narrow_markets"`
	MarketThreshold       int     `yaml:"market_threshold"`
	NoPublisher           float64 `yaml:"no_publisher"`
	GrowingListeners      float64 `yaml:"growing_listeners"`
	ListenersMin          int64   `yaml:"listeners_min"`
	ListenersMax          int64   `yaml:"listeners_max"`
	RecentRelease         float64 `yaml:"recent_release"`
	ReleaseLookbackMonths int     `yaml:"release_lookback_months"`
	Cap                   float64 `yaml:"cap"`
}

// GeographicTable maps normalized country codes to points.
type GeographicTable struct {
	Countries       map[string]float64 `yaml:"countries"`
	EnglishSpeaking []string           `yaml:"english_speaking"`
	EnglishScore    float64            `yaml:"english_score"`
	Default         float64            `yaml:"default"`
}

// YouTubeTable holds the classifier's points and thresholds.
type YouTubeTable struct {
	NoPresence           float64 `yaml:"no_presence"`
	Underperforming      float64 `yaml:"underperforming"`
	InconsistentUploader float64 `yaml:"inconsistent_uploader"`
	HighPotential        float64 `yaml:"high_potential"`
	Adequate             float64 `yaml:"adequate"`

	UnderperformRatio    float64 `yaml:"underperform_ratio"`
	InconsistentUploads  int     `yaml:"inconsistent_uploads"`
	HighPotentialUploads int     `yaml:"high_potential_uploads"`
	HighPotentialMaxSubs int64   `yaml:"high_potential_max_subs"`
}

// Tables is the full data-driven rule set the engine scores against.
type Tables struct {
	Independence struct {
		Classes []IndependenceClass `yaml:"classes"`
	} `yaml:"independence"`
	Opportunity OpportunityTable `yaml:"opportunity"`
	Geographic  GeographicTable  `yaml:"geographic"`
	YouTube     YouTubeTable     `yaml:"youtube"`
}

// DefaultTables decodes the embedded rule set. The embedded YAML is part of
// the build, so a decode failure is a programming error.
func DefaultTables() *Tables {
	t, err := parseTables(defaultTablesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTables reads a rule-set override from disk.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read tables %s", path)
	}
	return parseTables(data)
}

func parseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "scorer: parse tables")
	}
	if len(t.Independence.Classes) == 0 {
		return nil, eris.New("scorer: tables define no independence classes")
	}
	return &t, nil
}
