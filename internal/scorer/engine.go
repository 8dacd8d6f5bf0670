// Package scorer turns a merged record into a lead score. The engine is pure
// and deterministic: no I/O, no clock reads (the reference time is an input),
// the same record always yields the same breakdown.
package scorer

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/sells-group/trackscout/internal/model"
)

// ScoringError means the input violated the engine's contract (nil record,
// missing identity). It is a hard failure, distinct from low scores.
type ScoringError struct {
	Reason string
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scorer: %s", e.Reason)
}

// Engine scores merged records against a rule-table set.
type Engine struct {
	tables *Tables
}

// New creates an engine. A nil tables argument uses the embedded defaults.
func New(tables *Tables) *Engine {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Engine{tables: tables}
}

// Score produces the breakdown for one record. ref anchors the recency
// checks (release lookback); callers pass time.Now().
func (e *Engine) Score(rec *model.MergedRecord, ref time.Time) (*model.ScoreBreakdown, error) {
	if rec == nil {
		return nil, &ScoringError{Reason: "nil record"}
	}
	if rec.ArtistName == "" {
		return nil, &ScoringError{Reason: "record has no artist name"}
	}

	indScore, indClass := e.independence(rec)
	ytClass, ytPoints := e.classifyYouTube(rec)
	oppScore := e.opportunity(rec, ref, ytPoints)
	geoScore := e.geographic(rec.Country)

	total := model.TotalFrom(indScore, oppScore, geoScore)

	return &model.ScoreBreakdown{
		ISRC:       rec.ISRC.String(),
		ArtistName: rec.ArtistName,

		IndependenceScore: indScore,
		IndependenceClass: indClass,
		OpportunityScore:  oppScore,
		GeographicScore:   geoScore,
		TotalScore:        total,

		Tier:         model.TierFor(total),
		YouTubeClass: ytClass,

		Confidence:      confidence(rec),
		DataSourcesUsed: rec.DataSourcesUsed,
	}, nil
}

// independence classifies the label/distributor situation with the first
// matching rule in the ordered table.
func (e *Engine) independence(rec *model.MergedRecord) (float64, string) {
	artist := strings.ToLower(strings.TrimSpace(rec.ArtistName))

	var fallback *IndependenceClass
	for i := range e.tables.Independence.Classes {
		c := &e.tables.Independence.Classes[i]
		if c.Fallback {
			if fallback == nil {
				fallback = c
			}
			continue
		}
		if c.MatchNoLabels && len(rec.Labels) == 0 {
			return c.Score, c.Name
		}
		for _, l := range rec.Labels {
			name := strings.ToLower(strings.TrimSpace(l.Name))
			if c.MatchArtistLabel && name == artist {
				return c.Score, c.Name
			}
			for _, kw := range c.Keywords {
				if strings.Contains(name, kw) {
					return c.Score, c.Name
				}
			}
		}
	}

	if fallback != nil && len(rec.Labels) > 0 {
		return fallback.Score, fallback.Name
	}
	return 0, "unclassified"
}

// opportunity sums the additive criteria, capped at the table's maximum.
func (e *Engine) opportunity(rec *model.MergedRecord, ref time.Time, ytPoints float64) float64 {
	t := e.tables.Opportunity
	score := ytPoints

	if rec.SpotifyQueried && !rec.OnSpotify {
		score += t.AbsentSpotify
	}
	if rec.OnSpotify && rec.MarketCount > 0 && rec.MarketCount < t.MarketThreshold {
		score += t.NarrowMarkets
	}
	if !rec.HasPublisher {
		score += t.NoPublisher
	}
	if l := effectiveListeners(rec); l >= t.ListenersMin && l <= t.ListenersMax {
		score += t.GrowingListeners
	}
	if rec.LatestRelease != nil {
		cutoff := ref.AddDate(0, -t.ReleaseLookbackMonths, 0)
		if rec.LatestRelease.After(cutoff) {
			score += t.RecentRelease
		}
	}

	if score > t.Cap {
		score = t.Cap
	}
	return score
}

// geographic scores the artist's country after ISO-region normalization.
func (e *Engine) geographic(country string) float64 {
	t := e.tables.Geographic
	code := normalizeCountry(country)
	if code == "" {
		return t.Default
	}
	if pts, ok := t.Countries[code]; ok {
		return pts
	}
	for _, c := range t.EnglishSpeaking {
		if c == code {
			return t.EnglishScore
		}
	}
	return t.Default
}

// normalizeCountry canonicalizes a country string to an uppercase ISO 3166-1
// alpha-2 code, tolerating case and common variants.
func normalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	region, err := language.ParseRegion(s)
	if err != nil {
		return ""
	}
	return region.String()
}

// effectiveListeners picks the best available audience-size signal.
func effectiveListeners(rec *model.MergedRecord) int64 {
	if rec.MonthlyListeners > 0 {
		return rec.MonthlyListeners
	}
	return rec.LastFMListeners
}

// confidence grows with each optional provider that contributed: 40 for the
// primary alone, +20 per optional source, topping out at 100.
func confidence(rec *model.MergedRecord) float64 {
	c := 40 + 20*float64(rec.ContributedOptional())
	if c > 100 {
		c = 100
	}
	return c
}
