// Package musicbrainz provides a client for the MusicBrainz web service,
// resolving a recording and its artist/label context from an ISRC.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trackscout/internal/resilience"
)

// ErrNotFound means MusicBrainz affirmatively has no recording for the ISRC.
var ErrNotFound = eris.New("musicbrainz: recording not found")

// Artist identifies the credited artist on a recording.
type Artist struct {
	MBID    string
	Name    string
	Country string
}

// Label is one label attached to a release of the recording.
type Label struct {
	Name string
	Type string
}

// Recording is the cleaned lookup result for one ISRC.
type Recording struct {
	Title        string
	Artist       Artist
	Labels       []Label
	HasPublisher bool
	// LatestRelease is the most recent release date found, nil when no
	// release carries a parseable date.
	LatestRelease *time.Time
	ReleaseCount  int
}

// Client defines the MusicBrainz operations used by the pipeline.
type Client interface {
	// LookupISRC resolves a recording by ISRC, including artist credits and
	// release label info. Returns ErrNotFound when MusicBrainz has no data.
	LookupISRC(ctx context.Context, isrc string) (*Recording, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a MusicBrainz client. MusicBrainz requires an identifying
// User-Agent on every request.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://musicbrainz.org/ws/2",
		userAgent: userAgent,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the isrc lookup response.
type isrcResponse struct {
	Recordings []struct {
		Title        string `json:"title"`
		ArtistCredit []struct {
			Artist struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Country string `json:"country"`
			} `json:"artist"`
		} `json:"artist-credit"`
		Releases []struct {
			Date      string `json:"date"`
			Country   string `json:"country"`
			LabelInfo []struct {
				Label struct {
					Name string `json:"name"`
					Type string `json:"type"`
				} `json:"label"`
			} `json:"label-info"`
		} `json:"releases"`
	} `json:"recordings"`
}

func (c *httpClient) LookupISRC(ctx context.Context, isrc string) (*Recording, error) {
	reqURL := fmt.Sprintf("%s/isrc/%s?inc=artist-credits+releases+labels&fmt=json", c.baseURL, isrc)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "musicbrainz: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "musicbrainz: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "musicbrainz: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("musicbrainz: status %d: %s", resp.StatusCode, body), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("musicbrainz: unexpected status %d: %s", resp.StatusCode, body)
	}

	var wire isrcResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "musicbrainz: unmarshal response")
	}
	if len(wire.Recordings) == 0 {
		return nil, ErrNotFound
	}

	return mapRecording(&wire), nil
}

// mapRecording flattens the wire shape into a Recording, taking the first
// recording (the ISRC endpoint returns matches ordered by relevance).
func mapRecording(wire *isrcResponse) *Recording {
	r := wire.Recordings[0]

	rec := &Recording{
		Title:        r.Title,
		ReleaseCount: len(r.Releases),
	}
	if len(r.ArtistCredit) > 0 {
		a := r.ArtistCredit[0].Artist
		rec.Artist = Artist{MBID: a.ID, Name: a.Name, Country: a.Country}
	}

	seen := make(map[string]bool)
	for _, rel := range r.Releases {
		if d, ok := parseReleaseDate(rel.Date); ok {
			if rec.LatestRelease == nil || d.After(*rec.LatestRelease) {
				t := d
				rec.LatestRelease = &t
			}
		}
		for _, li := range rel.LabelInfo {
			if li.Label.Name == "" || seen[li.Label.Name] {
				continue
			}
			seen[li.Label.Name] = true
			rec.Labels = append(rec.Labels, Label{Name: li.Label.Name, Type: li.Label.Type})
			if li.Label.Type == "Publisher" {
				rec.HasPublisher = true
			}
		}
	}

	return rec
}

// parseReleaseDate handles MusicBrainz partial dates: YYYY, YYYY-MM, YYYY-MM-DD.
func parseReleaseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
