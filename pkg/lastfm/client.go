// Package lastfm provides a client for the Last.fm API (artist.getInfo).
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trackscout/internal/resilience"
)

// ErrNotFound means Last.fm has no page for the artist.
var ErrNotFound = eris.New("lastfm: artist not found")

// lastfmErrArtistNotFound is the API error code for a missing artist.
const lastfmErrArtistNotFound = 6

// ArtistInfo holds the social-listening stats for an artist.
type ArtistInfo struct {
	Name      string
	Listeners int64
	Playcount int64
	Tags      []string
}

// Client defines the Last.fm operations used by the pipeline.
type Client interface {
	// ArtistInfo fetches listener and playcount stats by artist name.
	ArtistInfo(ctx context.Context, artist string) (*ArtistInfo, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Last.fm client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://ws.audioscrobbler.com/2.0",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ArtistInfo(ctx context.Context, artist string) (*ArtistInfo, error) {
	params := url.Values{}
	params.Set("method", "artist.getinfo")
	params.Set("artist", artist)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "lastfm: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "lastfm: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "lastfm: read response")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("lastfm: status %d: %s", resp.StatusCode, body), resp.StatusCode)
	}

	// Last.fm reports API errors as 200/4xx JSON bodies with an error code.
	var wire struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
		Artist  struct {
			Name  string `json:"name"`
			Stats struct {
				Listeners string `json:"listeners"`
				Playcount string `json:"playcount"`
			} `json:"stats"`
			Tags struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"tags"`
		} `json:"artist"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "lastfm: unmarshal response")
	}

	if wire.Error == lastfmErrArtistNotFound {
		return nil, ErrNotFound
	}
	if wire.Error != 0 {
		return nil, eris.Errorf("lastfm: api error %d: %s", wire.Error, wire.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("lastfm: unexpected status %d: %s", resp.StatusCode, body)
	}

	info := &ArtistInfo{
		Name:      wire.Artist.Name,
		Listeners: parseCount(wire.Artist.Stats.Listeners),
		Playcount: parseCount(wire.Artist.Stats.Playcount),
	}
	for _, t := range wire.Artist.Tags.Tag {
		info.Tags = append(info.Tags, t.Name)
	}
	return info, nil
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
