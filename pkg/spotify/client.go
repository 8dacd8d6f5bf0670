// Package spotify provides a client for the Spotify Web API using the
// client-credentials flow: track search by ISRC and artist details.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trackscout/internal/resilience"
)

// ErrNotFound means Spotify has no track for the ISRC (or no such artist).
var ErrNotFound = eris.New("spotify: not found")

// Track is the cleaned result of an ISRC track search.
type Track struct {
	ID          string
	Name        string
	ArtistID    string
	ArtistName  string
	AlbumName   string
	ReleaseDate string
	MarketCount int
}

// ArtistInfo holds the artist-level streaming metrics.
type ArtistInfo struct {
	ID         string
	Name       string
	Followers  int64
	Popularity int
	Genres     []string
}

// Client defines the Spotify operations used by the pipeline.
type Client interface {
	// TrackByISRC finds the best-matching track for an ISRC.
	TrackByISRC(ctx context.Context, isrc string) (*Track, error)
	// Artist fetches follower counts and popularity for an artist ID.
	Artist(ctx context.Context, artistID string) (*ArtistInfo, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithTokenURL sets a custom token endpoint (for testing).
func WithTokenURL(u string) Option {
	return func(c *httpClient) { c.tokenURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	http         *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Spotify client with client-credentials auth.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://api.spotify.com/v1",
		tokenURL:     "https://accounts.spotify.com/api/token",
		http:         &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// token returns a cached access token, refreshing it when expired.
func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, form)
	if err != nil {
		return "", eris.Wrap(err, "spotify: create token request")
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "spotify: token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "spotify: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("spotify: token status %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "spotify: unmarshal token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// get performs an authorized GET and returns the body for 200, ErrNotFound
// for 404, and a TransientError for retryable statuses.
func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "spotify: create request")
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "spotify: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "spotify: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("spotify: status %d: %s", resp.StatusCode, body), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("spotify: unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *httpClient) TrackByISRC(ctx context.Context, isrc string) (*Track, error) {
	q := url.QueryEscape("isrc:" + isrc)
	body, err := c.get(ctx, "/search?q="+q+"&type=track&limit=1")
	if err != nil {
		return nil, err
	}

	var wire struct {
		Tracks struct {
			Items []struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Artists []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Name             string   `json:"name"`
					ReleaseDate      string   `json:"release_date"`
					AvailableMarkets []string `json:"available_markets"`
				} `json:"album"`
				AvailableMarkets []string `json:"available_markets"`
			} `json:"items"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "spotify: unmarshal search response")
	}
	if len(wire.Tracks.Items) == 0 {
		return nil, ErrNotFound
	}

	item := wire.Tracks.Items[0]
	t := &Track{
		ID:          item.ID,
		Name:        item.Name,
		AlbumName:   item.Album.Name,
		ReleaseDate: item.Album.ReleaseDate,
		MarketCount: len(item.AvailableMarkets),
	}
	if t.MarketCount == 0 {
		t.MarketCount = len(item.Album.AvailableMarkets)
	}
	if len(item.Artists) > 0 {
		t.ArtistID = item.Artists[0].ID
		t.ArtistName = item.Artists[0].Name
	}
	return t, nil
}

func (c *httpClient) Artist(ctx context.Context, artistID string) (*ArtistInfo, error) {
	body, err := c.get(ctx, fmt.Sprintf("/artists/%s", artistID))
	if err != nil {
		return nil, err
	}

	var wire struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Followers struct {
			Total int64 `json:"total"`
		} `json:"followers"`
		Popularity int      `json:"popularity"`
		Genres     []string `json:"genres"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "spotify: unmarshal artist response")
	}

	return &ArtistInfo{
		ID:         wire.ID,
		Name:       wire.Name,
		Followers:  wire.Followers.Total,
		Popularity: wire.Popularity,
		Genres:     wire.Genres,
	}, nil
}
