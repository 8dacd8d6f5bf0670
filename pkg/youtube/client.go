// Package youtube provides a client for the YouTube Data API v3: channel
// search by artist name, channel statistics, and recent-upload counting via
// the channel's uploads playlist.
package youtube

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

// ErrNotFound means no channel matched the query.
var ErrNotFound = eris.New("youtube: channel not found")

// ChannelRef identifies a channel found via search.
type ChannelRef struct {
	ChannelID string
	Title     string
}

// ChannelDetails holds channel statistics plus the uploads playlist ID.
type ChannelDetails struct {
	ChannelID       string
	Title           string
	Subscribers     int64
	TotalViews      int64
	VideoCount      int64
	UploadsPlaylist string
}

// Client defines the YouTube operations used by the pipeline. SearchChannel
// is a quota "search" operation; the others are "details" operations — the
// distinction feeds the rate limiter's unit-weighted daily quota.
type Client interface {
	SearchChannel(ctx context.Context, artistName string) (*ChannelRef, error)
	ChannelDetails(ctx context.Context, channelID string) (*ChannelDetails, error)
	// UploadsSince counts uploads in the playlist published after cutoff,
	// inspecting at most one page of 50 items.
	UploadsSince(ctx context.Context, playlistID string, cutoff time.Time) (int, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
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

// NewClient creates a YouTube Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://www.googleapis.com/youtube/v3",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: read response")
	}

	switch {
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("youtube: status %d: %s", resp.StatusCode, body), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("youtube: unexpected status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *httpClient) SearchChannel(ctx context.Context, artistName string) (*ChannelRef, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "channel")
	params.Set("maxResults", "1")
	params.Set("q", artistName)

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Items []struct {
			ID struct {
				ChannelID string `json:"channelId"`
			} `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal search response")
	}
	if len(wire.Items) == 0 || wire.Items[0].ID.ChannelID == "" {
		return nil, ErrNotFound
	}

	return &ChannelRef{
		ChannelID: wire.Items[0].ID.ChannelID,
		Title:     wire.Items[0].Snippet.Title,
	}, nil
}

func (c *httpClient) ChannelDetails(ctx context.Context, channelID string) (*ChannelDetails, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails")
	params.Set("id", channelID)

	body, err := c.get(ctx, "/channels", params)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			// The Data API returns counts as strings.
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
				ViewCount       string `json:"viewCount"`
				VideoCount      string `json:"videoCount"`
			} `json:"statistics"`
			ContentDetails struct {
				RelatedPlaylists struct {
					Uploads string `json:"uploads"`
				} `json:"relatedPlaylists"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "youtube: unmarshal channel response")
	}
	if len(wire.Items) == 0 {
		return nil, ErrNotFound
	}

	item := wire.Items[0]
	return &ChannelDetails{
		ChannelID:       item.ID,
		Title:           item.Snippet.Title,
		Subscribers:     parseCount(item.Statistics.SubscriberCount),
		TotalViews:      parseCount(item.Statistics.ViewCount),
		VideoCount:      parseCount(item.Statistics.VideoCount),
		UploadsPlaylist: item.ContentDetails.RelatedPlaylists.Uploads,
	}, nil
}

func (c *httpClient) UploadsSince(ctx context.Context, playlistID string, cutoff time.Time) (int, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", "50")

	body, err := c.get(ctx, "/playlistItems", params)
	if err != nil {
		return 0, err
	}

	var wire struct {
		Items []struct {
			ContentDetails struct {
				VideoPublishedAt time.Time `json:"videoPublishedAt"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return 0, eris.Wrap(err, "youtube: unmarshal playlist response")
	}

	n := 0
	for _, item := range wire.Items {
		if item.ContentDetails.VideoPublishedAt.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
