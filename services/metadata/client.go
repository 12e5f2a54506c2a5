// Package metadata is a thin client for the external series metadata API.
// The watch-state engine only needs the airing status and a little title
// information for side-channel enrichment; correctness of the state machine
// never depends on this service being reachable.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

var (
	ErrNotConfigured    = errors.New("metadata api key not configured")
	ErrSeriesIDRequired = errors.New("series id is required")
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// Title is the slim series document returned by the metadata API.
type Title struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"` // "Returning Series", "Ended", "Canceled", ...
	Overview string `json:"overview,omitempty"`
	Year     int    `json:"year,omitempty"`
}

// Client fetches series metadata with rate limiting and retries.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewClient creates a metadata client. baseURL may be empty for the default
// API host; httpc may be nil.
func NewClient(baseURL, apiKey string, httpc *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(apiKey),
		httpc:       httpc,
		minInterval: 20 * time.Millisecond,
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

type seriesResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Overview     string `json:"overview"`
	FirstAirDate string `json:"first_air_date"`
}

// SeriesInfo returns the title document for a series.
func (c *Client) SeriesInfo(ctx context.Context, seriesID string) (*Title, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, ErrSeriesIDRequired
	}
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/tv/%s?api_key=%s", c.baseURL, url.PathEscape(seriesID), url.QueryEscape(c.apiKey))

	var payload seriesResponse
	if err := c.doGET(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	title := &Title{
		ID:       seriesID,
		Name:     payload.Name,
		Status:   payload.Status,
		Overview: payload.Overview,
	}
	if len(payload.FirstAirDate) >= 4 {
		fmt.Sscanf(payload.FirstAirDate[:4], "%d", &title.Year)
	}
	return title, nil
}

// SeriesStatus returns the airing status string for a series.
func (c *Client) SeriesStatus(ctx context.Context, seriesID string) (string, error) {
	info, err := c.SeriesInfo(ctx, seriesID)
	if err != nil {
		return "", err
	}
	return info.Status, nil
}

// doGET performs a rate-limited GET with exponential-backoff retries.
// Client errors other than 429 are not retried.
func (c *Client) doGET(ctx context.Context, endpoint string, v any) error {
	return retry.Do(
		func() error {
			c.throttle()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("metadata request failed: %s", resp.Status)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("metadata request failed: %s", resp.Status))
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) throttle() {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	if since := time.Since(c.lastRequest); since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
}
