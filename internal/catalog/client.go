// Package catalog provides access to the OMDb API for movie and series
// metadata. Search powers the add-to-watchlist flow; Lookup fetches the
// full record for an id before it is stored.
package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.omdbapi.com/"

// Client provides access to the OMDb API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	baseURL     string
	apiKey      string
}

// NewClient creates a new OMDb client.
// The free tier allows 1000 requests per day, so requests are limited to
// 1 per second with a small burst for restore fan-out.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:      logger,
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// wait blocks until rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}
