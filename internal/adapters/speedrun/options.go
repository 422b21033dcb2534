package speedrun

import (
	"net/http"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient sets the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryableStatuses replaces the set of statuses that are retried.
func WithRetryableStatuses(statuses []int) Option {
	return func(c *Client) {
		set := make(map[int]struct{}, len(statuses))
		for _, s := range statuses {
			set[s] = struct{}{}
		}
		c.retryable = set
	}
}

// WithRetryDelay sets the fixed wait between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithMaxAttempts caps attempts per request. Zero retries until success.
func WithMaxAttempts(n uint) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithCache sets the game metadata cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
