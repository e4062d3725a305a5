package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/verte-zerg/parkdash/internal/metrics"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultCollectTimeout = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCollectURL points TriggerCollection at a different host.
func WithCollectURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.collectURL = trimSlash(url)
		}
	}
}

// WithTimeout bounds each read request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCollectTimeout bounds the collection trigger.
func WithCollectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.collectTimeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records every request on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}
