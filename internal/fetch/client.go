// Package fetch provides a rate-limited HTTP JSON client shared by all
// external market-data providers. It enforces per-provider request
// spacing, a daily quota with local-day reset, and bounded retries.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Errors surfaced to callers.
var (
	// ErrQuotaExceeded means the daily quota was reached; the request was
	// rejected locally without a network call.
	ErrQuotaExceeded = errors.New("daily request quota exceeded")

	// ErrTransient wraps retryable failures (network errors, 5xx, 429)
	// after retries are exhausted.
	ErrTransient = errors.New("transient request failure")
)

// Default client parameters.
const (
	DefaultMaxRetries       = 2
	DefaultRateLimitBackoff = 60 * time.Second
	DefaultTransientBackoff = 5 * time.Second
	DefaultTimeout          = 30 * time.Second
)

// Config configures a provider client. Zero values fall back to defaults;
// DailyQuota 0 means unlimited.
type Config struct {
	Provider         string        // name used in logs
	MinInterval      time.Duration // minimum spacing between requests
	DailyQuota       int           // attempted requests allowed per local day
	MaxRetries       int           // retries after the first attempt
	RateLimitBackoff time.Duration // backoff after HTTP 429
	TransientBackoff time.Duration // backoff after other transient failures
	Timeout          time.Duration // per-request HTTP timeout
}

// Client is a rate-limited JSON GET client for one provider. The mutex
// both guards the spacing/quota state and confines the provider to a
// single in-flight request, so two timers sharing a provider cannot race
// its counters.
type Client struct {
	cfg    Config
	http   *http.Client
	clock  Clock
	logger *log.Logger

	gate        chan struct{} // capacity 1, held for the whole request
	lastRequest time.Time
	usage       int
	usageDay    string // local day the usage counter belongs to
}

// NewClient creates a provider client.
func NewClient(cfg Config, clock Clock, logger *log.Logger) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RateLimitBackoff == 0 {
		cfg.RateLimitBackoff = DefaultRateLimitBackoff
	}
	if cfg.TransientBackoff == 0 {
		cfg.TransientBackoff = DefaultTransientBackoff
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		clock:  clock,
		logger: logger,
		gate:   make(chan struct{}, 1),
	}
}

// Usage returns the attempted-request count for the current local day.
func (c *Client) Usage() int {
	c.gate <- struct{}{}
	defer func() { <-c.gate }()
	c.rollDay()
	return c.usage
}

// GetJSON performs a rate-limited GET against rawURL with params and
// decodes the JSON response into out. It returns ErrQuotaExceeded when
// the daily quota is already spent (no network call, no counter
// increment) and an ErrTransient-wrapped error once retries are
// exhausted. Every attempted request, successful or not, increments the
// daily usage counter.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out interface{}) error {
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.gate }()

	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		c.rollDay()
		if c.cfg.DailyQuota > 0 && c.usage >= c.cfg.DailyQuota {
			if lastErr != nil {
				return fmt.Errorf("%w: quota reached during retries of %s", ErrQuotaExceeded, lastErr)
			}
			return ErrQuotaExceeded
		}

		if err := c.waitSpacing(ctx); err != nil {
			return err
		}

		c.usage++
		c.lastRequest = c.clock.Now()

		retryable, err := c.doOnce(ctx, reqURL, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}

		backoff := c.cfg.TransientBackoff
		if isRateLimited(err) {
			backoff = c.cfg.RateLimitBackoff
		}
		c.logger.Printf("[%s] attempt %d/%d failed, retrying in %v: %v",
			c.cfg.Provider, attempt+1, c.cfg.MaxRetries+1, backoff, err)
		if attempt < c.cfg.MaxRetries {
			if err := c.clock.Sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %v",
		ErrTransient, c.cfg.Provider, c.cfg.MaxRetries+1, lastErr)
}

// rollDay resets the usage counter when the local day changes.
func (c *Client) rollDay() {
	day := c.clock.Now().Format("2006-01-02")
	if day != c.usageDay {
		c.usageDay = day
		c.usage = 0
	}
}

// waitSpacing enforces the minimum inter-request delay.
func (c *Client) waitSpacing(ctx context.Context) error {
	if c.cfg.MinInterval <= 0 || c.lastRequest.IsZero() {
		return nil
	}
	elapsed := c.clock.Now().Sub(c.lastRequest)
	if elapsed >= c.cfg.MinInterval {
		return nil
	}
	return c.clock.Sleep(ctx, c.cfg.MinInterval-elapsed)
}

// rateLimitError marks an HTTP 429 response.
type rateLimitError struct {
	url string
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (429): %s", e.url)
}

func isRateLimited(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

// doOnce performs a single HTTP attempt. The bool reports whether the
// failure is retryable.
func (c *Client) doOnce(ctx context.Context, reqURL string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, &rateLimitError{url: reqURL}
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body, 200))
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return false, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return false, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
