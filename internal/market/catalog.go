package market

import (
	"context"
	"log"
	"sync"
	"time"

	"dexpulse/internal/fetch"
)

// catalogTTL bounds how long the full token list is reused before a
// refresh is attempted.
const catalogTTL = 24 * time.Hour

// catalogCache holds the slowly-changing symbol -> provider-id mapping.
// Refreshes are served stale-on-error: when a refresh fails and a
// previous value exists, the stale value is returned instead of the
// error.
type catalogCache struct {
	mu        sync.Mutex
	refresh   func(ctx context.Context) (map[string]string, error)
	clock     fetch.Clock
	value     map[string]string
	fetchedAt time.Time
}

func newCatalogCache(refresh func(ctx context.Context) (map[string]string, error), clock fetch.Clock) *catalogCache {
	if clock == nil {
		clock = fetch.SystemClock{}
	}
	return &catalogCache{
		refresh: refresh,
		clock:   clock,
	}
}

// Get returns the cached catalog, refreshing it once the TTL elapsed.
func (c *catalogCache) Get(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.value != nil && now.Sub(c.fetchedAt) < catalogTTL {
		return c.value, nil
	}

	fresh, err := c.refresh(ctx)
	if err != nil {
		if c.value != nil {
			log.Printf("[market] catalog refresh failed, serving stale copy from %s: %v",
				c.fetchedAt.Format(time.RFC3339), err)
			return c.value, nil
		}
		return nil, err
	}

	c.value = fresh
	c.fetchedAt = now
	return c.value, nil
}
