// Package retention bounds table growth by deleting rows past their
// horizon. Signals expire regardless of notified state, which is what
// finally drops a signal that Stage B kept skipping.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"dexpulse/internal/fetch"
	"dexpulse/internal/observability"
	"dexpulse/internal/storage"
)

// Horizons configures per-table retention windows. Zero disables the
// corresponding cleanup.
type Horizons struct {
	Signals         time.Duration // signal_ts horizon, any notified state
	Candles         time.Duration // bucket_ts horizon
	ReferencePrices time.Duration // fetched_ts horizon
	Pools           time.Duration // first_seen_ts horizon
	Notifications   time.Duration // delivered_ts horizon
}

// DefaultHorizons returns the stock retention windows.
func DefaultHorizons() Horizons {
	return Horizons{
		Signals:         24 * time.Hour,
		Candles:         72 * time.Hour,
		ReferencePrices: 72 * time.Hour,
		Pools:           14 * 24 * time.Hour,
		Notifications:   7 * 24 * time.Hour,
	}
}

// Cleaner runs the periodic retention sweep.
type Cleaner struct {
	pools         storage.PoolStore
	candles       storage.CandleStore
	signals       storage.SignalStore
	refPrices     storage.ReferencePriceStore
	notifications storage.NotificationStore
	horizons      Horizons
	clock         fetch.Clock
	logger        *log.Logger
	metrics       *observability.Metrics
}

// Options configures a Cleaner.
type Options struct {
	Pools           storage.PoolStore
	Candles         storage.CandleStore
	Signals         storage.SignalStore
	ReferencePrices storage.ReferencePriceStore
	Notifications   storage.NotificationStore
	Horizons        Horizons
	Clock           fetch.Clock
	Logger          *log.Logger
	Metrics         *observability.Metrics
}

// New creates a cleaner.
func New(opts Options) *Cleaner {
	clock := opts.Clock
	if clock == nil {
		clock = fetch.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[retention] ", log.LstdFlags)
	}
	return &Cleaner{
		pools:         opts.Pools,
		candles:       opts.Candles,
		signals:       opts.Signals,
		refPrices:     opts.ReferencePrices,
		notifications: opts.Notifications,
		horizons:      opts.Horizons,
		clock:         clock,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// RunCycle sweeps every table once. A failed table is logged and the
// sweep moves on; errors are collected for the caller.
func (c *Cleaner) RunCycle(ctx context.Context) []string {
	now := c.clock.Now()
	var errs []string

	sweep := func(table string, horizon time.Duration, del func(context.Context, int64) (int64, error)) {
		if horizon <= 0 {
			return
		}
		cutoff := now.Add(-horizon).Unix()
		deleted, err := del(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Sprintf("clean %s: %v", table, err))
			c.logger.Printf("clean %s: %v", table, err)
			return
		}
		if deleted > 0 {
			c.logger.Printf("clean %s: removed %d rows older than %v", table, deleted, horizon)
		}
		if c.metrics != nil {
			c.metrics.RowsDeleted.WithLabelValues(table).Add(float64(deleted))
		}
	}

	sweep("signals", c.horizons.Signals, c.signals.DeleteCreatedBefore)
	sweep("candles", c.horizons.Candles, c.candles.DeleteBucketsBefore)
	sweep("reference_prices", c.horizons.ReferencePrices, c.refPrices.DeleteFetchedBefore)
	sweep("pools", c.horizons.Pools, c.pools.DeleteFirstSeenBefore)
	sweep("notifications", c.horizons.Notifications, c.notifications.DeleteDeliveredBefore)

	return errs
}
