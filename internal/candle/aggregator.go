// Package candle converts normalized trade events into OHLCV candle
// upserts against the candle store.
package candle

import (
	"context"
	"fmt"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// Aggregator folds trade events into per-bucket candles.
// Merge atomicity for concurrent trades on the same (mint, bucket) lives
// in the store; the aggregator itself is stateless.
type Aggregator struct {
	candles         storage.CandleStore
	intervalSeconds int64
}

// NewAggregator creates an aggregator with the given bucket width.
// intervalSeconds <= 0 falls back to the 60s default.
func NewAggregator(candles storage.CandleStore, intervalSeconds int64) *Aggregator {
	if intervalSeconds <= 0 {
		intervalSeconds = domain.DefaultCandleInterval
	}
	return &Aggregator{
		candles:         candles,
		intervalSeconds: intervalSeconds,
	}
}

// IntervalSeconds returns the configured bucket width.
func (a *Aggregator) IntervalSeconds() int64 {
	return a.intervalSeconds
}

// Ingest upserts one trade into its bucket's candle. The first trade in
// a bucket sets o=h=l=c=price, v=volume; later trades merge with
// h'=max, l'=min, v'+=volume and close taken from the latest trade by
// arrival order. Arrival order is assumed monotonic within a bucket;
// an out-of-order late trade can shift close and is not corrected.
// Trades with price <= 0 are not rejected here; upstream filters them.
func (a *Aggregator) Ingest(ctx context.Context, trade domain.TradeEvent) error {
	if trade.Mint == "" {
		return storage.ErrInvalidInput
	}

	c := &domain.Candle{
		Mint:     trade.Mint,
		BucketTs: domain.BucketFor(trade.Timestamp, a.intervalSeconds),
		Open:     trade.Price,
		High:     trade.Price,
		Low:      trade.Price,
		Close:    trade.Price,
		Volume:   trade.VolumeUSD,
	}

	if err := a.candles.Merge(ctx, c); err != nil {
		return fmt.Errorf("ingest trade for %s: %w", trade.Mint, err)
	}
	return nil
}
