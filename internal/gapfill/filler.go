// Package gapfill keeps every tracked token's candle series contiguous
// by synthesizing zero-volume candles for buckets without trades.
// Indicator recurrences assume evenly spaced buckets; without the
// filler an idle token's window would silently shrink.
package gapfill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dexpulse/internal/domain"
	"dexpulse/internal/fetch"
	"dexpulse/internal/market"
	"dexpulse/internal/observability"
	"dexpulse/internal/storage"
)

// Outcome is the per-token result of one fill cycle. Skips are explicit
// named outcomes so tests can assert on the reason.
type Outcome int

const (
	// OutcomeAlreadyPresent means the current bucket already has a candle.
	OutcomeAlreadyPresent Outcome = iota
	// OutcomeFilled means a zero-volume candle was synthesized.
	OutcomeFilled
	// OutcomeSkipNoPrice means no positive fill price could be resolved.
	OutcomeSkipNoPrice
	// OutcomeFailed means a store or fetch error; the cycle continues.
	OutcomeFailed
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyPresent:
		return "already_present"
	case OutcomeFilled:
		return "filled"
	case OutcomeSkipNoPrice:
		return "skip_no_price"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleStats aggregates one cycle's per-token outcomes.
type CycleStats struct {
	Processed    int // tokens examined
	Synthesized  int // zero-volume candles inserted
	PriceFetched int // fill prices resolved via the external source
	Skipped      int // tokens left without a candle this cycle
	Failed       int // tokens that hit an error
}

// PriceSource is the batched reference price dependency.
type PriceSource interface {
	PricesBySymbol(ctx context.Context, symbols []string) (map[string]market.PriceQuote, error)
}

// Filler synthesizes candles for tokens with no trading activity in the
// current bucket.
type Filler struct {
	pools           storage.PoolStore
	candles         storage.CandleStore
	refPrices       storage.ReferencePriceStore
	source          PriceSource
	intervalSeconds int64
	clock           fetch.Clock
	logger          *log.Logger
	metrics         *observability.Metrics
}

// Options configures a Filler.
type Options struct {
	Pools           storage.PoolStore
	Candles         storage.CandleStore
	ReferencePrices storage.ReferencePriceStore
	Source          PriceSource
	IntervalSeconds int64
	Clock           fetch.Clock
	Logger          *log.Logger
	Metrics         *observability.Metrics
}

// New creates a gap filler.
func New(opts Options) *Filler {
	interval := opts.IntervalSeconds
	if interval <= 0 {
		interval = domain.DefaultCandleInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = fetch.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[gapfill] ", log.LstdFlags)
	}
	return &Filler{
		pools:           opts.Pools,
		candles:         opts.Candles,
		refPrices:       opts.ReferencePrices,
		source:          opts.Source,
		intervalSeconds: interval,
		clock:           clock,
		logger:          logger,
		metrics:         opts.Metrics,
	}
}

// RunCycle fills the current bucket for every tracked token. One token's
// failure never aborts the batch; the cycle always returns stats.
func (f *Filler) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	pools, err := f.pools.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list pools: %w", err)
	}

	now := f.clock.Now().Unix()
	bucket := domain.BucketFor(now, f.intervalSeconds)

	// First pass: fill from last-known closes, collect the tokens that
	// need an external reference price.
	var needPrice []pending

	for _, p := range pools {
		stats.Processed++
		outcome, err := f.fillFromLastClose(ctx, p.Mint, bucket)
		switch outcome {
		case OutcomeAlreadyPresent:
			// Nothing to do; idempotent across repeated cycles in a bucket.
		case OutcomeFilled:
			stats.Synthesized++
		case OutcomeFailed:
			stats.Failed++
			f.logger.Printf("fill %s: %v", p.Mint, err)
		case OutcomeSkipNoPrice:
			needPrice = append(needPrice, pending{mint: p.Mint, symbol: p.Symbol})
		}
	}

	// Second pass: batched symbol-keyed price fetch for the rest.
	prices := f.fetchReferencePrices(ctx, needPrice, now)

	for _, p := range needPrice {
		price, ok := f.resolveFillPrice(ctx, p.symbol, prices)
		if !ok {
			stats.Skipped++
			f.logger.Printf("fill %s: %s (symbol %q)", p.mint, OutcomeSkipNoPrice, p.symbol)
			continue
		}
		stats.PriceFetched++
		inserted, err := f.candles.InsertIfAbsent(ctx, syntheticCandle(p.mint, bucket, price))
		if err != nil {
			stats.Failed++
			f.logger.Printf("fill %s: %v", p.mint, err)
			continue
		}
		if inserted {
			stats.Synthesized++
		}
	}

	f.report(stats)
	return stats, nil
}

// fillFromLastClose resolves the level-1 fill price: the close of the
// most recent candle, regardless of age.
func (f *Filler) fillFromLastClose(ctx context.Context, mint string, bucket int64) (Outcome, error) {
	if _, err := f.candles.Get(ctx, mint, bucket); err == nil {
		return OutcomeAlreadyPresent, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return OutcomeFailed, err
	}

	latest, err := f.candles.Latest(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return OutcomeSkipNoPrice, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if latest.Close <= 0 {
		return OutcomeSkipNoPrice, nil
	}

	if _, err := f.candles.InsertIfAbsent(ctx, syntheticCandle(mint, bucket, latest.Close)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeFilled, nil
}

// pending is a token awaiting a level-2 reference price.
type pending struct {
	mint   string
	symbol string
}

// fetchReferencePrices performs the batched external lookup and persists
// the results. A failed batch degrades to the stored last-known prices.
func (f *Filler) fetchReferencePrices(ctx context.Context, pendings []pending, now int64) map[string]market.PriceQuote {
	if len(pendings) == 0 || f.source == nil {
		return nil
	}

	var symbols []string
	seen := make(map[string]struct{})
	for _, p := range pendings {
		sym := strings.ToLower(p.symbol)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil
	}

	prices, err := f.source.PricesBySymbol(ctx, symbols)
	if err != nil {
		// Degrade to stored last-known prices; the cycle goes on.
		f.logger.Printf("reference price batch failed: %v", err)
		return nil
	}

	for sym, q := range prices {
		err := f.refPrices.Upsert(ctx, &domain.ReferencePrice{
			Symbol:    sym,
			PriceUSD:  q.PriceUSD,
			Volume24h: q.Volume24h,
			MarketCap: q.MarketCap,
			FetchedTs: now,
		})
		if err != nil {
			f.logger.Printf("persist reference price %s: %v", sym, err)
		}
	}
	return prices
}

// resolveFillPrice picks the level-2 price: fresh batch result first,
// stored last-known reference price second.
func (f *Filler) resolveFillPrice(ctx context.Context, symbol string, prices map[string]market.PriceQuote) (float64, bool) {
	if symbol == "" {
		return 0, false
	}
	if q, ok := prices[strings.ToLower(symbol)]; ok && q.PriceUSD > 0 {
		return q.PriceUSD, true
	}
	stored, err := f.refPrices.GetBySymbol(ctx, symbol)
	if err == nil && stored.PriceUSD > 0 {
		return stored.PriceUSD, true
	}
	return 0, false
}

// syntheticCandle builds the zero-volume candle for a fill.
func syntheticCandle(mint string, bucket int64, price float64) *domain.Candle {
	return &domain.Candle{
		Mint:     mint,
		BucketTs: bucket,
		Open:     price,
		High:     price,
		Low:      price,
		Close:    price,
		Volume:   0,
	}
}

// report logs cycle totals and updates metrics.
func (f *Filler) report(stats CycleStats) {
	f.logger.Printf("cycle done: processed=%d synthesized=%d price_fetched=%d skipped=%d failed=%d",
		stats.Processed, stats.Synthesized, stats.PriceFetched, stats.Skipped, stats.Failed)
	if f.metrics == nil {
		return
	}
	f.metrics.GapfillProcessed.Add(float64(stats.Processed))
	f.metrics.GapfillSynthesized.Add(float64(stats.Synthesized))
	f.metrics.GapfillPriceFetched.Add(float64(stats.PriceFetched))
	f.metrics.GapfillSkipped.Add(float64(stats.Skipped))
	f.metrics.GapfillFailed.Add(float64(stats.Failed))
}
