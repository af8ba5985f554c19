package events

import (
	"context"
	"log"

	"dexpulse/internal/candle"
	"dexpulse/internal/domain"
	"dexpulse/internal/observability"
	"dexpulse/internal/storage"
)

// Consumer drains the source's typed streams into storage: pool inits
// upsert pool rows, swaps fold into candles through the aggregator.
type Consumer struct {
	pools      storage.PoolStore
	aggregator *candle.Aggregator
	source     *Source
	logger     *log.Logger
	metrics    *observability.Metrics
}

// NewConsumer wires a consumer to a running source.
func NewConsumer(pools storage.PoolStore, aggregator *candle.Aggregator, source *Source, logger *log.Logger, metrics *observability.Metrics) *Consumer {
	if logger == nil {
		logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	return &Consumer{
		pools:      pools,
		aggregator: aggregator,
		source:     source,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run processes events until ctx is done or both streams close. A
// failed write is logged and the event dropped; the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	swaps := c.source.Swaps()
	poolInits := c.source.PoolInits()

	for swaps != nil || poolInits != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-poolInits:
			if !ok {
				poolInits = nil
				continue
			}
			c.handlePoolInit(ctx, ev)
		case ev, ok := <-swaps:
			if !ok {
				swaps = nil
				continue
			}
			c.handleSwap(ctx, ev)
		}
	}
	return nil
}

func (c *Consumer) handlePoolInit(ctx context.Context, ev domain.PoolInitEvent) {
	pool := &domain.Pool{
		Mint:        ev.Mint,
		Symbol:      ev.Symbol,
		FirstSeenTs: ev.Timestamp,
		LiqUSD:      ev.LiqUSD,
		FdvUSD:      ev.FdvUSD,
	}
	if err := c.pools.Upsert(ctx, pool); err != nil {
		if c.metrics != nil {
			c.metrics.IngestErrors.WithLabelValues("pool_upsert").Inc()
		}
		c.logger.Printf("pool upsert %s: %v", ev.Mint, err)
		return
	}
	if c.metrics != nil {
		c.metrics.PoolInitsSeen.Inc()
	}
	c.logger.Printf("pool init %s (tx %s)", ev.Mint, ev.TxSignature)
}

func (c *Consumer) handleSwap(ctx context.Context, ev domain.TradeEvent) {
	if ev.Price <= 0 {
		return
	}
	if err := c.aggregator.Ingest(ctx, ev); err != nil {
		if c.metrics != nil {
			c.metrics.IngestErrors.WithLabelValues("aggregate").Inc()
		}
		c.logger.Printf("aggregate %s: %v", ev.Mint, err)
		return
	}
	if c.metrics != nil {
		c.metrics.TradesIngested.Inc()
	}
}
