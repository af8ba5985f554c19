package events

import (
	"context"
	"testing"

	"dexpulse/internal/candle"
	"dexpulse/internal/domain"
	"dexpulse/internal/storage/memory"
)

func TestConsumer_HandlePoolInit(t *testing.T) {
	pools := memory.NewPoolStore()
	candles := memory.NewCandleStore()
	c := NewConsumer(pools, candle.NewAggregator(candles, 60), nil, nil, nil)
	ctx := context.Background()

	liq := 30_000.0
	c.handlePoolInit(ctx, domain.PoolInitEvent{
		Mint:        "M",
		Timestamp:   1000,
		LiqUSD:      &liq,
		TxSignature: "sig1",
	})

	got, err := pools.GetByMint(ctx, "M")
	if err != nil {
		t.Fatalf("pool not stored: %v", err)
	}
	if got.FirstSeenTs != 1000 || got.LiqUSD == nil || *got.LiqUSD != 30_000 {
		t.Errorf("pool fields wrong: %+v", got)
	}
}

func TestConsumer_HandleSwap(t *testing.T) {
	pools := memory.NewPoolStore()
	candles := memory.NewCandleStore()
	c := NewConsumer(pools, candle.NewAggregator(candles, 60), nil, nil, nil)
	ctx := context.Background()

	c.handleSwap(ctx, domain.TradeEvent{Mint: "M", Price: 2.5, VolumeUSD: 100, Timestamp: 65})
	c.handleSwap(ctx, domain.TradeEvent{Mint: "M", Price: 0, VolumeUSD: 50, Timestamp: 70}) // unpriced, dropped

	got, err := candles.Get(ctx, "M", 60)
	if err != nil {
		t.Fatalf("candle not stored: %v", err)
	}
	if got.Volume != 100 {
		t.Errorf("Volume = %v, want 100 (unpriced trade must be dropped)", got.Volume)
	}
}
