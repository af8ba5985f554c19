package retention

import (
	"context"
	"testing"
	"time"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage/memory"
)

type frozenClock struct {
	now time.Time
}

func (c frozenClock) Now() time.Time {
	return c.now
}

func (c frozenClock) Sleep(_ context.Context, _ time.Duration) error {
	return nil
}

type fixture struct {
	pools         *memory.PoolStore
	candles       *memory.CandleStore
	signals       *memory.SignalStore
	refPrices     *memory.ReferencePriceStore
	notifications *memory.NotificationStore
}

func newFixture(horizons Horizons, now int64) (*Cleaner, *fixture) {
	f := &fixture{
		pools:         memory.NewPoolStore(),
		candles:       memory.NewCandleStore(),
		signals:       memory.NewSignalStore(),
		refPrices:     memory.NewReferencePriceStore(),
		notifications: memory.NewNotificationStore(),
	}
	c := New(Options{
		Pools:           f.pools,
		Candles:         f.candles,
		Signals:         f.signals,
		ReferencePrices: f.refPrices,
		Notifications:   f.notifications,
		Horizons:        horizons,
		Clock:           frozenClock{now: time.Unix(now, 0)},
	})
	return c, f
}

func TestCleaner_SweepsAllTables(t *testing.T) {
	now := int64(1_000_000)
	cleaner, f := newFixture(DefaultHorizons(), now)
	ctx := context.Background()

	// One expired and one fresh row per table.
	oldTs := now - 30*24*3600
	f.pools.Upsert(ctx, &domain.Pool{Mint: "old", FirstSeenTs: oldTs})
	f.pools.Upsert(ctx, &domain.Pool{Mint: "new", FirstSeenTs: now})
	f.candles.Merge(ctx, &domain.Candle{Mint: "M", BucketTs: oldTs, Close: 1})
	f.candles.Merge(ctx, &domain.Candle{Mint: "M", BucketTs: now, Close: 1})
	f.signals.Insert(ctx, &domain.Signal{Mint: "M", SignalTs: oldTs})
	f.signals.Insert(ctx, &domain.Signal{Mint: "M", SignalTs: now})
	f.refPrices.Upsert(ctx, &domain.ReferencePrice{Symbol: "old", FetchedTs: oldTs})
	f.refPrices.Upsert(ctx, &domain.ReferencePrice{Symbol: "new", FetchedTs: now})
	f.notifications.Insert(ctx, &domain.NotificationRecord{SignalID: 1, Mint: "M", DeliveredTs: oldTs, OK: true})
	f.notifications.Insert(ctx, &domain.NotificationRecord{SignalID: 2, Mint: "M", DeliveredTs: now, OK: true})

	if errs := cleaner.RunCycle(ctx); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	pools, _ := f.pools.List(ctx)
	if len(pools) != 1 || pools[0].Mint != "new" {
		t.Errorf("pools after sweep: %+v", pools)
	}
	window, _ := f.candles.Window(ctx, "M", 10)
	if len(window) != 1 {
		t.Errorf("candles after sweep: %d, want 1", len(window))
	}
	pending, _ := f.signals.ListUnnotified(ctx, 10)
	if len(pending) != 1 {
		t.Errorf("signals after sweep: %d, want 1", len(pending))
	}
}

func TestCleaner_DisabledHorizonSkipsTable(t *testing.T) {
	now := int64(1_000_000)
	horizons := DefaultHorizons()
	horizons.Pools = 0
	cleaner, f := newFixture(horizons, now)
	ctx := context.Background()

	f.pools.Upsert(ctx, &domain.Pool{Mint: "ancient", FirstSeenTs: 1})

	if errs := cleaner.RunCycle(ctx); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	pools, _ := f.pools.List(ctx)
	if len(pools) != 1 {
		t.Error("disabled horizon must leave the table untouched")
	}
}

func TestCleaner_ExpiresSignalsRegardlessOfNotifiedState(t *testing.T) {
	now := int64(1_000_000)
	cleaner, f := newFixture(DefaultHorizons(), now)
	ctx := context.Background()

	oldTs := now - 48*3600
	id, _ := f.signals.Insert(ctx, &domain.Signal{Mint: "M", SignalTs: oldTs})

	// An unnotified signal that Stage B kept skipping still expires.
	if errs := cleaner.RunCycle(ctx); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if err := f.signals.MarkNotified(ctx, id); err == nil {
		t.Error("expired signal should be gone")
	}
}
