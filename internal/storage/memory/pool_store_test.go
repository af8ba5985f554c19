package memory

import (
	"context"
	"errors"
	"testing"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func TestPoolStore_UpsertAndGet(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	p := &domain.Pool{
		Mint:        "Mint1",
		Symbol:      "abc",
		FirstSeenTs: 1000,
		LiqUSD:      ptr(20000.0),
	}

	if err := store.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByMint(ctx, "Mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if got.Symbol != "abc" || got.FirstSeenTs != 1000 {
		t.Errorf("unexpected pool: %+v", got)
	}
	if got.LiqUSD == nil || *got.LiqUSD != 20000 {
		t.Errorf("LiqUSD mismatch: %v", got.LiqUSD)
	}
	if got.FdvUSD != nil {
		t.Errorf("FdvUSD should stay nil, got %v", *got.FdvUSD)
	}
}

func TestPoolStore_UpsertKeepsFirstSeenAndAbsentValues(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.Pool{
		Mint:        "Mint1",
		Symbol:      "abc",
		FirstSeenTs: 1000,
		LiqUSD:      ptr(20000.0),
		FdvUSD:      ptr(1_000_000.0),
	}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	// Second observation: later first_seen, no liq, new fdv, no symbol.
	if err := store.Upsert(ctx, &domain.Pool{
		Mint:        "Mint1",
		FirstSeenTs: 2000,
		FdvUSD:      ptr(2_000_000.0),
	}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.GetByMint(ctx, "Mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if got.FirstSeenTs != 1000 {
		t.Errorf("FirstSeenTs changed: got %d, want 1000", got.FirstSeenTs)
	}
	if got.Symbol != "abc" {
		t.Errorf("Symbol overwritten by empty value: %q", got.Symbol)
	}
	if got.LiqUSD == nil || *got.LiqUSD != 20000 {
		t.Errorf("LiqUSD not kept: %v", got.LiqUSD)
	}
	if got.FdvUSD == nil || *got.FdvUSD != 2_000_000 {
		t.Errorf("FdvUSD not updated: %v", got.FdvUSD)
	}
}

func TestPoolStore_GetMissing(t *testing.T) {
	store := NewPoolStore()

	_, err := store.GetByMint(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPoolStore_ListOrder(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	for _, p := range []*domain.Pool{
		{Mint: "C", FirstSeenTs: 3000},
		{Mint: "A", FirstSeenTs: 1000},
		{Mint: "B", FirstSeenTs: 2000},
	} {
		if err := store.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert %s failed: %v", p.Mint, err)
		}
	}

	pools, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pools) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(pools))
	}
	for i, want := range []string{"A", "B", "C"} {
		if pools[i].Mint != want {
			t.Errorf("pools[%d] = %s, want %s", i, pools[i].Mint, want)
		}
	}
}

func TestPoolStore_DeleteFirstSeenBefore(t *testing.T) {
	store := NewPoolStore()
	ctx := context.Background()

	store.Upsert(ctx, &domain.Pool{Mint: "old", FirstSeenTs: 1000})
	store.Upsert(ctx, &domain.Pool{Mint: "new", FirstSeenTs: 5000})

	deleted, err := store.DeleteFirstSeenBefore(ctx, 3000)
	if err != nil {
		t.Fatalf("DeleteFirstSeenBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	mints, err := store.ListMints(ctx)
	if err != nil {
		t.Fatalf("ListMints failed: %v", err)
	}
	if len(mints) != 1 || mints[0] != "new" {
		t.Errorf("remaining mints = %v, want [new]", mints)
	}
}
