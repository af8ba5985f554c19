package memory

import (
	"context"
	"errors"
	"testing"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

func TestReferencePriceStore_UpsertCaseInsensitive(t *testing.T) {
	store := NewReferencePriceStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.ReferencePrice{Symbol: "ABC", PriceUSD: 1.5, FetchedTs: 1000}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "abc")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if got.PriceUSD != 1.5 {
		t.Errorf("PriceUSD = %v, want 1.5", got.PriceUSD)
	}

	// Same symbol in another case overwrites, not duplicates.
	if err := store.Upsert(ctx, &domain.ReferencePrice{Symbol: "abc", PriceUSD: 2.0, FetchedTs: 2000}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, _ = store.GetBySymbol(ctx, "ABC")
	if got.PriceUSD != 2.0 {
		t.Errorf("PriceUSD = %v, want 2.0 after overwrite", got.PriceUSD)
	}
}

func TestReferencePriceStore_DeleteFetchedBefore(t *testing.T) {
	store := NewReferencePriceStore()
	ctx := context.Background()

	store.Upsert(ctx, &domain.ReferencePrice{Symbol: "old", PriceUSD: 1, FetchedTs: 1000})
	store.Upsert(ctx, &domain.ReferencePrice{Symbol: "new", PriceUSD: 1, FetchedTs: 5000})

	deleted, err := store.DeleteFetchedBefore(ctx, 3000)
	if err != nil {
		t.Fatalf("DeleteFetchedBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := store.GetBySymbol(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired price still present: %v", err)
	}
}

func TestNotificationStore_InsertAndCount(t *testing.T) {
	store := NewNotificationStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.Insert(ctx, &domain.NotificationRecord{SignalID: 7, Mint: "M", DeliveredTs: 1000, OK: true}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	store.Insert(ctx, &domain.NotificationRecord{SignalID: 8, Mint: "M", DeliveredTs: 5000, OK: true})

	count, err := store.CountBySignal(ctx, 7)
	if err != nil {
		t.Fatalf("CountBySignal failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	deleted, err := store.DeleteDeliveredBefore(ctx, 3000)
	if err != nil {
		t.Fatalf("DeleteDeliveredBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}
