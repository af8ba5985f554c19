package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
	"dexpulse/internal/storage/postgres"
)

func TestReferencePriceStore_UpsertCaseInsensitive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReferencePriceStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.ReferencePrice{
		Symbol:    "ABC",
		PriceUSD:  1.5,
		Volume24h: ptr(100.0),
		FetchedTs: 1000,
	}))

	got, err := store.GetBySymbol(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.PriceUSD)
	require.NotNil(t, got.Volume24h)
	assert.Equal(t, 100.0, *got.Volume24h)

	// Another case of the same symbol overwrites, never duplicates.
	require.NoError(t, store.Upsert(ctx, &domain.ReferencePrice{Symbol: "abc", PriceUSD: 2.0, FetchedTs: 2000}))

	got, err = store.GetBySymbol(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.PriceUSD)
	assert.Equal(t, int64(2000), got.FetchedTs)
}

func TestReferencePriceStore_DeleteFetchedBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReferencePriceStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.ReferencePrice{Symbol: "old", PriceUSD: 1, FetchedTs: 1000}))
	require.NoError(t, store.Upsert(ctx, &domain.ReferencePrice{Symbol: "new", PriceUSD: 1, FetchedTs: 5000}))

	deleted, err := store.DeleteFetchedBefore(ctx, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetBySymbol(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
