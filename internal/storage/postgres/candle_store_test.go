package postgres_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
	"dexpulse/internal/storage/postgres"
)

func tradeCandle(mint string, bucket int64, price, volume float64) *domain.Candle {
	return &domain.Candle{
		Mint:     mint,
		BucketTs: bucket,
		Open:     price,
		High:     price,
		Low:      price,
		Close:    price,
		Volume:   volume,
	}
}

func TestCandleStore_MergeSemantics(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewCandleStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, tradeCandle("M", 60, 10, 100)))
	require.NoError(t, store.Merge(ctx, tradeCandle("M", 60, 15, 50)))
	require.NoError(t, store.Merge(ctx, tradeCandle("M", 60, 7, 25)))

	got, err := store.Get(ctx, "M", 60)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Open, "open must stay the first trade's price")
	assert.Equal(t, 15.0, got.High)
	assert.Equal(t, 7.0, got.Low)
	assert.Equal(t, 7.0, got.Close, "close must follow the last trade")
	assert.Equal(t, 175.0, got.Volume)
}

func TestCandleStore_MergeConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewCandleStore(pool)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Merge(ctx, tradeCandle("M", 60, 5, 1)))
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "M", 60)
	require.NoError(t, err)
	assert.Equal(t, float64(writers), got.Volume, "no concurrent volume increment may be lost")
}

func TestCandleStore_InsertIfAbsent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewCandleStore(pool)
	ctx := context.Background()

	inserted, err := store.InsertIfAbsent(ctx, tradeCandle("M", 120, 3, 0))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertIfAbsent(ctx, tradeCandle("M", 120, 9, 0))
	require.NoError(t, err)
	assert.False(t, inserted, "occupied bucket must not be overwritten")

	got, err := store.Get(ctx, "M", 120)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Close)
}

func TestCandleStore_LatestAndWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewCandleStore(pool)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		require.NoError(t, store.Merge(ctx, tradeCandle("M", i*60, float64(i+1), 1)))
	}

	latest, err := store.Latest(ctx, "M")
	require.NoError(t, err)
	assert.Equal(t, int64(240), latest.BucketTs)

	window, err := store.Window(ctx, "M", 3)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, int64(120), window[0].BucketTs, "window must return the newest rows oldest-first")
	assert.Equal(t, int64(240), window[2].BucketTs)

	_, err = store.Latest(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCandleStore_DeleteBucketsBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewCandleStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, tradeCandle("M", 60, 1, 1)))
	require.NoError(t, store.Merge(ctx, tradeCandle("M", 600, 1, 1)))

	deleted, err := store.DeleteBucketsBefore(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get(ctx, "M", 60)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
