package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
// The store mutex serializes merges, matching the atomic upsert the
// Postgres implementation gets from ON CONFLICT DO UPDATE.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by mint|bucket_ts
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

func candleKey(mint string, bucketTs int64) string {
	return fmt.Sprintf("%s|%d", mint, bucketTs)
}

// Merge atomically upserts a single-trade candle into (mint, bucket_ts).
func (s *CandleStore) Merge(_ context.Context, c *domain.Candle) error {
	if c == nil || c.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candleKey(c.Mint, c.BucketTs)
	existing, ok := s.data[key]
	if !ok {
		cp := *c
		s.data[key] = &cp
		return nil
	}

	if c.High > existing.High {
		existing.High = c.High
	}
	if c.Low < existing.Low {
		existing.Low = c.Low
	}
	existing.Close = c.Close
	existing.Volume += c.Volume
	return nil
}

// InsertIfAbsent inserts the candle only when the bucket is empty.
func (s *CandleStore) InsertIfAbsent(_ context.Context, c *domain.Candle) (bool, error) {
	if c == nil || c.Mint == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candleKey(c.Mint, c.BucketTs)
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	cp := *c
	s.data[key] = &cp
	return true, nil
}

// Get retrieves one candle. Returns ErrNotFound if not exists.
func (s *CandleStore) Get(_ context.Context, mint string, bucketTs int64) (*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[candleKey(mint, bucketTs)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Latest retrieves the most recent candle for a mint.
func (s *CandleStore) Latest(_ context.Context, mint string) (*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Candle
	for _, c := range s.data {
		if c.Mint != mint {
			continue
		}
		if latest == nil || c.BucketTs > latest.BucketTs {
			latest = c
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// Window retrieves up to limit most-recent candles, oldest to newest.
func (s *CandleStore) Window(_ context.Context, mint string, limit int) ([]*domain.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.Mint == mint {
			cp := *c
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketTs < result[j].BucketTs
	})

	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// DeleteBucketsBefore removes candles with bucket_ts before cutoff.
func (s *CandleStore) DeleteBucketsBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, c := range s.data {
		if c.BucketTs < cutoff {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
