package memory

import (
	"context"
	"sort"
	"sync"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Pool // keyed by mint
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		data: make(map[string]*domain.Pool),
	}
}

// Upsert creates the pool on first observation and updates liq/fdv on
// subsequent ones. FirstSeenTs is immutable after the first insert.
func (s *PoolStore) Upsert(_ context.Context, p *domain.Pool) error {
	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[p.Mint]
	if !ok {
		cp := *p
		s.data[p.Mint] = &cp
		return nil
	}

	if p.Symbol != "" {
		existing.Symbol = p.Symbol
	}
	// Keep existing value if new value absent.
	if p.LiqUSD != nil {
		v := *p.LiqUSD
		existing.LiqUSD = &v
	}
	if p.FdvUSD != nil {
		v := *p.FdvUSD
		existing.FdvUSD = &v
	}
	return nil
}

// GetByMint retrieves a pool by mint. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByMint(_ context.Context, mint string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List retrieves all tracked pools ordered by first_seen_ts ASC.
func (s *PoolStore) List(_ context.Context) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Pool, 0, len(s.data))
	for _, p := range s.data {
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeenTs != result[j].FirstSeenTs {
			return result[i].FirstSeenTs < result[j].FirstSeenTs
		}
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}

// ListMints retrieves all tracked mints.
func (s *PoolStore) ListMints(ctx context.Context) ([]string, error) {
	pools, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	mints := make([]string, len(pools))
	for i, p := range pools {
		mints[i] = p.Mint
	}
	return mints, nil
}

// DeleteFirstSeenBefore removes pools first seen before cutoff.
func (s *PoolStore) DeleteFirstSeenBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for mint, p := range s.data {
		if p.FirstSeenTs < cutoff {
			delete(s.data, mint)
			deleted++
		}
	}
	return deleted, nil
}

var _ storage.PoolStore = (*PoolStore)(nil)
