package memory

import (
	"context"
	"strings"
	"sync"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// ReferencePriceStore is an in-memory implementation of storage.ReferencePriceStore.
type ReferencePriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ReferencePrice // keyed by lowercase symbol
}

// NewReferencePriceStore creates a new in-memory reference price store.
func NewReferencePriceStore() *ReferencePriceStore {
	return &ReferencePriceStore{
		data: make(map[string]*domain.ReferencePrice),
	}
}

// Upsert stores the latest fetched price for a symbol.
func (s *ReferencePriceStore) Upsert(_ context.Context, p *domain.ReferencePrice) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.Symbol = strings.ToLower(p.Symbol)
	s.data[cp.Symbol] = &cp
	return nil
}

// GetBySymbol retrieves the last fetched price for a symbol.
func (s *ReferencePriceStore) GetBySymbol(_ context.Context, symbol string) (*domain.ReferencePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[strings.ToLower(symbol)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// DeleteFetchedBefore removes prices fetched before cutoff.
func (s *ReferencePriceStore) DeleteFetchedBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for symbol, p := range s.data {
		if p.FetchedTs < cutoff {
			delete(s.data, symbol)
			deleted++
		}
	}
	return deleted, nil
}

var _ storage.ReferencePriceStore = (*ReferencePriceStore)(nil)
