package memory

import (
	"context"
	"sort"
	"sync"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Signal
	nextID int64
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data:   make(map[int64]*domain.Signal),
		nextID: 1,
	}
}

// Insert adds a new signal and returns its assigned monotonic id.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) (int64, error) {
	if sig == nil || sig.Mint == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sig
	cp.ID = s.nextID
	cp.Notified = false
	s.data[cp.ID] = &cp
	s.nextID++
	return cp.ID, nil
}

// GetByID retrieves a signal. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, id int64) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *sig
	return &cp, nil
}

// ListUnnotified retrieves up to limit unnotified signals, id ASC.
func (s *SignalStore) ListUnnotified(_ context.Context, limit int) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if !sig.Notified {
			cp := *sig
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkNotified flips notified false -> true. Returns ErrNotFound when
// the signal does not exist or was already notified.
func (s *SignalStore) MarkNotified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.data[id]
	if !ok || sig.Notified {
		return storage.ErrNotFound
	}
	sig.Notified = true
	return nil
}

// DeleteCreatedBefore removes signals with signal_ts before cutoff.
func (s *SignalStore) DeleteCreatedBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, sig := range s.data {
		if sig.SignalTs < cutoff {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
