package memory

import (
	"context"
	"sync"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// NotificationStore is an in-memory implementation of storage.NotificationStore.
type NotificationStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.NotificationRecord
	nextID int64
}

// NewNotificationStore creates a new in-memory notification log store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		data:   make(map[int64]*domain.NotificationRecord),
		nextID: 1,
	}
}

// Insert appends a delivery record.
func (s *NotificationStore) Insert(_ context.Context, n *domain.NotificationRecord) error {
	if n == nil || n.SignalID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	cp.ID = s.nextID
	s.data[cp.ID] = &cp
	s.nextID++
	return nil
}

// CountBySignal returns how many delivery records exist for a signal.
func (s *NotificationStore) CountBySignal(_ context.Context, signalID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.data {
		if n.SignalID == signalID {
			count++
		}
	}
	return count, nil
}

// DeleteDeliveredBefore removes records delivered before cutoff.
func (s *NotificationStore) DeleteDeliveredBefore(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, n := range s.data {
		if n.DeliveredTs < cutoff {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ storage.NotificationStore = (*NotificationStore)(nil)
