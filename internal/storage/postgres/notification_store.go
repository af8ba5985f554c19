package postgres

import (
	"context"
	"fmt"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

var _ storage.NotificationStore = (*NotificationStore)(nil)

// Insert appends a delivery record.
func (s *NotificationStore) Insert(ctx context.Context, n *domain.NotificationRecord) error {
	if n == nil || n.SignalID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO notifications (signal_id, mint, delivered_ts, ok)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, n.SignalID, n.Mint, n.DeliveredTs, n.OK)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// CountBySignal returns how many delivery records exist for a signal.
func (s *NotificationStore) CountBySignal(ctx context.Context, signalID int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE signal_id = $1`, signalID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// DeleteDeliveredBefore removes records delivered before cutoff.
func (s *NotificationStore) DeleteDeliveredBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE delivered_ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
