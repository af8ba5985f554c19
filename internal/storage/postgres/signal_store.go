package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal with notified=false, returns the assigned id.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) (int64, error) {
	if sig == nil || sig.Mint == "" {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO signals (mint, signal_ts, ema_cross, vol_spike, rsi, notified)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query, sig.Mint, sig.SignalTs, sig.EmaCross, sig.VolSpike, sig.RSI).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, storage.ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return id, nil
}

// GetByID retrieves a signal. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, id int64) (*domain.Signal, error) {
	query := `
		SELECT id, mint, signal_ts, ema_cross, vol_spike, rsi, notified
		FROM signals
		WHERE id = $1
	`

	var sig domain.Signal
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sig.ID, &sig.Mint, &sig.SignalTs, &sig.EmaCross, &sig.VolSpike, &sig.RSI, &sig.Notified,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return &sig, nil
}

// ListUnnotified retrieves up to limit unnotified signals, id ASC.
func (s *SignalStore) ListUnnotified(ctx context.Context, limit int) ([]*domain.Signal, error) {
	query := `
		SELECT id, mint, signal_ts, ema_cross, vol_spike, rsi, notified
		FROM signals
		WHERE notified = false
		ORDER BY id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unnotified signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// MarkNotified flips notified false -> true. The WHERE notified = false
// guard makes the flip observable exactly once; a second call returns
// ErrNotFound.
func (s *SignalStore) MarkNotified(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE signals SET notified = true WHERE id = $1 AND notified = false`, id)
	if err != nil {
		return fmt.Errorf("mark signal notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCreatedBefore removes signals with signal_ts before cutoff.
func (s *SignalStore) DeleteCreatedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM signals WHERE signal_ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanSignals scans multiple rows into a slice of Signal.
func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		var sig domain.Signal
		err := rows.Scan(&sig.ID, &sig.Mint, &sig.SignalTs, &sig.EmaCross, &sig.VolSpike, &sig.RSI, &sig.Notified)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return signals, nil
}
