package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

var _ storage.PoolStore = (*PoolStore)(nil)

// Upsert creates the pool on first observation. On conflict first_seen_ts
// is left untouched and liq/fdv keep the existing value when the new one
// is NULL.
func (s *PoolStore) Upsert(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pools (mint, symbol, first_seen_ts, liq_usd, fdv_usd)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mint) DO UPDATE SET
			symbol  = CASE WHEN EXCLUDED.symbol = '' THEN pools.symbol ELSE EXCLUDED.symbol END,
			liq_usd = COALESCE(EXCLUDED.liq_usd, pools.liq_usd),
			fdv_usd = COALESCE(EXCLUDED.fdv_usd, pools.fdv_usd)
	`

	_, err := s.pool.Exec(ctx, query, p.Mint, p.Symbol, p.FirstSeenTs, p.LiqUSD, p.FdvUSD)
	if err != nil {
		return fmt.Errorf("upsert pool: %w", err)
	}
	return nil
}

// GetByMint retrieves a pool by mint. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByMint(ctx context.Context, mint string) (*domain.Pool, error) {
	query := `
		SELECT mint, symbol, first_seen_ts, liq_usd, fdv_usd
		FROM pools
		WHERE mint = $1
	`

	var p domain.Pool
	err := s.pool.QueryRow(ctx, query, mint).Scan(&p.Mint, &p.Symbol, &p.FirstSeenTs, &p.LiqUSD, &p.FdvUSD)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by mint: %w", err)
	}
	return &p, nil
}

// List retrieves all tracked pools ordered by first_seen_ts ASC.
func (s *PoolStore) List(ctx context.Context) ([]*domain.Pool, error) {
	query := `
		SELECT mint, symbol, first_seen_ts, liq_usd, fdv_usd
		FROM pools
		ORDER BY first_seen_ts ASC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	return scanPools(rows)
}

// ListMints retrieves all tracked mints.
func (s *PoolStore) ListMints(ctx context.Context) ([]string, error) {
	query := `SELECT mint FROM pools ORDER BY first_seen_ts ASC, mint ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list mints: %w", err)
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, fmt.Errorf("scan mint row: %w", err)
		}
		mints = append(mints, mint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mint rows: %w", err)
	}
	return mints, nil
}

// DeleteFirstSeenBefore removes pools first seen before cutoff.
func (s *PoolStore) DeleteFirstSeenBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pools WHERE first_seen_ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete pools: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanPools scans multiple rows into a slice of Pool.
func scanPools(rows pgx.Rows) ([]*domain.Pool, error) {
	var pools []*domain.Pool

	for rows.Next() {
		var p domain.Pool
		if err := rows.Scan(&p.Mint, &p.Symbol, &p.FirstSeenTs, &p.LiqUSD, &p.FdvUSD); err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}
	return pools, nil
}
