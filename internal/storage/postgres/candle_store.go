package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// CandleStore implements storage.CandleStore using PostgreSQL.
// Merge relies on ON CONFLICT DO UPDATE so concurrent merges on the
// same (mint, bucket_ts) serialize inside the database and no update
// to high/low/volume is lost.
type CandleStore struct {
	pool *Pool
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(pool *Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

var _ storage.CandleStore = (*CandleStore)(nil)

// Merge atomically upserts a single-trade candle into (mint, bucket_ts).
func (s *CandleStore) Merge(ctx context.Context, c *domain.Candle) error {
	if c == nil || c.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO candles (mint, bucket_ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint, bucket_ts) DO UPDATE SET
			high   = GREATEST(candles.high, EXCLUDED.high),
			low    = LEAST(candles.low, EXCLUDED.low),
			close  = EXCLUDED.close,
			volume = candles.volume + EXCLUDED.volume
	`

	_, err := s.pool.Exec(ctx, query, c.Mint, c.BucketTs, c.Open, c.High, c.Low, c.Close, c.Volume)
	if err != nil {
		return fmt.Errorf("merge candle: %w", err)
	}
	return nil
}

// InsertIfAbsent inserts the candle only when the bucket is empty.
func (s *CandleStore) InsertIfAbsent(ctx context.Context, c *domain.Candle) (bool, error) {
	if c == nil || c.Mint == "" {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO candles (mint, bucket_ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint, bucket_ts) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query, c.Mint, c.BucketTs, c.Open, c.High, c.Low, c.Close, c.Volume)
	if err != nil {
		return false, fmt.Errorf("insert candle if absent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get retrieves one candle. Returns ErrNotFound if not exists.
func (s *CandleStore) Get(ctx context.Context, mint string, bucketTs int64) (*domain.Candle, error) {
	query := `
		SELECT mint, bucket_ts, open, high, low, close, volume
		FROM candles
		WHERE mint = $1 AND bucket_ts = $2
	`

	var c domain.Candle
	err := s.pool.QueryRow(ctx, query, mint, bucketTs).Scan(
		&c.Mint, &c.BucketTs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get candle: %w", err)
	}
	return &c, nil
}

// Latest retrieves the most recent candle for a mint.
func (s *CandleStore) Latest(ctx context.Context, mint string) (*domain.Candle, error) {
	query := `
		SELECT mint, bucket_ts, open, high, low, close, volume
		FROM candles
		WHERE mint = $1
		ORDER BY bucket_ts DESC
		LIMIT 1
	`

	var c domain.Candle
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&c.Mint, &c.BucketTs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest candle: %w", err)
	}
	return &c, nil
}

// Window retrieves up to limit most-recent candles, oldest to newest.
func (s *CandleStore) Window(ctx context.Context, mint string, limit int) ([]*domain.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Inner query selects the newest rows, outer restores ascending order.
	query := `
		SELECT mint, bucket_ts, open, high, low, close, volume FROM (
			SELECT mint, bucket_ts, open, high, low, close, volume
			FROM candles
			WHERE mint = $1
			ORDER BY bucket_ts DESC
			LIMIT $2
		) w
		ORDER BY bucket_ts ASC
	`

	rows, err := s.pool.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("get candle window: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// DeleteBucketsBefore removes candles with bucket_ts before cutoff.
func (s *CandleStore) DeleteBucketsBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM candles WHERE bucket_ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete candles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Mint, &c.BucketTs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return candles, nil
}
