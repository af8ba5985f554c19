package postgres

import (
	"context"
	"fmt"
	"strings"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage"
)

// ReferencePriceStore implements storage.ReferencePriceStore using PostgreSQL.
type ReferencePriceStore struct {
	pool *Pool
}

// NewReferencePriceStore creates a new ReferencePriceStore.
func NewReferencePriceStore(pool *Pool) *ReferencePriceStore {
	return &ReferencePriceStore{pool: pool}
}

var _ storage.ReferencePriceStore = (*ReferencePriceStore)(nil)

// Upsert stores the latest fetched price for a symbol.
func (s *ReferencePriceStore) Upsert(ctx context.Context, p *domain.ReferencePrice) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO reference_prices (symbol, price_usd, volume_24h, market_cap, fetched_ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			price_usd  = EXCLUDED.price_usd,
			volume_24h = COALESCE(EXCLUDED.volume_24h, reference_prices.volume_24h),
			market_cap = COALESCE(EXCLUDED.market_cap, reference_prices.market_cap),
			fetched_ts = EXCLUDED.fetched_ts
	`

	_, err := s.pool.Exec(ctx, query,
		strings.ToLower(p.Symbol), p.PriceUSD, p.Volume24h, p.MarketCap, p.FetchedTs)
	if err != nil {
		return fmt.Errorf("upsert reference price: %w", err)
	}
	return nil
}

// GetBySymbol retrieves the last fetched price for a symbol.
func (s *ReferencePriceStore) GetBySymbol(ctx context.Context, symbol string) (*domain.ReferencePrice, error) {
	query := `
		SELECT symbol, price_usd, volume_24h, market_cap, fetched_ts
		FROM reference_prices
		WHERE symbol = $1
	`

	var p domain.ReferencePrice
	err := s.pool.QueryRow(ctx, query, strings.ToLower(symbol)).Scan(
		&p.Symbol, &p.PriceUSD, &p.Volume24h, &p.MarketCap, &p.FetchedTs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get reference price: %w", err)
	}
	return &p, nil
}

// DeleteFetchedBefore removes prices fetched before cutoff.
func (s *ReferencePriceStore) DeleteFetchedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reference_prices WHERE fetched_ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete reference prices: %w", err)
	}
	return tag.RowsAffected(), nil
}
