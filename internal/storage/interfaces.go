package storage

import (
	"context"

	"dexpulse/internal/domain"
)

// PoolStore provides access to pools storage.
type PoolStore interface {
	// Upsert creates the pool on first observation and updates it on
	// subsequent ones. FirstSeenTs is set once and never changed;
	// LiqUSD/FdvUSD keep the existing value when the new one is nil.
	Upsert(ctx context.Context, p *domain.Pool) error

	// GetByMint retrieves a pool by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.Pool, error)

	// List retrieves all tracked pools ordered by first_seen_ts ASC.
	List(ctx context.Context) ([]*domain.Pool, error)

	// ListMints retrieves all tracked mints.
	ListMints(ctx context.Context) ([]string, error)

	// DeleteFirstSeenBefore removes pools first seen before cutoff (Unix seconds).
	// Returns the number of rows deleted.
	DeleteFirstSeenBefore(ctx context.Context, cutoff int64) (int64, error)
}

// CandleStore provides access to candles storage.
type CandleStore interface {
	// Merge atomically upserts a single-trade candle into (mint, bucket_ts):
	// insert as-is when absent, otherwise high'=max, low'=min, close'=new
	// close, volume'+=new volume. Concurrent merges on the same key must
	// not lose updates.
	Merge(ctx context.Context, c *domain.Candle) error

	// InsertIfAbsent inserts the candle only when no row exists for
	// (mint, bucket_ts). Returns true when a row was inserted.
	InsertIfAbsent(ctx context.Context, c *domain.Candle) (bool, error)

	// Get retrieves one candle. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string, bucketTs int64) (*domain.Candle, error)

	// Latest retrieves the most recent candle for a mint, regardless of
	// age. Returns ErrNotFound if the mint has no candles.
	Latest(ctx context.Context, mint string) (*domain.Candle, error)

	// Window retrieves up to limit most-recent candles for a mint,
	// ordered oldest to newest.
	Window(ctx context.Context, mint string, limit int) ([]*domain.Candle, error)

	// DeleteBucketsBefore removes candles with bucket_ts before cutoff.
	// Returns the number of rows deleted.
	DeleteBucketsBefore(ctx context.Context, cutoff int64) (int64, error)
}

// SignalStore provides access to signals storage.
type SignalStore interface {
	// Insert adds a new signal with notified=false and returns its
	// store-assigned monotonic id.
	Insert(ctx context.Context, s *domain.Signal) (int64, error)

	// GetByID retrieves a signal. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Signal, error)

	// ListUnnotified retrieves up to limit signals with notified=false,
	// ordered by id ASC (FIFO delivery order).
	ListUnnotified(ctx context.Context, limit int) ([]*domain.Signal, error)

	// MarkNotified flips notified false -> true for the given id.
	// Returns ErrNotFound when the signal does not exist or was already
	// notified, so the flip is observable exactly once.
	MarkNotified(ctx context.Context, id int64) error

	// DeleteCreatedBefore removes signals with signal_ts before cutoff,
	// regardless of notified state. Returns the number of rows deleted.
	DeleteCreatedBefore(ctx context.Context, cutoff int64) (int64, error)
}

// ReferencePriceStore provides access to reference_prices storage.
type ReferencePriceStore interface {
	// Upsert stores the latest fetched price for a symbol.
	Upsert(ctx context.Context, p *domain.ReferencePrice) error

	// GetBySymbol retrieves the last fetched price for a symbol.
	// Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.ReferencePrice, error)

	// DeleteFetchedBefore removes prices fetched before cutoff.
	// Returns the number of rows deleted.
	DeleteFetchedBefore(ctx context.Context, cutoff int64) (int64, error)
}

// NotificationStore provides access to the notifications delivery log.
type NotificationStore interface {
	// Insert appends a delivery record.
	Insert(ctx context.Context, n *domain.NotificationRecord) error

	// CountBySignal returns how many delivery records exist for a signal.
	CountBySignal(ctx context.Context, signalID int64) (int64, error)

	// DeleteDeliveredBefore removes records delivered before cutoff.
	// Returns the number of rows deleted.
	DeleteDeliveredBefore(ctx context.Context, cutoff int64) (int64, error)
}
