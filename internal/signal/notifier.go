package signal

import (
	"context"
	"errors"
	"fmt"
	"log"

	"dexpulse/internal/domain"
	"dexpulse/internal/fetch"
	"dexpulse/internal/observability"
	"dexpulse/internal/storage"
)

// Rejection reasons used in logs and metrics. A rejected signal stays
// unnotified and is retried on the next cycle until retention expires it.
const (
	RejectPoolMissing      = "pool_missing"
	RejectLowLiquidity     = "low_liquidity"
	RejectHighValuation    = "high_valuation"
	RejectPriceImpact      = "price_impact"
	RejectQuoteUnavailable = "quote_unavailable"
)

// NotifierConfig holds Stage B filter thresholds.
type NotifierConfig struct {
	MinLiquidityUSD float64 // pools below this are skipped
	MaxFdvUSD       float64 // pools above this are skipped
	TestNotionalUSD float64 // notional for the price-impact probe
	MaxImpactPct    float64 // fractional ceiling, 0.02 == 2%
	SlippageBps     int     // slippage tolerance passed to the quoter
	BatchLimit      int     // unnotified signals scanned per cycle
}

// DefaultNotifierConfig returns the stock Stage B thresholds.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		MinLiquidityUSD: 10_000,
		MaxFdvUSD:       5_000_000,
		TestNotionalUSD: 250,
		MaxImpactPct:    0.02,
		SlippageBps:     100,
		BatchLimit:      100,
	}
}

// QuoteSource is the external price-impact dependency.
type QuoteSource interface {
	PriceImpact(ctx context.Context, mint string, notionalUSD float64, slippageBps int) (float64, error)
}

// Sink delivers outbound notifications fire-and-forget.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// Notifier is Stage B: it scans unnotified signals FIFO, applies the
// liquidity/valuation/price-impact filters and delivers survivors.
type Notifier struct {
	pools         storage.PoolStore
	signals       storage.SignalStore
	notifications storage.NotificationStore
	quotes        QuoteSource
	sink          Sink
	cfg           NotifierConfig
	clock         fetch.Clock
	logger        *log.Logger
	metrics       *observability.Metrics
}

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	Pools         storage.PoolStore
	Signals       storage.SignalStore
	Notifications storage.NotificationStore
	Quotes        QuoteSource
	Sink          Sink
	Config        NotifierConfig
	Clock         fetch.Clock
	Logger        *log.Logger
	Metrics       *observability.Metrics
}

// NewNotifier creates a Stage B notifier.
func NewNotifier(opts NotifierOptions) *Notifier {
	cfg := opts.Config
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultNotifierConfig().BatchLimit
	}
	clock := opts.Clock
	if clock == nil {
		clock = fetch.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	return &Notifier{
		pools:         opts.Pools,
		signals:       opts.Signals,
		notifications: opts.Notifications,
		quotes:        opts.Quotes,
		sink:          opts.Sink,
		cfg:           cfg,
		clock:         clock,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// RunCycle scans unnotified signals oldest-first and delivers the ones
// that pass every filter. Skipped signals stay queued and come back
// next cycle. Per-signal errors never abort the scan.
func (n *Notifier) RunCycle(ctx context.Context) (int, []string) {
	var delivered int
	var errs []string

	pendings, err := n.signals.ListUnnotified(ctx, n.cfg.BatchLimit)
	if err != nil {
		return 0, []string{fmt.Sprintf("list unnotified: %v", err)}
	}

	for _, sig := range pendings {
		ok, err := n.process(ctx, sig)
		if err != nil {
			errs = append(errs, fmt.Sprintf("signal #%d: %v", sig.ID, err))
			continue
		}
		if ok {
			delivered++
		}
	}

	if delivered > 0 || len(errs) > 0 {
		n.logger.Printf("cycle done: delivered=%d pending=%d errors=%d",
			delivered, len(pendings)-delivered, len(errs))
	}
	return delivered, errs
}

// process runs one signal through the filter chain. false with nil error
// means the signal was skipped and stays queued.
func (n *Notifier) process(ctx context.Context, sig *domain.Signal) (bool, error) {
	pool, err := n.pools.GetByMint(ctx, sig.Mint)
	if errors.Is(err, storage.ErrNotFound) {
		n.reject(sig, RejectPoolMissing)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load pool: %w", err)
	}

	if pool.LiqUSD == nil || *pool.LiqUSD < n.cfg.MinLiquidityUSD {
		n.reject(sig, RejectLowLiquidity)
		return false, nil
	}
	if pool.FdvUSD != nil && *pool.FdvUSD > n.cfg.MaxFdvUSD {
		n.reject(sig, RejectHighValuation)
		return false, nil
	}

	impact, err := n.quotes.PriceImpact(ctx, sig.Mint, n.cfg.TestNotionalUSD, n.cfg.SlippageBps)
	if err != nil {
		n.reject(sig, RejectQuoteUnavailable)
		return false, nil
	}
	if impact > n.cfg.MaxImpactPct {
		n.reject(sig, RejectPriceImpact)
		return false, nil
	}

	return n.deliver(ctx, sig, pool, impact)
}

// deliver sends the notification, then flips notified. Delivery before
// mark: if the mark fails, the next cycle may send a duplicate, which is
// accepted over losing the notification.
func (n *Notifier) deliver(ctx context.Context, sig *domain.Signal, pool *domain.Pool, impact float64) (bool, error) {
	if err := n.sink.Send(ctx, formatSignal(sig, pool, impact)); err != nil {
		return false, fmt.Errorf("send: %w", err)
	}

	now := n.clock.Now().Unix()
	if err := n.notifications.Insert(ctx, &domain.NotificationRecord{
		SignalID:    sig.ID,
		Mint:        sig.Mint,
		DeliveredTs: now,
		OK:          true,
	}); err != nil {
		n.logger.Printf("signal #%d: log delivery: %v", sig.ID, err)
	}

	if err := n.signals.MarkNotified(ctx, sig.ID); err != nil {
		n.logger.Printf("signal #%d: delivered but mark failed, duplicate possible next cycle: %v", sig.ID, err)
		return true, nil
	}

	if n.metrics != nil {
		n.metrics.SignalsNotified.Inc()
	}
	return true, nil
}

// reject records a skip reason; the signal remains queued.
func (n *Notifier) reject(sig *domain.Signal, reason string) {
	if n.metrics != nil {
		n.metrics.SignalsRejected.WithLabelValues(reason).Inc()
	}
	n.logger.Printf("signal #%d %s: skipped (%s)", sig.ID, sig.Mint, reason)
}

// formatSignal renders the outbound message.
func formatSignal(sig *domain.Signal, pool *domain.Pool, impact float64) string {
	liq := 0.0
	if pool.LiqUSD != nil {
		liq = *pool.LiqUSD
	}
	return fmt.Sprintf(
		"BUY SIGNAL %s\nEMA9 crossed above EMA21\nvolume spike %.1fx, RSI %.1f\nliquidity $%.0f, price impact %.2f%%",
		sig.Mint, sig.VolSpike, sig.RSI, liq, impact*100,
	)
}
