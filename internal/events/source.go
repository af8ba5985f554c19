package events

import (
	"context"
	"log"
	"strings"

	"dexpulse/internal/domain"
	"dexpulse/internal/fetch"
	"dexpulse/internal/observability"
	"dexpulse/internal/quote"
)

// Kind classifies a log notification.
type Kind int

const (
	KindUnknown Kind = iota
	KindPoolInit
	KindSwap
)

// Classify inspects raw log lines and picks the event kind. Pool
// initialization wins over swap when a transaction carries both.
func Classify(logs []string) Kind {
	kind := KindUnknown
	for _, line := range logs {
		switch {
		case strings.Contains(line, "initialize2") || strings.Contains(line, "InitializeInstruction"):
			return KindPoolInit
		case strings.Contains(line, "Instruction: Swap") || strings.Contains(line, "SwapEvent"):
			kind = KindSwap
		}
	}
	return kind
}

// PriceDeriver resolves a token's USD price when the transaction's
// balance diff has no stable-asset leg to price against.
type PriceDeriver interface {
	DerivedPriceUSD(ctx context.Context, mint string, decimals int, slippageBps int) (float64, error)
}

// SourceOptions configures a Source.
type SourceOptions struct {
	WS          *WSClient
	Lookup      *TxLookup
	Deriver     PriceDeriver // optional
	SlippageBps int          // passed to the deriver
	Clock       fetch.Clock
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// Source turns raw log notifications into typed events on two output
// channels. Consumers never touch the socket or the lookup client.
type Source struct {
	ws          *WSClient
	lookup      *TxLookup
	deriver     PriceDeriver
	slippageBps int
	clock       fetch.Clock
	logger      *log.Logger
	metrics     *observability.Metrics

	swaps     chan domain.TradeEvent
	poolInits chan domain.PoolInitEvent
}

// NewSource creates a source over an established subscription.
func NewSource(opts SourceOptions) *Source {
	clock := opts.Clock
	if clock == nil {
		clock = fetch.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[events] ", log.LstdFlags)
	}
	return &Source{
		ws:          opts.WS,
		lookup:      opts.Lookup,
		deriver:     opts.Deriver,
		slippageBps: opts.SlippageBps,
		clock:       clock,
		logger:      logger,
		metrics:     opts.Metrics,
		swaps:       make(chan domain.TradeEvent, 1024),
		poolInits:   make(chan domain.PoolInitEvent, 256),
	}
}

// Swaps returns the normalized trade stream.
func (s *Source) Swaps() <-chan domain.TradeEvent {
	return s.swaps
}

// PoolInits returns the pool initialization stream.
func (s *Source) PoolInits() <-chan domain.PoolInitEvent {
	return s.poolInits
}

// Run consumes the subscription until ctx is done or the subscription
// channel closes. Per-notification failures are logged and skipped.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.swaps)
	defer close(s.poolInits)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-s.ws.Notifications():
			if !ok {
				return nil
			}
			s.handle(ctx, notif)
		}
	}
}

func (s *Source) handle(ctx context.Context, notif LogNotification) {
	if notif.Failed || notif.Signature == "" {
		return
	}

	kind := Classify(notif.Logs)
	if kind == KindUnknown {
		return
	}

	detail, err := s.lookup.GetTransaction(ctx, notif.Signature)
	if err != nil {
		s.ingestError("lookup")
		s.logger.Printf("lookup %s: %v", notif.Signature, err)
		return
	}
	if detail == nil || len(detail.Deltas) == 0 {
		return
	}

	if s.metrics != nil && detail.BlockTime > 0 {
		lag := s.clock.Now().Unix() - detail.BlockTime
		if lag >= 0 {
			s.metrics.EventLagSeconds.Observe(float64(lag))
		}
	}

	switch kind {
	case KindPoolInit:
		s.emitPoolInit(ctx, detail)
	case KindSwap:
		s.emitSwap(ctx, detail)
	}
}

// emitPoolInit publishes a pool event for the transaction's tracked
// mint. The stable leg's size doubles as the initial liquidity hint.
func (s *Source) emitPoolInit(ctx context.Context, detail *TxDetail) {
	token, stable := splitDeltas(detail.Deltas)
	if token == nil {
		return
	}

	ev := domain.PoolInitEvent{
		Mint:        token.Mint,
		Timestamp:   detail.BlockTime,
		TxSignature: detail.Signature,
	}
	if stable != nil && stable.Amount > 0 {
		// Both sides of the pool are seeded, so liquidity is roughly
		// twice the stable leg.
		liq := stable.Amount * 2
		ev.LiqUSD = &liq
	}

	select {
	case s.poolInits <- ev:
	case <-ctx.Done():
	}
}

// emitSwap prices the trade off the stable leg when present, otherwise
// through the deriver.
func (s *Source) emitSwap(ctx context.Context, detail *TxDetail) {
	token, stable := splitDeltas(detail.Deltas)
	if token == nil || token.Amount <= 0 {
		return
	}

	var price, volumeUSD float64
	switch {
	case stable != nil && stable.Amount > 0:
		volumeUSD = stable.Amount
		price = stable.Amount / token.Amount
	case s.deriver != nil:
		p, err := s.deriver.DerivedPriceUSD(ctx, token.Mint, token.Decimals, s.slippageBps)
		if err != nil {
			s.ingestError("derive_price")
			s.logger.Printf("derive price %s: %v", token.Mint, err)
			return
		}
		price = p
		volumeUSD = p * token.Amount
	default:
		return
	}
	if price <= 0 {
		return
	}

	ts := detail.BlockTime
	if ts == 0 {
		ts = s.clock.Now().Unix()
	}

	select {
	case s.swaps <- domain.TradeEvent{
		Mint:        token.Mint,
		Price:       price,
		VolumeUSD:   volumeUSD,
		Timestamp:   ts,
		TxSignature: detail.Signature,
	}:
	case <-ctx.Done():
	}
}

func (s *Source) ingestError(stage string) {
	if s.metrics != nil {
		s.metrics.IngestErrors.WithLabelValues(stage).Inc()
	}
}

// splitDeltas separates the stable reference leg from the traded token,
// taking the largest non-stable delta as the token side.
func splitDeltas(deltas []TokenDelta) (token, stable *TokenDelta) {
	for i := range deltas {
		d := &deltas[i]
		if d.Mint == quote.USDCMint {
			stable = d
			continue
		}
		if token == nil || d.Amount > token.Amount {
			token = d
		}
	}
	return token, stable
}
