// Package market fetches reference USD prices from an external
// market-data provider, keyed by ticker symbol. The symbol join is
// deliberately weak: the provider does not index by mint, so a symbol
// may be missing or ambiguous and callers must treat a miss as a
// skippable condition.
package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"dexpulse/internal/fetch"
)

// ErrPriceUnavailable means the provider has no price for the requested
// symbol. The item is skipped, never the batch.
var ErrPriceUnavailable = errors.New("reference price unavailable")

// MaxBatchSize is the provider's per-call identifier ceiling.
const MaxBatchSize = 250

// PriceQuote is the per-identifier response shape.
type PriceQuote struct {
	PriceUSD  float64
	Volume24h *float64
	MarketCap *float64
}

// Source fetches the token catalog and batched prices through a
// rate-limited client.
type Source struct {
	client  *fetch.Client
	baseURL string
	catalog *catalogCache
	logger  *log.Logger
}

// NewSource creates a market-data source. baseURL points at the provider
// API root, e.g. https://api.coingecko.com/api/v3.
func NewSource(client *fetch.Client, baseURL string, clock fetch.Clock, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.Default()
	}
	s := &Source{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
	s.catalog = newCatalogCache(s.fetchCatalog, clock)
	return s
}

// catalogEntry is one row of the provider's full token list.
type catalogEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// fetchCatalog downloads the full token list.
func (s *Source) fetchCatalog(ctx context.Context) (map[string]string, error) {
	var list []catalogEntry
	if err := s.client.GetJSON(ctx, s.baseURL+"/coins/list", nil, &list); err != nil {
		return nil, fmt.Errorf("fetch token catalog: %w", err)
	}

	// First listing wins for duplicate symbols; the join is best-effort.
	bySymbol := make(map[string]string, len(list))
	for _, e := range list {
		sym := strings.ToLower(e.Symbol)
		if sym == "" {
			continue
		}
		if _, ok := bySymbol[sym]; !ok {
			bySymbol[sym] = e.ID
		}
	}
	return bySymbol, nil
}

// PricesBySymbol resolves symbols through the catalog and fetches USD
// prices in batches of at most MaxBatchSize identifiers. Symbols the
// catalog cannot resolve are absent from the result, not errors.
func (s *Source) PricesBySymbol(ctx context.Context, symbols []string) (map[string]PriceQuote, error) {
	if len(symbols) == 0 {
		return map[string]PriceQuote{}, nil
	}

	bySymbol, err := s.catalog.Get(ctx)
	if err != nil {
		return nil, err
	}

	// Resolve the weak symbol join; remember which symbol each id serves.
	symbolByID := make(map[string]string)
	var ids []string
	for _, sym := range symbols {
		id, ok := bySymbol[strings.ToLower(sym)]
		if !ok {
			continue
		}
		if _, dup := symbolByID[id]; dup {
			continue
		}
		symbolByID[id] = strings.ToLower(sym)
		ids = append(ids, id)
	}

	result := make(map[string]PriceQuote)
	for start := 0; start < len(ids); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.fetchBatch(ctx, ids[start:end], symbolByID, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// simplePriceRow is the per-id payload of the batched price endpoint.
type simplePriceRow struct {
	USD       *float64 `json:"usd"`
	USD24hVol *float64 `json:"usd_24h_vol"`
	USDMktCap *float64 `json:"usd_market_cap"`
}

// fetchBatch fetches one bounded batch and merges it into result.
func (s *Source) fetchBatch(ctx context.Context, ids []string, symbolByID map[string]string, result map[string]PriceQuote) error {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_vol", "true")
	params.Set("include_market_cap", "true")

	var resp map[string]simplePriceRow
	if err := s.client.GetJSON(ctx, s.baseURL+"/simple/price", params, &resp); err != nil {
		return fmt.Errorf("fetch price batch: %w", err)
	}

	for id, row := range resp {
		sym, ok := symbolByID[id]
		if !ok || row.USD == nil {
			continue
		}
		result[sym] = PriceQuote{
			PriceUSD:  *row.USD,
			Volume24h: row.USD24hVol,
			MarketCap: row.USDMktCap,
		}
	}
	return nil
}

// PriceBySymbol fetches a single symbol's USD price.
// Returns ErrPriceUnavailable when the catalog or the provider has no
// positive price for it.
func (s *Source) PriceBySymbol(ctx context.Context, symbol string) (float64, error) {
	prices, err := s.PricesBySymbol(ctx, []string{symbol})
	if err != nil {
		return 0, err
	}
	q, ok := prices[strings.ToLower(symbol)]
	if !ok || q.PriceUSD <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	return q.PriceUSD, nil
}
