// Package quote talks to an external swap-quoting source. It serves two
// consumers: the price-impact gate in the notification stage and USD
// price derivation via a reference-asset round-trip.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"dexpulse/internal/fetch"
)

// ErrQuoteUnavailable means the source returned no usable route for the
// requested pair. Callers skip the item.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// USDCMint is the canonical reference asset for USD-denominated quotes.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// usdcDecimals is the reference asset's base-unit scale.
const usdcDecimals = 6

// derivedPriceTTL bounds reuse of round-trip derived USD prices.
const derivedPriceTTL = 5 * time.Minute

// Quote is the response of the quoting source.
type Quote struct {
	InAmount       uint64  // input amount in base units
	OutAmount      uint64  // output amount in base units
	PriceImpactPct float64 // fractional price impact, 0.01 == 1%
}

// Client fetches quotes through a rate-limited client. Derived USD
// prices are cached briefly per mint so repeated Stage B checks on the
// same token do not burn quota.
type Client struct {
	http    *fetch.Client
	baseURL string
	logger  *log.Logger

	derivedPrices *expirable.LRU[string, float64]
}

// NewClient creates a quote client. baseURL points at the quote API
// root, e.g. https://quote-api.jup.ag/v6.
func NewClient(http *fetch.Client, baseURL string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		http:          http,
		baseURL:       baseURL,
		logger:        logger,
		derivedPrices: expirable.NewLRU[string, float64](1024, nil, derivedPriceTTL),
	}
}

// quoteResponse mirrors the source's wire format: amounts and impact are
// decimal strings.
type quoteResponse struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// GetQuote requests a route for swapping amount base units of inputMint
// into outputMint at the given slippage tolerance (basis points).
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	var resp quoteResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/quote", params, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if resp.OutAmount == "" {
		return nil, fmt.Errorf("%w: empty route for %s -> %s", ErrQuoteUnavailable, inputMint, outputMint)
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		inAmount = amount
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad out amount %q", ErrQuoteUnavailable, resp.OutAmount)
	}
	impact, err := strconv.ParseFloat(resp.PriceImpactPct, 64)
	if err != nil {
		impact = 0
	}

	return &Quote{
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
	}, nil
}

// PriceImpact quotes buying the token with notionalUSD of the reference
// asset and returns the fractional price impact.
func (c *Client) PriceImpact(ctx context.Context, mint string, notionalUSD float64, slippageBps int) (float64, error) {
	amount := uint64(math.Round(notionalUSD * math.Pow10(usdcDecimals)))
	q, err := c.GetQuote(ctx, USDCMint, mint, amount, slippageBps)
	if err != nil {
		return 0, err
	}
	return q.PriceImpactPct, nil
}

// DerivedPriceUSD derives the token's USD price by quoting one whole
// token into the reference asset. Results are cached per mint for a few
// minutes.
func (c *Client) DerivedPriceUSD(ctx context.Context, mint string, decimals int, slippageBps int) (float64, error) {
	if price, ok := c.derivedPrices.Get(mint); ok {
		return price, nil
	}

	oneToken := uint64(math.Pow10(decimals))
	q, err := c.GetQuote(ctx, mint, USDCMint, oneToken, slippageBps)
	if err != nil {
		return 0, err
	}
	if q.OutAmount == 0 {
		return 0, fmt.Errorf("%w: zero out amount for %s", ErrQuoteUnavailable, mint)
	}

	price := float64(q.OutAmount) / math.Pow10(usdcDecimals)
	c.derivedPrices.Add(mint, price)
	return price, nil
}
