package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dexpulse/internal/fetch"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := &stubClock{now: time.Unix(1_700_000_000, 0)}
	client := fetch.NewClient(fetch.Config{Provider: "market-test"}, clock, nil)
	return NewSource(client, srv.URL, clock, nil)
}

func TestPricesBySymbol(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/coins/list"):
			w.Write([]byte(`[
				{"id": "solana", "symbol": "SOL", "name": "Solana"},
				{"id": "wrapped-solana", "symbol": "sol", "name": "Wrapped Solana"},
				{"id": "bonk", "symbol": "bonk", "name": "Bonk"}
			]`))
		case strings.HasSuffix(r.URL.Path, "/simple/price"):
			ids := r.URL.Query().Get("ids")
			if strings.Contains(ids, "wrapped-solana") {
				t.Errorf("duplicate symbol should resolve to the first listing, got ids=%q", ids)
			}
			w.Write([]byte(`{
				"solana": {"usd": 150.5, "usd_24h_vol": 1000000, "usd_market_cap": 70000000000},
				"bonk": {"usd": 0.00002}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	prices, err := src.PricesBySymbol(context.Background(), []string{"SOL", "bonk", "unknown"})
	if err != nil {
		t.Fatalf("PricesBySymbol failed: %v", err)
	}

	sol, ok := prices["sol"]
	if !ok || sol.PriceUSD != 150.5 {
		t.Errorf("sol quote wrong: %+v", sol)
	}
	if sol.Volume24h == nil || *sol.Volume24h != 1_000_000 {
		t.Errorf("sol volume wrong: %+v", sol.Volume24h)
	}

	bonk, ok := prices["bonk"]
	if !ok || bonk.PriceUSD != 0.00002 {
		t.Errorf("bonk quote wrong: %+v", bonk)
	}
	if bonk.Volume24h != nil {
		t.Errorf("absent volume should stay nil, got %v", *bonk.Volume24h)
	}

	// Unresolvable symbols are absent, not errors.
	if _, ok := prices["unknown"]; ok {
		t.Error("unknown symbol should be absent from the result")
	}
}

func TestPricesBySymbol_EmptyInput(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	prices, err := src.PricesBySymbol(context.Background(), nil)
	if err != nil {
		t.Fatalf("PricesBySymbol failed: %v", err)
	}
	if len(prices) != 0 {
		t.Errorf("expected empty result, got %v", prices)
	}
}

func TestPriceBySymbol_Unavailable(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/coins/list") {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`{}`))
	})

	_, err := src.PriceBySymbol(context.Background(), "ghost")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}
