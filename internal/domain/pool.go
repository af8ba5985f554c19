package domain

// Pool represents a tracked liquidity pool for one token mint.
// Corresponds to the pools table in PostgreSQL.
type Pool struct {
	Mint        string   // token mint address (primary key)
	Symbol      string   // ticker symbol, used for reference price lookups
	FirstSeenTs int64    // Unix seconds, set once at first observation
	LiqUSD      *float64 // last-known liquidity in USD (nullable)
	FdvUSD      *float64 // last-known fully-diluted valuation in USD (nullable)
}

// Age returns pool age in seconds relative to now (Unix seconds).
func (p *Pool) Age(now int64) int64 {
	return now - p.FirstSeenTs
}
