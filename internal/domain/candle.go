package domain

// Candle is the OHLCV aggregate for one token in one time bucket.
// Corresponds to the candles table in PostgreSQL.
// Primary key is (Mint, BucketTs); at most one row per token per bucket.
type Candle struct {
	Mint     string  // token mint address
	BucketTs int64   // Unix seconds truncated to the aggregation interval
	Open     float64 // price of the first trade in the bucket
	High     float64 // max trade price in the bucket
	Low      float64 // min trade price in the bucket
	Close    float64 // price of the last trade by arrival order
	Volume   float64 // summed trade volume in USD
}

// DefaultCandleInterval is the default aggregation bucket width in seconds.
const DefaultCandleInterval int64 = 60

// BucketFor truncates a trade timestamp (Unix seconds) to its bucket start.
func BucketFor(ts, intervalSeconds int64) int64 {
	return ts - ts%intervalSeconds
}

// Valid reports whether the candle satisfies the OHLCV invariant:
// high >= max(open, close) >= min(open, close) >= low, volume >= 0.
func (c *Candle) Valid() bool {
	hi, lo := c.Open, c.Open
	if c.Close > hi {
		hi = c.Close
	}
	if c.Close < lo {
		lo = c.Close
	}
	return c.High >= hi && c.Low <= lo && c.Volume >= 0
}
