package domain

// IndicatorSnapshot is the ephemeral result of evaluating one candle
// window. It is computed on demand and never persisted.
type IndicatorSnapshot struct {
	Mint         string  // token mint address
	EMA9         float64 // fast EMA at the last bar
	EMA21        float64 // slow EMA at the last bar
	RSI          float64 // RSI14 at the last bar, in [0, 100]
	VolSpike     float64 // sum(last 5 volumes) / (5 * avg of the 30 prior)
	BullishCross bool    // EMA9 <= EMA21 at n-2 and EMA9 > EMA21 at n-1
}
