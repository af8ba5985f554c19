package domain

// TradeEvent is a normalized swap observed on-chain, the aggregator's input.
type TradeEvent struct {
	Mint        string  // token mint address
	Price       float64 // execution price in USD
	VolumeUSD   float64 // trade size in USD
	Timestamp   int64   // Unix seconds
	TxSignature string  // originating transaction signature
}

// PoolInitEvent is a normalized pool-initialization observation.
type PoolInitEvent struct {
	Mint        string   // token mint address
	Symbol      string   // ticker symbol if resolvable, else ""
	Timestamp   int64    // Unix seconds
	TxSignature string   // originating transaction signature
	LiqUSD      *float64 // initial liquidity if the event carries it
	FdvUSD      *float64 // initial valuation if the event carries it
}

// ReferencePrice is a symbol-keyed USD price fetched from the external
// market-data source. Corresponds to the reference_prices table.
type ReferencePrice struct {
	Symbol    string   // lowercase ticker symbol
	PriceUSD  float64  // last fetched USD price
	Volume24h *float64 // optional 24h volume
	MarketCap *float64 // optional market cap
	FetchedTs int64    // Unix seconds at fetch time
}
