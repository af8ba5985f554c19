package domain

// Signal is a candidate buy event produced by the detection stage.
// Corresponds to the signals table in PostgreSQL.
// Notified flips false -> true exactly once after successful delivery
// and is never reverted.
type Signal struct {
	ID       int64   // BIGSERIAL primary key, monotonic
	Mint     string  // token mint address
	SignalTs int64   // Unix seconds at detection time
	EmaCross bool    // EMA9 crossed above EMA21 on the last bar
	VolSpike float64 // volume spike ratio at detection time
	RSI      float64 // RSI14 at detection time
	Notified bool    // set by the notification stage after delivery
}

// NotificationRecord logs one delivery attempt for a signal.
// Corresponds to the notifications table in PostgreSQL (retention-bounded).
type NotificationRecord struct {
	ID          int64  // BIGSERIAL primary key
	SignalID    int64  // FK to signals
	Mint        string // token mint address
	DeliveredTs int64  // Unix seconds at send time
	OK          bool   // whether the sink accepted the message
}
