// Package indicator evaluates candle windows into indicator snapshots.
// All computation is pure; nothing here touches storage or the network.
package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"dexpulse/internal/domain"
)

// Default engine parameters.
const (
	DefaultFastPeriod = 9
	DefaultSlowPeriod = 21
	DefaultRSIPeriod  = 14
	DefaultMinWindow  = 40

	// Volume spike compares the last spikeRecent buckets against the
	// average of the spikeBaseline buckets before them.
	spikeRecent   = 5
	spikeBaseline = 30
)

// Config holds engine parameters. Zero values fall back to defaults.
type Config struct {
	FastPeriod int
	SlowPeriod int
	RSIPeriod  int
	MinWindow  int
}

// Engine computes EMA cross, RSI and volume-spike indicators over an
// ordered candle window.
type Engine struct {
	fastPeriod int
	slowPeriod int
	rsiPeriod  int
	minWindow  int
}

// NewEngine creates an engine, applying defaults and validating that the
// window is large enough for the cross check to have two defined slow-EMA
// points (minWindow >= slowPeriod+2).
func NewEngine(cfg Config) (*Engine, error) {
	e := &Engine{
		fastPeriod: cfg.FastPeriod,
		slowPeriod: cfg.SlowPeriod,
		rsiPeriod:  cfg.RSIPeriod,
		minWindow:  cfg.MinWindow,
	}
	if e.fastPeriod <= 0 {
		e.fastPeriod = DefaultFastPeriod
	}
	if e.slowPeriod <= 0 {
		e.slowPeriod = DefaultSlowPeriod
	}
	if e.rsiPeriod <= 0 {
		e.rsiPeriod = DefaultRSIPeriod
	}
	if e.minWindow <= 0 {
		e.minWindow = DefaultMinWindow
	}

	if e.fastPeriod >= e.slowPeriod {
		return nil, fmt.Errorf("fast period %d must be shorter than slow period %d", e.fastPeriod, e.slowPeriod)
	}
	if e.minWindow < e.slowPeriod+2 {
		return nil, fmt.Errorf("min window %d too small for slow EMA period %d: need at least %d",
			e.minWindow, e.slowPeriod, e.slowPeriod+2)
	}
	if e.minWindow < e.rsiPeriod+1 {
		return nil, fmt.Errorf("min window %d too small for RSI period %d", e.minWindow, e.rsiPeriod)
	}
	return e, nil
}

// MinWindow returns the minimum candle count Compute requires.
func (e *Engine) MinWindow() int {
	return e.minWindow
}

// Compute evaluates the window (ordered oldest to newest) and returns the
// snapshot. The second return is false when the window is shorter than
// the minimum; that is an expected condition, not an error.
func (e *Engine) Compute(mint string, candles []*domain.Candle) (*domain.IndicatorSnapshot, bool) {
	n := len(candles)
	if n < e.minWindow {
		return nil, false
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	// SMA-seeded EMA series; indices before period-1 are undefined.
	emaFast := talib.Ema(closes, e.fastPeriod)
	emaSlow := talib.Ema(closes, e.slowPeriod)

	// minWindow >= slowPeriod+2 guarantees both EMAs are defined at n-2
	// and n-1, so the comparison below is never against a seed gap.
	cross := emaFast[n-2] <= emaSlow[n-2] && emaFast[n-1] > emaSlow[n-1]

	return &domain.IndicatorSnapshot{
		Mint:         mint,
		EMA9:         emaFast[n-1],
		EMA21:        emaSlow[n-1],
		RSI:          wilderRSI(closes, e.rsiPeriod),
		VolSpike:     volumeSpike(volumes),
		BullishCross: cross,
	}, true
}

// wilderRSI returns the final RSI value over closes: average gain/loss
// seeded as the simple average of the first period deltas, then smoothed
// with avg' = (avg*(period-1) + new) / period. avgLoss == 0 yields 100,
// including the flat-series case (talib.Rsi returns 0 there, which would
// wrongly pass an oversold filter).
func wilderRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// volumeSpike returns sum(last 5 volumes) / (5 * avg of the 30 volumes
// before them). A zero baseline average yields 0: "no spike", not an
// error.
func volumeSpike(volumes []float64) float64 {
	n := len(volumes)
	if n < spikeRecent+spikeBaseline {
		return 0
	}

	var recent float64
	for _, v := range volumes[n-spikeRecent:] {
		recent += v
	}

	var baseline float64
	for _, v := range volumes[n-spikeRecent-spikeBaseline : n-spikeRecent] {
		baseline += v
	}
	avg := baseline / spikeBaseline
	if avg == 0 {
		return 0
	}
	return recent / (avg * spikeRecent)
}
