// Package signal implements the two-stage cascade that turns indicator
// output into delivered notifications: detection persists candidate
// signals, notification filters and delivers them exactly once.
package signal

import (
	"context"
	"fmt"
	"log"
	"time"

	"dexpulse/internal/domain"
	"dexpulse/internal/fetch"
	"dexpulse/internal/indicator"
	"dexpulse/internal/observability"
	"dexpulse/internal/storage"
)

// DetectorConfig holds Stage A thresholds.
type DetectorConfig struct {
	MinPoolAgeSeconds int64   // ignore pools younger than this
	VolSpikeThreshold float64 // minimum volume spike ratio
	RSIOversold       float64 // RSI must be strictly below this
	WindowSize        int     // candles fetched per token
}

// DefaultDetectorConfig returns the stock Stage A thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinPoolAgeSeconds: 30 * 60,
		VolSpikeThreshold: 3.0,
		RSIOversold:       35,
		WindowSize:        indicator.DefaultMinWindow,
	}
}

// Detector is Stage A: it sweeps tracked pools, evaluates indicator
// windows and persists signals with notified=false. It reads only
// candles and pool age; no external pricing calls happen here.
type Detector struct {
	pools   storage.PoolStore
	candles storage.CandleStore
	signals storage.SignalStore
	engine  *indicator.Engine
	cfg     DetectorConfig
	clock   fetch.Clock
	logger  *log.Logger
	metrics *observability.Metrics
}

// DetectorOptions configures a Detector.
type DetectorOptions struct {
	Pools   storage.PoolStore
	Candles storage.CandleStore
	Signals storage.SignalStore
	Engine  *indicator.Engine
	Config  DetectorConfig
	Clock   fetch.Clock
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewDetector creates a Stage A detector.
func NewDetector(opts DetectorOptions) *Detector {
	cfg := opts.Config
	if cfg.WindowSize < opts.Engine.MinWindow() {
		cfg.WindowSize = opts.Engine.MinWindow()
	}
	clock := opts.Clock
	if clock == nil {
		clock = fetch.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[detect] ", log.LstdFlags)
	}
	return &Detector{
		pools:   opts.Pools,
		candles: opts.Candles,
		signals: opts.Signals,
		engine:  opts.Engine,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// RunCycle sweeps all tracked pools once. Per-token errors are collected
// and logged; they never abort the sweep.
func (d *Detector) RunCycle(ctx context.Context) (int, []string) {
	start := time.Now()
	var created int
	var errs []string

	pools, err := d.pools.List(ctx)
	if err != nil {
		return 0, []string{fmt.Sprintf("list pools: %v", err)}
	}

	now := d.clock.Now().Unix()
	for _, p := range pools {
		if p.Age(now) < d.cfg.MinPoolAgeSeconds {
			continue
		}
		ok, err := d.evaluate(ctx, p.Mint, now)
		if err != nil {
			errs = append(errs, fmt.Sprintf("detect %s: %v", p.Mint, err))
			continue
		}
		if ok {
			created++
		}
	}

	if d.metrics != nil {
		d.metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	}
	if created > 0 || len(errs) > 0 {
		d.logger.Printf("sweep done: signals=%d errors=%d", created, len(errs))
	}
	return created, errs
}

// evaluate runs the indicator engine on one token and persists a signal
// when all thresholds hold.
func (d *Detector) evaluate(ctx context.Context, mint string, now int64) (bool, error) {
	window, err := d.candles.Window(ctx, mint, d.cfg.WindowSize)
	if err != nil {
		return false, fmt.Errorf("load window: %w", err)
	}

	snap, ok := d.engine.Compute(mint, window)
	if !ok {
		// Window still too short; the gap filler will grow it.
		return false, nil
	}

	if !snap.BullishCross || snap.VolSpike < d.cfg.VolSpikeThreshold || snap.RSI >= d.cfg.RSIOversold {
		return false, nil
	}

	id, err := d.signals.Insert(ctx, &domain.Signal{
		Mint:     mint,
		SignalTs: now,
		EmaCross: snap.BullishCross,
		VolSpike: snap.VolSpike,
		RSI:      snap.RSI,
	})
	if err != nil {
		return false, fmt.Errorf("insert signal: %w", err)
	}

	if d.metrics != nil {
		d.metrics.SignalsDetected.Inc()
	}
	d.logger.Printf("signal #%d %s: spike=%.2f rsi=%.1f", id, mint, snap.VolSpike, snap.RSI)
	return true, nil
}
