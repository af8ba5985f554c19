// Package scheduler drives the periodic jobs: gap filling, signal
// detection, signal notification and retention cleanup, each on its own
// ticker inside one select loop. Cycles of different jobs may overlap
// in wall-clock time but each job's cycles run sequentially.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Default tick intervals.
const (
	DefaultGapfillInterval   = 60 * time.Second
	DefaultDetectInterval    = 60 * time.Second
	DefaultNotifyInterval    = 20 * time.Second
	DefaultRetentionInterval = 1 * time.Hour
)

// Intervals configures the per-job tick spacing. Zero values fall back
// to defaults; negative values disable the job.
type Intervals struct {
	Gapfill   time.Duration
	Detect    time.Duration
	Notify    time.Duration
	Retention time.Duration
}

// Jobs are the cycle entry points the scheduler drives. Each returns
// the cycle's collected error strings; an empty slice means a clean
// cycle.
type Jobs struct {
	Gapfill   func(ctx context.Context) []string
	Detect    func(ctx context.Context) []string
	Notify    func(ctx context.Context) []string
	Retention func(ctx context.Context) []string
}

// AlertSink receives operational alerts when a whole cycle fails.
type AlertSink interface {
	Send(ctx context.Context, text string) error
}

// Scheduler runs the job loop.
type Scheduler struct {
	intervals Intervals
	jobs      Jobs
	alerts    AlertSink
	logger    *log.Logger
}

// New creates a scheduler. alerts may be nil.
func New(intervals Intervals, jobs Jobs, alerts AlertSink, logger *log.Logger) *Scheduler {
	if intervals.Gapfill == 0 {
		intervals.Gapfill = DefaultGapfillInterval
	}
	if intervals.Detect == 0 {
		intervals.Detect = DefaultDetectInterval
	}
	if intervals.Notify == 0 {
		intervals.Notify = DefaultNotifyInterval
	}
	if intervals.Retention == 0 {
		intervals.Retention = DefaultRetentionInterval
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}
	return &Scheduler{
		intervals: intervals,
		jobs:      jobs,
		alerts:    alerts,
		logger:    logger,
	}
}

// Run blocks until ctx is done. A failing or panicking cycle is logged,
// reported through the alert sink and the loop keeps ticking.
func (s *Scheduler) Run(ctx context.Context) error {
	gapfill := newTicker(s.intervals.Gapfill)
	detect := newTicker(s.intervals.Detect)
	notify := newTicker(s.intervals.Notify)
	retention := newTicker(s.intervals.Retention)
	defer gapfill.stop()
	defer detect.stop()
	defer notify.stop()
	defer retention.stop()

	s.logger.Printf("started: gapfill=%v detect=%v notify=%v retention=%v",
		s.intervals.Gapfill, s.intervals.Detect, s.intervals.Notify, s.intervals.Retention)

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("stopping")
			return ctx.Err()
		case <-gapfill.C:
			s.runCycle(ctx, "gapfill", s.jobs.Gapfill)
		case <-detect.C:
			s.runCycle(ctx, "detect", s.jobs.Detect)
		case <-notify.C:
			s.runCycle(ctx, "notify", s.jobs.Notify)
		case <-retention.C:
			s.runCycle(ctx, "retention", s.jobs.Retention)
		}
	}
}

// runCycle executes one job cycle with panic containment.
func (s *Scheduler) runCycle(ctx context.Context, name string, job func(context.Context) []string) {
	if job == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("%s cycle panicked: %v", name, r)
			s.alert(ctx, fmt.Sprintf("%s cycle panicked: %v", name, r))
		}
	}()

	errs := job(ctx)
	if len(errs) == 0 {
		return
	}

	s.logger.Printf("%s cycle finished with %d errors", name, len(errs))
	// One alert per cycle, first few errors only.
	shown := errs
	if len(shown) > 3 {
		shown = shown[:3]
	}
	s.alert(ctx, fmt.Sprintf("%s cycle: %d errors\n%s", name, len(errs), strings.Join(shown, "\n")))
}

func (s *Scheduler) alert(ctx context.Context, text string) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.Send(ctx, text); err != nil {
		s.logger.Printf("alert delivery failed: %v", err)
	}
}

// ticker wraps time.Ticker so a disabled job gets a nil channel that
// never fires.
type ticker struct {
	C <-chan time.Time
	t *time.Ticker
}

func newTicker(d time.Duration) ticker {
	if d < 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{C: t.C, t: t}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
