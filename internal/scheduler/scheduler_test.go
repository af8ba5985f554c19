package scheduler

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type captureSink struct {
	texts []string
}

func (s *captureSink) Send(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func TestScheduler_RunsJobsAndStops(t *testing.T) {
	var detects atomic.Int64
	jobs := Jobs{
		Detect: func(ctx context.Context) []string {
			detects.Add(1)
			return nil
		},
	}

	intervals := Intervals{
		Gapfill:   -1,
		Detect:    5 * time.Millisecond,
		Notify:    -1,
		Retention: -1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := New(intervals, jobs, nil, nil).Run(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Run returned %v, want context.DeadlineExceeded", err)
	}
	if detects.Load() == 0 {
		t.Error("detect job never ran")
	}
}

func TestScheduler_AlertsOnCycleErrors(t *testing.T) {
	sink := &captureSink{}
	s := New(Intervals{}, Jobs{}, sink, nil)

	s.runCycle(context.Background(), "detect", func(ctx context.Context) []string {
		return []string{"e1", "e2", "e3", "e4", "e5"}
	})

	if len(sink.texts) != 1 {
		t.Fatalf("alerts = %d, want 1 per cycle", len(sink.texts))
	}
	alert := sink.texts[0]
	if !strings.Contains(alert, "5 errors") {
		t.Errorf("alert missing error count: %q", alert)
	}
	if strings.Contains(alert, "e4") {
		t.Errorf("alert should show at most 3 errors: %q", alert)
	}
}

func TestScheduler_ContainsPanics(t *testing.T) {
	sink := &captureSink{}
	s := New(Intervals{}, Jobs{}, sink, nil)

	s.runCycle(context.Background(), "notify", func(ctx context.Context) []string {
		panic("boom")
	})

	if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "panicked") {
		t.Errorf("panic not alerted: %v", sink.texts)
	}
}

func TestScheduler_NilJobIsSkipped(t *testing.T) {
	s := New(Intervals{}, Jobs{}, nil, nil)
	s.runCycle(context.Background(), "gapfill", nil)
}

func TestNewTicker_DisabledNeverFires(t *testing.T) {
	tk := newTicker(-1)
	defer tk.stop()

	select {
	case <-tk.C:
		t.Error("disabled ticker must never fire")
	case <-time.After(10 * time.Millisecond):
	}
}
