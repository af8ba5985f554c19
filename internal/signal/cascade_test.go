package signal

import (
	"context"
	"testing"
	"time"

	"dexpulse/internal/domain"
	"dexpulse/internal/storage/memory"
)

// TestCascade_DetectThenNotifyOnce runs both stages against shared
// stores: the detector turns the seeded window into exactly one signal
// and the notifier delivers it exactly once across repeated cycles.
func TestCascade_DetectThenNotifyOnce(t *testing.T) {
	pools := memory.NewPoolStore()
	candles := memory.NewCandleStore()
	signals := memory.NewSignalStore()
	notifications := memory.NewNotificationStore()
	ctx := context.Background()

	pools.Upsert(ctx, &domain.Pool{
		Mint:        "M",
		FirstSeenTs: 100,
		LiqUSD:      ptr(20_000.0),
		FdvUSD:      ptr(1_000_000.0),
	})
	seedCrossSeries(t, candles, "M")

	detector := newTestDetector(t, pools, candles, signals, 100_000)

	created, errs := detector.RunCycle(ctx)
	if created != 1 || len(errs) != 0 {
		t.Fatalf("stage A: created=%d errs=%v, want exactly one signal", created, errs)
	}

	sink := &recordingSink{}
	notifier := NewNotifier(NotifierOptions{
		Pools:         pools,
		Signals:       signals,
		Notifications: notifications,
		Quotes:        &fakeQuote{impact: 0.01},
		Sink:          sink,
		Config:        DefaultNotifierConfig(),
		Clock:         fixedClock{now: time.Unix(100_060, 0)},
	})

	delivered, errs := notifier.RunCycle(ctx)
	if delivered != 1 || len(errs) != 0 {
		t.Fatalf("stage B: delivered=%d errs=%v", delivered, errs)
	}

	// Further cycles find nothing to do.
	for i := 0; i < 3; i++ {
		delivered, errs = notifier.RunCycle(ctx)
		if delivered != 0 || len(errs) != 0 {
			t.Fatalf("cycle %d redelivered: delivered=%d errs=%v", i, delivered, errs)
		}
	}
	if len(sink.sent) != 1 {
		t.Errorf("messages sent = %d, want exactly 1", len(sink.sent))
	}
}
