package engine

import (
	"context"
	"testing"
	"time"
)

func newTestTicker(interval time.Duration) *EpochTicker {
	return &EpochTicker{
		interval: interval,
		armed:    make(map[*Deadline]struct{}),
	}
}

func TestEpochAdvances(t *testing.T) {
	ticker := newTestTicker(time.Millisecond)
	ticker.Start()
	defer ticker.Stop()

	start := ticker.Now()
	deadline := time.Now().Add(time.Second)
	for ticker.Now() == start {
		if time.Now().After(deadline) {
			t.Fatal("counter never advanced")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDeadlineCancelsContext(t *testing.T) {
	ticker := newTestTicker(time.Millisecond)
	ticker.Start()
	defer ticker.Stop()

	ctx, d := ticker.Arm(context.Background(), 3)
	defer d.Disarm()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("armed context never cancelled")
	}
}

func TestDisarmKeepsContextAliveUntilRelease(t *testing.T) {
	ticker := newTestTicker(time.Millisecond)
	ticker.Start()
	defer ticker.Stop()

	ctx, d := ticker.Arm(context.Background(), 2)
	d.Disarm()

	// Disarm cancels the derived context to release resources, but the
	// deadline no longer fires through the ticker.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("disarm did not release the context")
	}
	if ctx.Err() != context.Canceled {
		t.Errorf("Err = %v", ctx.Err())
	}
}

func TestDeadlineReset(t *testing.T) {
	ticker := newTestTicker(5 * time.Millisecond)
	ticker.Start()
	defer ticker.Stop()

	ctx, d := ticker.Arm(context.Background(), 4)
	defer d.Disarm()

	// Keep re-arming past the original expiry; the context must stay live.
	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		d.Reset(4)
		if ctx.Err() != nil {
			t.Fatalf("context cancelled despite reset at iteration %d", i)
		}
	}

	// Stop resetting and let it fire.
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context never cancelled after resets stopped")
	}
}

func TestStopHaltsTicking(t *testing.T) {
	ticker := newTestTicker(time.Millisecond)
	ticker.Start()
	time.Sleep(10 * time.Millisecond)
	ticker.Stop()

	now := ticker.Now()
	time.Sleep(20 * time.Millisecond)
	if got := ticker.Now(); got != now {
		t.Errorf("counter advanced from %d to %d after Stop", now, got)
	}
}
