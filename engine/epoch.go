package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultEpochInterval is the period of the global tick source.
const DefaultEpochInterval = time.Millisecond

// EpochTicker is a process-wide monotonically increasing tick source.
// Execution contexts arm deadlines a number of ticks in the future; when the
// counter passes a deadline, the armed call's context is cancelled, which
// interrupts the guest at its next yield point.
type EpochTicker struct {
	counter  atomic.Uint64
	interval time.Duration

	mu      sync.Mutex
	armed   map[*Deadline]struct{}
	stop    chan struct{}
	running bool
}

// Deadline is one armed interruption point. Reset re-arms it for a fresh
// tick allowance; Disarm detaches it without cancelling the call.
type Deadline struct {
	ticker *EpochTicker
	cancel context.CancelFunc
	tick   uint64
}

var (
	epoch     *EpochTicker
	epochOnce sync.Once
)

// Epoch returns the global epoch ticker shared by all instances.
func Epoch() *EpochTicker {
	epochOnce.Do(func() {
		epoch = &EpochTicker{
			interval: DefaultEpochInterval,
			armed:    make(map[*Deadline]struct{}),
		}
	})
	return epoch
}

// Start launches the background ticking task. Safe to call repeatedly.
func (t *EpochTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	go t.run(t.stop)
}

// Stop halts the ticking task. Armed deadlines stop advancing until the
// next Start.
func (t *EpochTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

func (t *EpochTicker) run(stop chan struct{}) {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			t.advance()
		}
	}
}

func (t *EpochTicker) advance() {
	now := t.counter.Add(1)

	t.mu.Lock()
	var expired []*Deadline
	for d := range t.armed {
		if d.tick <= now {
			expired = append(expired, d)
			delete(t.armed, d)
		}
	}
	t.mu.Unlock()

	for _, d := range expired {
		d.cancel()
	}
}

// Now returns the current tick count.
func (t *EpochTicker) Now() uint64 {
	return t.counter.Load()
}

// Arm derives a cancellable context with a deadline ticks ticks in the
// future. The caller must Disarm the returned deadline when the guarded
// call returns.
func (t *EpochTicker) Arm(ctx context.Context, ticks uint64) (context.Context, *Deadline) {
	ctx, cancel := context.WithCancel(ctx)
	d := &Deadline{
		ticker: t,
		cancel: cancel,
		tick:   t.counter.Load() + ticks,
	}
	t.mu.Lock()
	t.armed[d] = struct{}{}
	t.mu.Unlock()
	return ctx, d
}

// Reset re-arms the deadline ticks ticks past the current counter.
func (d *Deadline) Reset(ticks uint64) {
	t := d.ticker
	t.mu.Lock()
	d.tick = t.counter.Load() + ticks
	t.armed[d] = struct{}{}
	t.mu.Unlock()
}

// Disarm detaches the deadline and releases its context resources without
// interrupting the call.
func (d *Deadline) Disarm() {
	t := d.ticker
	t.mu.Lock()
	delete(t.armed, d)
	t.mu.Unlock()
	d.cancel()
}
