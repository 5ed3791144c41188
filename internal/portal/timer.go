package portal

import (
	"sync"
	"time"
)

// Timer counts a test session down from a server-issued start timestamp.
// Remaining time is recomputed from the wall clock on every tick rather
// than accumulated, so it self-corrects after any suspension instead of
// drifting. The expiry callback fires exactly once, at the first tick that
// observes zero remaining.
type Timer struct {
	origin   time.Time
	duration time.Duration
	interval time.Duration
	clock    func() time.Time
	onExpire func()
	inert    bool

	stop      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	fireOnce  sync.Once
	done      chan struct{}
}

// NewTimer builds a timer from a millisecond start timestamp. A zero start
// timestamp or an already-finalized session yields an inert timer: Start
// does nothing and the callback never fires.
func NewTimer(startTimestampMs int64, duration time.Duration, finalized bool, onExpire func()) *Timer {
	return NewTimerWithClock(startTimestampMs, duration, finalized, onExpire, time.Now, time.Second)
}

// NewTimerWithClock is test-only: it lets tests inject a clock and shrink
// the tick interval.
func NewTimerWithClock(startTimestampMs int64, duration time.Duration, finalized bool, onExpire func(), clock func() time.Time, interval time.Duration) *Timer {
	return &Timer{
		origin:   time.UnixMilli(startTimestampMs),
		duration: duration,
		interval: interval,
		clock:    clock,
		onExpire: onExpire,
		inert:    startTimestampMs == 0 || finalized,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins ticking. Calling Start on an inert timer is a no-op, and
// repeat calls are ignored.
func (t *Timer) Start() {
	t.startOnce.Do(func() {
		if t.inert {
			close(t.done)
			return
		}
		go t.run()
	})
}

func (t *Timer) run() {
	defer close(t.done)
	if t.expireIfDue() {
		return
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if t.expireIfDue() {
				return
			}
		case <-t.stop:
			return
		}
	}
}

func (t *Timer) expireIfDue() bool {
	if t.Remaining() > 0 {
		return false
	}
	t.fireOnce.Do(func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
	return true
}

// Remaining reports the time left, floored at zero. Inert timers report
// zero.
func (t *Timer) Remaining() time.Duration {
	if t.inert {
		return 0
	}
	remaining := t.duration - t.clock().Sub(t.origin)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stop cancels ticking. It is safe to call multiple times and after the
// timer already completed; a stopped timer never fires the callback.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		// Suppress a not-yet-fired callback before signaling the loop, so
		// no stray expiry can land after cancellation.
		t.fireOnce.Do(func() {})
		close(t.stop)
	})
}
