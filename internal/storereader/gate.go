package storereader

import (
	"fmt"
	"sync"
	"time"
)

// OffsetGate tracks the highest applied log offset and lets any number of
// goroutines wait for it to reach a target. The counter is only read under
// the lock.
type OffsetGate struct {
	mu       sync.Mutex
	applied  int64
	notifyCh chan struct{}
}

// NewOffsetGate returns a gate starting at initial. -1 means nothing has been
// applied.
func NewOffsetGate(initial int64) *OffsetGate {
	return &OffsetGate{applied: initial, notifyCh: make(chan struct{})}
}

// Advance records offset as applied and wakes every waiter. Offsets lower
// than the current value are ignored, so the gate never moves backwards.
func (g *OffsetGate) Advance(offset int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if offset <= g.applied {
		return
	}
	g.applied = offset
	close(g.notifyCh)
	g.notifyCh = make(chan struct{})
}

// Applied returns the highest applied offset.
func (g *OffsetGate) Applied() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applied
}

func (g *OffsetGate) snapshot() (int64, <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applied, g.notifyCh
}

// WaitUntil blocks until the applied offset is at least target or timeout
// elapses. A negative target fails immediately with KindInvalidArgument. On
// timeout it returns a *TimeoutError carrying the last applied offset.
//
// Every wake-up rechecks the target, and the deadline is fixed when waiting
// starts, so the total wait never exceeds timeout.
func (g *OffsetGate) WaitUntil(target int64, timeout time.Duration) error {
	if target < 0 {
		return newError(KindInvalidArgument, "wait", fmt.Errorf("can't wait for negative offset %d", target))
	}
	var timer *time.Timer
	for {
		applied, ch := g.snapshot()
		if applied >= target {
			return nil
		}
		if timer == nil {
			if timeout <= 0 {
				return &TimeoutError{Target: target, Applied: applied, Timeout: timeout}
			}
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-ch:
		case <-timer.C:
			if applied = g.Applied(); applied >= target {
				return nil
			}
			return &TimeoutError{Target: target, Applied: applied, Timeout: timeout}
		}
	}
}
