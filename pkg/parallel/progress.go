package parallel

import (
	"context"
	"sync/atomic"
	"time"
)

// ProgressTracker tracks progress of a long-running parallel operation and
// periodically reports it via callback. The saturation driver (spec.md
// §4.6) wires one around a Strategy so a caller watching a long-running
// saturation run sees iteration counts as they happen rather than only the
// final result.
type ProgressTracker struct {
	total     int64
	completed atomic.Int64
	callback  func(completed, total int64)
	interval  time.Duration
	stopCh    chan struct{}
	stopped   atomic.Bool
}

// NewProgressTracker creates a new progress tracker. total may be 0 when the
// final count isn't known ahead of time (e.g. saturation iterations run
// until a fixpoint); callback still receives the running completed count.
func NewProgressTracker(total int64, callback func(completed, total int64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ProgressTracker{
		total:    total,
		callback: callback,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins progress tracking in a background goroutine.
func (pt *ProgressTracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pt.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-pt.stopCh:
				return
			case <-ticker.C:
				if pt.callback != nil {
					pt.callback(pt.completed.Load(), pt.total)
				}
			}
		}
	}()
}

// Increment increments the completed count by one.
func (pt *ProgressTracker) Increment() {
	pt.completed.Add(1)
}

// Add adds n to the completed count.
func (pt *ProgressTracker) Add(n int64) {
	pt.completed.Add(n)
}

// Stop stops progress tracking. Safe to call more than once.
func (pt *ProgressTracker) Stop() {
	if pt.stopped.CompareAndSwap(false, true) {
		close(pt.stopCh)
	}
}

// Completed returns the current completed count.
func (pt *ProgressTracker) Completed() int64 {
	return pt.completed.Load()
}
