package parallel

import (
	"context"
	"sync/atomic"
	"time"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// CancellationToken is a cooperative cancellation signal threaded through a
// Strategy run (spec.md §5): every long-running operation checks it between
// dispatched units of work rather than being preempted mid-flight.
type CancellationToken struct {
	ctx    context.Context
	cancel context.CancelFunc
	fired  atomic.Bool
	reason atomic.Value // string
}

// NewCancellationToken returns a token with no deadline; call Cancel to fire
// it manually.
func NewCancellationToken() *CancellationToken {
	ctx, cancel := context.WithCancel(context.Background())
	return &CancellationToken{ctx: ctx, cancel: cancel}
}

// WithTimeout returns a token that fires on its own once d elapses, plus a
// release func the caller must defer to free the underlying timer.
func WithTimeout(d time.Duration) (*CancellationToken, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t := &CancellationToken{ctx: ctx, cancel: cancel}
	go func() {
		<-ctx.Done()
		t.fired.Store(true)
		if _, ok := t.reason.Load().(string); !ok {
			t.reason.Store("deadline exceeded")
		}
	}()
	return t, cancel
}

// Cancel fires the token with the given human-readable reason.
func (t *CancellationToken) Cancel(reason string) {
	if t.fired.CompareAndSwap(false, true) {
		t.reason.Store(reason)
	}
	t.cancel()
}

// Canceled reports whether the token has fired.
func (t *CancellationToken) Canceled() bool {
	return t.fired.Load() || t.ctx.Err() != nil
}

// Done returns a channel closed once the token fires.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Err returns the OperationCanceled error for this token, or nil if it has
// not fired.
func (t *CancellationToken) Err() error {
	if !t.Canceled() {
		return nil
	}
	reason, _ := t.reason.Load().(string)
	if reason == "" {
		reason = "canceled"
	}
	return apperrors.OperationCanceled(reason)
}
