// Package saturation drives an e-graph toward a fixpoint under a set of
// rewrite rules (spec.md §4.6): a Strategy is a pure step function —
// `apply(egraph, data, parallelize) → (egraph', data')` — and saturation
// itself is just repeated application, composed from small combinators.
package saturation

import (
	"context"
	"sync"
	"time"

	"github.com/perf-analysis/internal/command"
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/parallel"
)

// Strategy is one saturation step. Apply returns the graph to continue
// from (almost always g itself, mutated in place; Rebase is the exception,
// returning a freshly built graph), the carried data to pass to the next
// call, and whether anything changed — a false changed with untilFixpoint
// ends the loop.
type Strategy[N eclass.NodeType, D any] interface {
	InitialData() D
	Apply(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error)
}

// Func adapts two plain functions into a Strategy, the way http.HandlerFunc
// adapts a function into a http.Handler.
type Func[N eclass.NodeType, D any] struct {
	InitialFn func() D
	ApplyFn   func(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error)
}

func (f Func[N, D]) InitialData() D { return f.InitialFn() }

func (f Func[N, D]) Apply(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error) {
	return f.ApplyFn(ctx, g, data, pm)
}

// Run drives s to a fixed number of steps, purely as a convenience for
// callers that don't want to build untilFixpoint themselves; it stops
// early the first time Apply reports no change.
func Run[N eclass.NodeType, D any](ctx context.Context, s Strategy[N, D], g *egraph.EGraph[N], pm parallel.Map, maxSteps int) (*egraph.EGraph[N], D, error) {
	data := s.InitialData()
	cur := g
	for i := 0; i < maxSteps; i++ {
		next, nd, changed, err := s.Apply(ctx, cur, data, pm)
		if err != nil {
			return nil, data, err
		}
		cur, data = next, nd
		if !changed {
			break
		}
	}
	return cur, data, nil
}

// ThenApply sequences a then b, threading the (same-typed) carried data
// from a's result into b.
func ThenApply[N eclass.NodeType, D any](a, b Strategy[N, D]) Strategy[N, D] {
	return Func[N, D]{
		InitialFn: a.InitialData,
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error) {
			g1, d1, c1, err := a.Apply(ctx, g, data, pm)
			if err != nil {
				return nil, d1, false, err
			}
			g2, d2, c2, err := b.Apply(ctx, g1, d1, pm)
			if err != nil {
				return nil, d2, false, err
			}
			return g2, d2, c1 || c2, nil
		},
	}
}

// UntilFixpoint repeatedly applies s in one call until it reports no
// change, returning the final graph/data and whether any round changed
// anything.
func UntilFixpoint[N eclass.NodeType, D any](s Strategy[N, D]) Strategy[N, D] {
	return Func[N, D]{
		InitialFn: s.InitialData,
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error) {
			cur, cd := g, data
			everChanged := false
			for {
				next, nd, changed, err := s.Apply(ctx, cur, cd, pm)
				if err != nil {
					return nil, nd, false, err
				}
				cur, cd = next, nd
				if !changed {
					return cur, cd, everChanged, nil
				}
				everChanged = true
			}
		},
	}
}

// iterCount wraps D with a private iteration counter.
type iterCount[D any] struct {
	inner D
	count int
}

// WithIterationLimit wraps s so that once it has reported a non-`None`
// (changed) result n times, it returns no-change forever after, regardless
// of what s itself would have done.
func WithIterationLimit[N eclass.NodeType, D any](s Strategy[N, D], n int) Strategy[N, iterCount[D]] {
	return Func[N, iterCount[D]]{
		InitialFn: func() iterCount[D] { return iterCount[D]{inner: s.InitialData()} },
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data iterCount[D], pm parallel.Map) (*egraph.EGraph[N], iterCount[D], bool, error) {
			if data.count >= n {
				return g, data, false, nil
			}
			next, nd, changed, err := s.Apply(ctx, g, data.inner, pm)
			if err != nil {
				return nil, data, false, err
			}
			out := iterCount[D]{inner: nd, count: data.count}
			if changed {
				out.count++
			}
			return next, out, changed, nil
		},
	}
}

// timed wraps D with the cancellation token a WithTimeout-wrapped strategy
// installed, so repeated calls keep observing the same deadline.
type timed[D any] struct {
	inner D
	token *parallel.CancellationToken
}

// WithTimeout wraps s with a CancellationToken that fires after d; once
// fired, every subsequent Apply call returns no-change without invoking s,
// and a call whose run of s the token cuts short also reports no-change
// instead of the cancellation error, surfacing a Duration.Zero budget to
// callers via the fired token itself (token.Err() explains why).
func WithTimeout[N eclass.NodeType, D any](s Strategy[N, D], d time.Duration) Strategy[N, timed[D]] {
	return Func[N, timed[D]]{
		InitialFn: func() timed[D] {
			tok, _ := parallel.WithTimeout(d)
			return timed[D]{inner: s.InitialData(), token: tok}
		},
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data timed[D], pm parallel.Map) (*egraph.EGraph[N], timed[D], bool, error) {
			if data.token.Canceled() {
				return g, data, false, nil
			}
			next, nd, changed, err := s.Apply(ctx, g, data.inner, pm.Cancelable(data.token))
			if err != nil {
				if data.token.Canceled() && apperrors.IsOperationCanceled(err) {
					return g, data, false, nil
				}
				return nil, data, false, err
			}
			return next, timed[D]{inner: nd, token: data.token}, changed, nil
		},
	}
}

// DropData wraps s so its carried data is invisible to the caller: s's
// real data is kept in a mutex-guarded closure slot instead of being
// threaded through the returned type. Only safe when the returned Strategy
// is driven by a single caller at a time, same as every other mutating
// e-graph operation in this module.
func DropData[N eclass.NodeType, D any](s Strategy[N, D]) Strategy[N, struct{}] {
	var mu sync.Mutex
	state := s.InitialData()
	return Func[N, struct{}]{
		InitialFn: func() struct{} { return struct{}{} },
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], _ struct{}, pm parallel.Map) (*egraph.EGraph[N], struct{}, bool, error) {
			mu.Lock()
			cur := state
			mu.Unlock()

			next, nd, changed, err := s.Apply(ctx, g, cur, pm)
			if err != nil {
				return nil, struct{}{}, false, err
			}

			mu.Lock()
			state = nd
			mu.Unlock()
			return next, struct{}{}, changed, nil
		},
	}
}

// applyCommand is the shared tail end of every rule-driven strategy: run
// cmd (normally the result of command.Optimize over a batch of matches)
// against g and report whether it changed anything.
func applyCommand[N eclass.NodeType](ctx context.Context, g *egraph.EGraph[N], cmd command.Command[N], pm parallel.Map) (bool, error) {
	changed, _, err := cmd.Apply(ctx, g, command.ReificationMap{}, pm)
	if err != nil {
		return false, err
	}
	return changed, nil
}
