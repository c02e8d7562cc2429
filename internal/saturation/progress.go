package saturation

import (
	"context"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/pkg/parallel"
)

// WithProgress wraps s so every Apply call increments tracker by one. Compose
// it inside UntilFixpoint (not outside): UntilFixpoint calls a single Apply
// repeatedly until nothing changes, so wrapping the per-round strategy is
// what lets tracker's completed count advance once per round rather than
// once for the whole fixpoint run.
func WithProgress[N eclass.NodeType, D any](s Strategy[N, D], tracker *parallel.ProgressTracker) Strategy[N, D] {
	return Func[N, D]{
		InitialFn: s.InitialData,
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error) {
			next, nd, changed, err := s.Apply(ctx, g, data, pm)
			if tracker != nil {
				tracker.Increment()
			}
			return next, nd, changed, err
		},
	}
}
