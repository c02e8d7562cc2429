package saturation

import (
	"github.com/perf-analysis/internal/analysis"
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/slot"
	apperrors "github.com/perf-analysis/pkg/errors"
)

// nodeCountAnalysis costs a class at 1 plus the cost of its cheapest known
// args, independent of N — term-language-specific extraction cost
// functions are an external collaborator's concern (spec.md §1); this is
// only the generic fallback so Rebase is runnable without one supplied.
type nodeCountAnalysis[N eclass.NodeType] struct{}

func (nodeCountAnalysis[N]) Make(_ eclass.ENode[N], args []int) int {
	total := 1
	for _, a := range args {
		total += a
	}
	return total
}

func (nodeCountAnalysis[N]) Join(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (nodeCountAnalysis[N]) Rename(a int, _ slot.SlotMap) int { return a }

func identityCall(ref eclass.Ref) eclass.EClassCall {
	return eclass.EClassCall{Ref: ref, Args: slot.Identity(slot.NewSlotSet())}
}

// SmallestTermExtractor is the default Extractor[N]: at every class it
// keeps the member node with the fewest total AST nodes, found via a
// bottom-up fixpoint over an analysis.Store seeded by nodeCountAnalysis.
// It is a fallback for callers that have no domain-specific cost function
// of their own — a real one would weight nodes by, e.g., estimated
// runtime cost rather than raw size.
type SmallestTermExtractor[N eclass.NodeType] struct{}

// Extract returns the cheapest node at root's class and its args, exactly
// as recorded against the class that owns them — a caller wanting the
// full extracted tree walks Extract recursively over those args.
func (SmallestTermExtractor[N]) Extract(g *egraph.EGraph[N], root eclass.EClassCall) (eclass.ENode[N], []eclass.EClassCall, error) {
	store := analysis.NewStore[N, int](nodeCountAnalysis[N]{})
	best := make(map[eclass.Ref]eclass.ENode[N])

	changed := true
	for changed {
		changed = false
		seen := make(map[eclass.Ref]bool)
		for _, ref := range g.Classes() {
			canon, err := g.Root(ref)
			if err != nil {
				return eclass.ENode[N]{}, nil, err
			}
			if seen[canon] {
				continue
			}
			seen[canon] = true

			nodes, err := g.Nodes(identityCall(canon))
			if err != nil {
				return eclass.ENode[N]{}, nil, err
			}
			for _, n := range nodes {
				argCosts := make([]int, len(n.Args))
				ok := true
				for i, a := range n.Args {
					ar, err := g.Root(a.Ref)
					if err != nil {
						return eclass.ENode[N]{}, nil, err
					}
					v, have := store.Get(ar)
					if !have {
						ok = false
						break
					}
					argCosts[i] = v
				}
				if !ok {
					continue
				}
				cost := (nodeCountAnalysis[N]{}).Make(n, argCosts)
				if cur, have := store.Get(canon); !have || cost < cur {
					store.Set(canon, cost)
					best[canon] = n
					changed = true
				}
			}
		}
	}

	rootRef, err := g.Root(root.Ref)
	if err != nil {
		return eclass.ENode[N]{}, nil, err
	}
	node, ok := best[rootRef]
	if !ok {
		return eclass.ENode[N]{}, nil, apperrors.InvariantViolation("no extractable term found for root class")
	}
	return node, node.Args, nil
}
