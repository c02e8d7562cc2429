package egraph

import (
	"context"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
	"github.com/perf-analysis/pkg/parallel"
)

// TryAddMany inserts nodes, returning one AddResult per input in the same
// order (spec.md §4.3.3). Canonicalisation of the whole batch runs through
// pm (concurrently, if pm is a parallel.Concurrent) since it only reads
// existing graph state; the hash-cons install that follows is always
// sequential, one node at a time, because each install can allocate a
// class and must see every earlier install in the same batch.
//
// pm may be nil, in which case a parallel.Sequential is used.
func (g *EGraph[N]) TryAddMany(ctx context.Context, nodes []eclass.ENode[N], pm parallel.Map) ([]eclass.AddResult, error) {
	if pm == nil {
		pm = defaultParallelMap()
	}

	shapes := make([]eclass.ShapeCall[N], len(nodes))
	err := pm.Range(ctx, len(nodes), func(ctx context.Context, i int) error {
		s, err := g.canonicalize(nodes[i])
		if err != nil {
			return err
		}
		shapes[i] = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]eclass.AddResult, len(nodes))
	for i, shape := range shapes {
		res, err := g.installShape(shape)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// TryAdd is the single-node convenience wrapper around TryAddMany.
func (g *EGraph[N]) TryAdd(ctx context.Context, node eclass.ENode[N]) (eclass.AddResult, error) {
	results, err := g.TryAddMany(ctx, []eclass.ENode[N]{node}, nil)
	if err != nil {
		return eclass.AddResult{}, err
	}
	return results[0], nil
}

// installShape hash-cons-installs an already-canonicalised shape,
// allocating a fresh class on a miss. It is never safe to call concurrently
// with itself or with any other mutating operation.
func (g *EGraph[N]) installShape(shape eclass.ShapeCall[N]) (eclass.AddResult, error) {
	if call, ok, err := g.lookupShape(shape); err != nil {
		return eclass.AddResult{}, err
	} else if ok {
		return eclass.AddResult{Kind: eclass.AlreadyThere, Call: call}, nil
	}

	ref := g.arena.Alloc()
	n := shape.Renaming.Len()
	fresh := g.gen.FreshN(n)

	sigmaB := slot.NewBuilder()
	for i := 0; i < n; i++ {
		sigmaB.Set(slot.CanonicalSlot(i), fresh[i])
	}
	sigma := sigmaB.Build()
	classSlots := slot.NewSlotSet(fresh...)

	cd := eclass.New[N](classSlots)
	g.classMu.Lock()
	g.classes[ref] = cd
	g.hashcons[shape.Shape.Key()] = ref
	g.classMu.Unlock()
	g.uf.MakeSet(ref, classSlots)

	cd.AddNode(shape.Shape, sigma)
	for _, a := range shape.Shape.Args {
		childCD, err := g.classData(a.Ref)
		if err != nil {
			return eclass.AddResult{}, err
		}
		childCD.AddUser(ref, shape.Shape)
	}

	if err := g.propagatePermutations(ref, shape.Shape, sigma); err != nil {
		return eclass.AddResult{}, err
	}

	args := shape.Renaming.Compose(sigma.Inverse())
	return eclass.AddResult{Kind: eclass.Added, Call: eclass.EClassCall{Ref: ref, Args: args}}, nil
}
