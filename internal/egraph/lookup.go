package egraph

import "github.com/perf-analysis/internal/eclass"

// Find canonicalises node and looks it up in the hash-cons table, without
// inserting it. It returns (call, true, nil) on a hit and (zero, false,
// nil) on a miss; the slot-free fast path falls naturally out of
// canonicalize returning an empty Renaming (spec.md §4.3.2).
func (g *EGraph[N]) Find(node eclass.ENode[N]) (eclass.EClassCall, bool, error) {
	shape, err := g.canonicalize(node)
	if err != nil {
		return eclass.EClassCall{}, false, err
	}
	return g.lookupShape(shape)
}

// lookupShape resolves an already-canonicalised shape against the
// hash-cons table.
func (g *EGraph[N]) lookupShape(shape eclass.ShapeCall[N]) (eclass.EClassCall, bool, error) {
	g.classMu.RLock()
	ref, ok := g.hashcons[shape.Shape.Key()]
	g.classMu.RUnlock()
	if !ok {
		return eclass.EClassCall{}, false, nil
	}
	cd, err := g.classData(ref)
	if err != nil {
		return eclass.EClassCall{}, false, err
	}
	entry, ok := cd.Node(shape.Shape.Key())
	if !ok {
		// hashcons and class state disagree: only possible if the caller
		// is racing a mutation against a read, which the package contract
		// forbids.
		return eclass.EClassCall{}, false, nil
	}
	// entry.Renaming: shape's canonical slots -> class's real slots.
	// shape.Renaming: shape's canonical slots -> caller's slot universe.
	// Composed the right way: class's slots -> caller's universe.
	args := shape.Renaming.Compose(entry.Renaming.Inverse())
	return eclass.EClassCall{Ref: ref, Args: args}, true, nil
}
