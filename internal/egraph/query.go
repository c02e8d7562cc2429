package egraph

import "github.com/perf-analysis/internal/eclass"

// Nodes returns every member node of call's class, each expressed through
// call's own slot arguments (spec.md §4.4): applying call to the class is
// equivalent to first resolving it to canonical form, then renaming every
// stored node by the resolved renaming.
func (g *EGraph[N]) Nodes(call eclass.EClassCall) ([]eclass.ENode[N], error) {
	root, err := g.uf.FindCall(call)
	if err != nil {
		return nil, err
	}
	cd, err := g.classData(root.Ref)
	if err != nil {
		return nil, err
	}
	applied := cd.AppliedNodesWithIdentity()
	out := make([]eclass.ENode[N], len(applied))
	for i, n := range applied {
		out[i] = n.RenameSlots(root.Args)
	}
	return out, nil
}

// Users returns the recorded (owner, shape) pairs referencing ref's class,
// resolved to ref's current canonical root.
func (g *EGraph[N]) Users(ref eclass.Ref) ([]eclass.UserEntry[N], error) {
	root, err := g.uf.Find(ref)
	if err != nil {
		return nil, err
	}
	cd, err := g.classData(root.Ref)
	if err != nil {
		return nil, err
	}
	out := make([]eclass.UserEntry[N], 0, len(cd.Users))
	for _, u := range cd.Users {
		out = append(out, u)
	}
	return out, nil
}

// Root resolves ref to its current canonical root, with no slot work
// (convenience wrapper around the union-find for callers that only need
// identity, not a renaming).
func (g *EGraph[N]) Root(ref eclass.Ref) (eclass.Ref, error) {
	call, err := g.uf.Find(ref)
	if err != nil {
		return eclass.Ref{}, err
	}
	return call.Ref, nil
}
