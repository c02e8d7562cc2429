package egraph

import (
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
)

// canonicalize computes node's shape: the lexicographically-minimal
// alpha-equivalent representative across every symmetry of its referenced
// classes, plus the renaming from the shape's canonical slots back to
// node's own (spec.md §4.3.1).
//
// Two passes of renaming are involved. Bound (Definitions) slots are purely
// internal to a node — nothing outside it ever refers to them — so they're
// given a deterministic canonical name straight from their Definitions
// position, with no symmetry to consider. Free slots (the ones in
// node.SlotSet()) are the ones a class's Permutations group can act on, so
// when the node's free slot set is non-empty this enumerates every
// compatible combination of each arg's own class symmetry, numbers each
// combination's free slots by first-occurrence traversal order, and keeps
// whichever combination's real-slot traversal order sorts lexicographically
// smallest (ties broken by comparing the fully-rendered shape key, so the
// choice is deterministic regardless of map iteration order upstream).
func (g *EGraph[N]) canonicalize(node eclass.ENode[N]) (eclass.ShapeCall[N], error) {
	canonicalArgs := make([]eclass.EClassCall, len(node.Args))
	for i, a := range node.Args {
		ca, err := g.uf.FindCall(a)
		if err != nil {
			return eclass.ShapeCall[N]{}, err
		}
		canonicalArgs[i] = ca
	}
	base := eclass.ENode[N]{
		NodeType:    node.NodeType,
		Definitions: node.Definitions,
		Uses:        node.Uses,
		Args:        canonicalArgs,
	}

	boundRenaming := canonicalBoundRenaming(base.Definitions)

	if base.SlotSet().IsEmpty() {
		shape := base.RenameSlots(boundRenaming)
		return eclass.ShapeCall[N]{Shape: shape, Renaming: slot.Empty()}, nil
	}

	variants, err := g.expandVariants(base)
	if err != nil {
		return eclass.ShapeCall[N]{}, err
	}

	var (
		bestOrder []slot.Slot
		bestShape eclass.ENode[N]
		haveBest  bool
	)
	for _, v := range variants {
		order := freeSlotTraversalOrder(v)
		freeRenaming := assignCanonicalNumbering(order)
		full := combineRenamings(boundRenaming, freeRenaming)
		shape := v.RenameSlots(full)
		if !haveBest {
			bestOrder, bestShape, haveBest = order, shape, true
			continue
		}
		switch compareSlotSlice(order, bestOrder) {
		case -1:
			bestOrder, bestShape = order, shape
		case 0:
			if shape.Key() < bestShape.Key() {
				bestOrder, bestShape = order, shape
			}
		}
	}

	freeRenaming := assignCanonicalNumbering(bestOrder)
	return eclass.ShapeCall[N]{Shape: bestShape, Renaming: freeRenaming.Inverse()}, nil
}

// canonicalBoundRenaming maps each of defs' slots to its canonical binder
// name, purely positionally — binder slots carry no symmetry.
func canonicalBoundRenaming(defs slot.SlotSeq) slot.SlotMap {
	b := slot.NewBuilder()
	for i, s := range defs {
		b.Set(s, slot.CanonicalBoundSlot(i))
	}
	return b.Build()
}

// combineRenamings merges two SlotMaps with disjoint domains into one.
func combineRenamings(maps ...slot.SlotMap) slot.SlotMap {
	b := slot.NewBuilder()
	for _, m := range maps {
		for _, p := range m.Pairs() {
			b.Set(p.From, p.To)
		}
	}
	return b.Build()
}

// freeSlotTraversalOrder returns n's free slots (n.SlotSet()'s members) in
// first-occurrence order over a fixed traversal: Uses left-to-right, then
// each arg's Args pairs in sorted-key order, emitting the value. This
// traversal is what canonical numbering is assigned from, and what variants
// are compared by.
func freeSlotTraversalOrder(n eclass.ENode[N]) []slot.Slot {
	free := n.SlotSet()
	seen := make(map[slot.Slot]bool, free.Len())
	var order []slot.Slot
	consider := func(s slot.Slot) {
		if !free.Contains(s) || seen[s] {
			return
		}
		seen[s] = true
		order = append(order, s)
	}
	for _, s := range n.Uses {
		consider(s)
	}
	for _, a := range n.Args {
		for _, p := range a.Args.Pairs() {
			consider(p.To)
		}
	}
	return order
}

// assignCanonicalNumbering maps each slot in order to CanonicalSlot(i),
// where i is its position.
func assignCanonicalNumbering(order []slot.Slot) slot.SlotMap {
	b := slot.NewBuilder()
	for i, s := range order {
		b.Set(s, slot.CanonicalSlot(i))
	}
	return b.Build()
}

// compareSlotSlice returns -1, 0, 1 comparing a and b lexicographically by
// Slot.Compare, shorter-is-smaller when one is a prefix of the other (which
// cannot actually happen between two variants of the same node, since they
// always expose the same free slot count, but the comparator stays total).
func compareSlotSlice(a, b []slot.Slot) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// expandVariants enumerates every combination of each arg's own referenced
// class permutation group composed onto that arg's renaming (spec.md
// §4.3.1's "compatible variants"): the Cartesian product, across args, of
// {arg.Args ∘ p : p in classes(arg.Ref).Permutations.AllPerms()}.
func (g *EGraph[N]) expandVariants(base eclass.ENode[N]) ([]eclass.ENode[N], error) {
	choices := make([][]eclass.EClassCall, len(base.Args))
	for i, a := range base.Args {
		cd, err := g.classData(a.Ref)
		if err != nil {
			return nil, err
		}
		perms := cd.Permutations.AllPerms()
		choices[i] = make([]eclass.EClassCall, 0, len(perms))
		for _, p := range perms {
			choices[i] = append(choices[i], eclass.EClassCall{Ref: a.Ref, Args: a.Args.Compose(p)})
		}
	}

	var out []eclass.ENode[N]
	var rec func(idx int, current []eclass.EClassCall)
	rec = func(idx int, current []eclass.EClassCall) {
		if idx == len(choices) {
			argsCopy := make([]eclass.EClassCall, len(current))
			copy(argsCopy, current)
			out = append(out, eclass.ENode[N]{
				NodeType:    base.NodeType,
				Definitions: base.Definitions,
				Uses:        base.Uses,
				Args:        argsCopy,
			})
			return
		}
		for _, c := range choices[idx] {
			rec(idx+1, append(current, c))
		}
	}
	rec(0, nil)
	return out, nil
}
