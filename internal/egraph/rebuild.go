package egraph

import (
	"context"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
	"github.com/perf-analysis/pkg/collections"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/parallel"
)

// maxRepairSteps bounds the worklist drain: every step either installs a
// node under a fresh key, merges two classes, or grows a permutation group,
// all of which are one-way progress measures (strictly fewer
// not-yet-canonical entries, or a strictly larger, bounded permutation
// group) in a correct implementation. A run that exceeds this is treated as
// an internal invariant violation rather than spun forever.
const maxRepairSteps = 1 << 20

// UnionMany merges each pair of calls' classes, rebuilding congruence
// closure afterward (spec.md §4.3.4). The initial per-pair resolution may
// run concurrently through pm (it only reads); applying the merges and
// draining the repair worklist is always sequential, since each merge can
// change what an earlier-in-batch pair resolves to.
//
// pm may be nil, in which case a parallel.Sequential is used.
func (g *EGraph[N]) UnionMany(ctx context.Context, pairs [][2]eclass.EClassCall, pm parallel.Map) error {
	if pm == nil {
		pm = defaultParallelMap()
	}

	resolved := make([][2]eclass.EClassCall, len(pairs))
	err := pm.Range(ctx, len(pairs), func(ctx context.Context, i int) error {
		ra, err := g.uf.FindCall(pairs[i][0])
		if err != nil {
			return err
		}
		rb, err := g.uf.FindCall(pairs[i][1])
		if err != nil {
			return err
		}
		resolved[i] = [2]eclass.EClassCall{ra, rb}
		return nil
	})
	if err != nil {
		return err
	}

	var worklist []eclass.Ref
	for _, pr := range resolved {
		// Re-resolve: an earlier pair in this same batch may already have
		// merged pr[0]/pr[1]'s classes.
		ra, err := g.uf.FindCall(pr[0])
		if err != nil {
			return err
		}
		rb, err := g.uf.FindCall(pr[1])
		if err != nil {
			return err
		}
		if ra.Ref == rb.Ref {
			if err := g.unionSameClass(ra, rb); err != nil {
				return err
			}
			worklist = append(worklist, ra.Ref)
			continue
		}
		survivor, err := g.mergeInto(ra, rb)
		if err != nil {
			return err
		}
		worklist = append(worklist, survivor)
	}
	return g.drainWorklist(worklist)
}

// Union is the two-call convenience wrapper around UnionMany.
func (g *EGraph[N]) Union(ctx context.Context, a, b eclass.EClassCall) error {
	return g.UnionMany(ctx, [][2]eclass.EClassCall{{a, b}}, nil)
}

// unionSameClass handles a union whose two sides already resolve to the
// same class: the only possible new information is a symmetry (ra.Args and
// rb.Args differing by a permutation of the class's own slots), folded into
// the class's permutation group.
func (g *EGraph[N]) unionSameClass(ra, rb eclass.EClassCall) error {
	cd, err := g.classData(ra.Ref)
	if err != nil {
		return err
	}
	diff := rb.Args.Inverse().Compose(ra.Args)
	if diff.IsIdentity() {
		return nil
	}
	if !diff.IsPermutation() {
		return apperrors.InvariantViolation("union of " + ra.Ref.String() + " with itself under incompatible slot args")
	}
	if newGroup, grew := cd.Permutations.Add(diff); grew {
		cd.SetPermutations(newGroup)
	}
	return nil
}

// mergeInto absorbs the higher-indexed of ra.Ref/rb.Ref (the loser) into the
// lower-indexed one (the winner), returning the winner. The slot
// correspondence is read off the two calls' Args (both already expressed
// over the same caller universe, since they're the two sides of one union
// pair): loser slots map to whichever winner slot shares their caller-facing
// value, and any loser slot this occurrence doesn't pin down is mapped to a
// fresh slot from the generator; the winner's own slot set is not extended.
func (g *EGraph[N]) mergeInto(ra, rb eclass.EClassCall) (eclass.Ref, error) {
	winner, loser := ra, rb
	if rb.Ref.Less(ra.Ref) {
		winner, loser = rb, ra
	}
	winnerCD, err := g.classData(winner.Ref)
	if err != nil {
		return eclass.Ref{}, err
	}
	loserCD, err := g.classData(loser.Ref)
	if err != nil {
		return eclass.Ref{}, err
	}

	mapping := winner.Args.Inverse().Compose(loser.Args)
	mapping = mapping.ComposeFresh(slot.Identity(loserCD.Slots), g.gen)

	winnerCD.SetPermutations(winnerCD.Permutations.Merge(loserCD.Permutations.RenameDomain(mapping)))

	for key, entry := range loserCD.Nodes {
		newRenaming := mapping.Compose(entry.Renaming)
		winnerCD.AddNode(entry.Shape, newRenaming)
		g.classMu.Lock()
		g.hashcons[key] = winner.Ref
		g.classMu.Unlock()
	}
	for _, u := range loserCD.Users {
		winnerCD.AddUser(u.Owner, u.Shape)
	}

	g.uf.Update(loser.Ref, eclass.EClassCall{Ref: winner.Ref, Args: mapping})
	for k := range loserCD.Nodes {
		loserCD.RemoveNode(k)
	}
	g.pendingEmpty = append(g.pendingEmpty, loser.Ref)

	return winner.Ref, nil
}

// drainWorklist repeatedly repairs every class on the queue until it is
// empty: repairing a class can enqueue more classes (its own ref, if its
// node set changed; another class, if repairing a dependent discovered a
// fresh congruence). inQueue dedupes against Ref.Index so a class that
// several users' repair both re-enqueue in the same drain is only drained
// once per time it's actually pending, rather than once per enqueue.
func (g *EGraph[N]) drainWorklist(seed []eclass.Ref) error {
	queue := collections.NewQueue[eclass.Ref](len(seed))
	inQueue := collections.NewBitset(len(seed))
	enqueue := func(r eclass.Ref) {
		idx := int(r.Index())
		if inQueue.Test(idx) {
			return
		}
		inQueue.Set(idx)
		queue.Enqueue(r)
	}
	for _, r := range seed {
		enqueue(r)
	}
	steps := 0
	for !queue.IsEmpty() {
		if steps > maxRepairSteps {
			return apperrors.InvariantViolation("rebuild did not converge within the repair step budget")
		}
		steps++
		r, _ := queue.Dequeue()
		inQueue.Clear(int(r.Index()))
		root, err := g.uf.Find(r)
		if err != nil {
			continue // absorbed/removed since being enqueued
		}
		var more []eclass.Ref
		if err := g.repairClass(root.Ref, &more); err != nil {
			return err
		}
		for _, m := range more {
			enqueue(m)
		}
	}
	return nil
}

// repairClass re-derives every node that references ref, then compacts any
// of ref's own slots that turned out to be unused by its current node set.
func (g *EGraph[N]) repairClass(ref eclass.Ref, worklist *[]eclass.Ref) error {
	cd, err := g.classData(ref)
	if err != nil {
		return err
	}
	users := make([]eclass.UserEntry[N], 0, len(cd.Users))
	for _, u := range cd.Users {
		users = append(users, u)
	}
	for _, u := range users {
		if err := g.repairNode(u.Owner, u.Shape, worklist); err != nil {
			return err
		}
	}
	return g.compactUnusedSlots(ref)
}

// repairNode re-canonicalises one stored node (owner's member node, in
// shape form) after something it depends on changed. If re-canonicalising
// picks the same shape as before, nothing happened. Otherwise the node is
// moved to its new canonical key — either within owner's own class, or (if
// the new key already belongs to a different class) by unifying owner's
// class with that other class, since the two are now provably the same
// term.
func (g *EGraph[N]) repairNode(owner eclass.Ref, shape eclass.ENode[N], worklist *[]eclass.Ref) error {
	ownerRoot, err := g.uf.Find(owner)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	ownerCD, err := g.classData(ownerRoot.Ref)
	if err != nil {
		return err
	}
	oldKey := shape.Key()
	entry, ok := ownerCD.Node(oldKey)
	if !ok {
		return nil // already repaired earlier in this same drain
	}

	newShape, err := g.canonicalize(shape)
	if err != nil {
		return err
	}
	if newShape.Shape.Key() == oldKey {
		return nil
	}

	ownerCD.RemoveNode(oldKey)
	g.classMu.Lock()
	if g.hashcons[oldKey] == ownerRoot.Ref {
		delete(g.hashcons, oldKey)
	}
	g.classMu.Unlock()
	for _, a := range shape.Args {
		if childCD, err := g.classData(a.Ref); err == nil {
			childCD.RemoveUser(ownerRoot.Ref, shape)
		}
	}

	// newShape.Renaming: newShape's canonical slots -> shape's own (old)
	// canonical namespace; entry.Renaming: that same old namespace ->
	// owner's real slots. Composed: newShape's canonical slots -> owner's
	// real slots, exactly what installing newShape under owner needs.
	sigmaOwner := entry.Renaming.Compose(newShape.Renaming)

	g.classMu.RLock()
	existingRef, hit := g.hashcons[newShape.Shape.Key()]
	g.classMu.RUnlock()

	switch {
	case !hit:
		g.installInto(ownerRoot.Ref, ownerCD, newShape.Shape, sigmaOwner)
		if err := g.propagatePermutations(ownerRoot.Ref, newShape.Shape, sigmaOwner); err != nil {
			return err
		}
		*worklist = append(*worklist, ownerRoot.Ref)

	case existingRef == ownerRoot.Ref:
		existingEntry, _ := ownerCD.Node(newShape.Shape.Key())
		// Both renamings map newShape's canonical slots to ownerRoot's real
		// slots; composing one with the other's inverse gives a self-map of
		// the real slots, i.e. a candidate permutation of the class.
		diff := existingEntry.Renaming.Compose(sigmaOwner.Inverse())
		if !diff.IsIdentity() {
			if !diff.IsPermutation() {
				return apperrors.InvariantViolation("self-congruent node disagreed on slot args without a permutation relating them")
			}
			if newGroup, grew := ownerCD.Permutations.Add(diff); grew {
				ownerCD.SetPermutations(newGroup)
			}
		}
		*worklist = append(*worklist, ownerRoot.Ref)

	default:
		existingCD, err := g.classData(existingRef)
		if err != nil {
			return err
		}
		existingEntry, _ := existingCD.Node(newShape.Shape.Key())
		// sigmaOwner / existingEntry.Renaming map newShape's canonical slots
		// to each class's real slots; FindCall needs the opposite direction
		// (each Ref's real slots into a shared caller universe), so invert
		// both and use newShape's canonical space as that shared universe.
		callA := eclass.EClassCall{Ref: ownerRoot.Ref, Args: sigmaOwner.Inverse()}
		callB := eclass.EClassCall{Ref: existingRef, Args: existingEntry.Renaming.Inverse()}
		ra, err := g.uf.FindCall(callA)
		if err != nil {
			return err
		}
		rb, err := g.uf.FindCall(callB)
		if err != nil {
			return err
		}
		if ra.Ref == rb.Ref {
			if err := g.unionSameClass(ra, rb); err != nil {
				return err
			}
			*worklist = append(*worklist, ra.Ref)
		} else {
			survivor, err := g.mergeInto(ra, rb)
			if err != nil {
				return err
			}
			*worklist = append(*worklist, survivor)
		}
	}

	return nil
}

// installInto records shape as a member of an already-existing class cd
// (ref), as opposed to installShape which always allocates a fresh one.
func (g *EGraph[N]) installInto(ref eclass.Ref, cd *eclass.ClassData[N], shape eclass.ENode[N], renaming slot.SlotMap) {
	cd.AddNode(shape, renaming)
	g.classMu.Lock()
	g.hashcons[shape.Key()] = ref
	g.classMu.Unlock()
	for _, a := range shape.Args {
		if childCD, err := g.classData(a.Ref); err == nil {
			childCD.AddUser(ref, shape)
		}
	}
}

// compactUnusedSlots drops any of ref's slots that no member node's
// renaming currently maps to — slots that became vestigial as a result of a
// merge elsewhere.
func (g *EGraph[N]) compactUnusedSlots(ref eclass.Ref) error {
	canonical, err := g.uf.IsCanonical(ref)
	if err != nil {
		return err
	}
	if !canonical {
		return nil
	}
	cd, err := g.classData(ref)
	if err != nil {
		return err
	}
	if cd.IsEmpty() {
		return nil
	}
	used := slot.NewSlotSet()
	for _, e := range cd.Nodes {
		used = used.Union(e.Renaming.Values())
	}
	unused := cd.Slots.Diff(used)
	if unused.IsEmpty() {
		return nil
	}
	newSlots := cd.Slots.Diff(unused)
	cd.SetSlots(newSlots)
	cd.SetPermutations(cd.Permutations.Restrict(newSlots))
	g.uf.Update(ref, eclass.EClassCall{Ref: ref, Args: slot.Identity(newSlots)})
	return nil
}

// Emptied returns the classes absorbed by a union since the last call, for
// callers (e.g. a debug exporter) that want to prune references to them.
// Calling it clears the pending list.
func (g *EGraph[N]) Emptied() []eclass.Ref {
	out := g.pendingEmpty
	g.pendingEmpty = nil
	return out
}
