package egraph

import (
	"fmt"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// CheckInvariants re-verifies the six structural invariants of spec.md §8
// against the graph's current state. It is a debug-only consistency check,
// not part of the kernel's steady-state operation: callers run it after a
// batch of tryAddMany/unionMany calls in tests or when diagnosing a
// suspected bug, not on every mutation.
func (g *EGraph[N]) CheckInvariants() error {
	g.classMu.RLock()
	defer g.classMu.RUnlock()

	for ref, cd := range g.classes {
		if cd.IsEmpty() {
			continue // absorbed; only its union-find entry still matters
		}

		// 1. Canonicalisation closure: ref is its own root.
		root, err := g.uf.Find(ref)
		if err != nil {
			return apperrors.InvariantViolation(fmt.Sprintf("find(%s) failed: %v", ref, err))
		}
		if root.Ref != ref {
			return apperrors.InvariantViolation(fmt.Sprintf("class %s is not canonical: find resolves to %s", ref, root.Ref))
		}

		for key, entry := range cd.Nodes {
			if entry.Shape.Key() != key {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: node stored under key %q does not hash to itself", ref, key))
			}
			canonical, err := g.canonicalize(entry.Shape)
			if err != nil {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: re-canonicalising stored node failed: %v", ref, err))
			}
			if canonical.Shape.Key() != key {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: stored node %q is not its own canonical form (got %q)", ref, key, canonical.Shape.Key()))
			}

			// 2. Hash-cons synchrony.
			owner, ok := g.hashcons[key]
			if !ok || owner != ref {
				return apperrors.InvariantViolation(fmt.Sprintf("hash-cons desync: class %s owns node %q but hashCons maps it to %v (present=%v)", ref, key, owner, ok))
			}

			// 4. Slot closure: class's slots ⊆ the node's renaming's values.
			if !cd.Slots.Diff(entry.Renaming.Values()).IsEmpty() {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: slot set is not covered by node %q's renaming", ref, key))
			}

			// 3. Users synchrony (forward direction): every arg class
			// records this node as a user.
			for _, a := range entry.Shape.Args {
				childCD, err := g.classData(a.Ref)
				if err != nil {
					continue // arg class absorbed/gone; repair should have caught this
				}
				found := false
				for _, u := range childCD.Users {
					if u.Owner == ref && u.Shape.Key() == entry.Shape.Key() {
						found = true
						break
					}
				}
				if !found {
					return apperrors.InvariantViolation(fmt.Sprintf("class %s: node %q references %s but is not recorded as its user", ref, key, a.Ref))
				}
			}
		}

		// 3. Users synchrony (reverse direction): every recorded user
		// still actually references this class from a node it owns.
		for ukey, u := range cd.Users {
			ownerCD, err := g.classData(u.Owner)
			if err != nil {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: user entry %q owner %s is gone: %v", ref, ukey, u.Owner, err))
			}
			entry, ok := ownerCD.Node(u.Shape.Key())
			if !ok {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: user entry %q's owner %s no longer stores that node", ref, ukey, u.Owner))
			}
			refs := false
			for _, a := range entry.Shape.Args {
				if a.Ref == ref {
					refs = true
					break
				}
			}
			if !refs {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: user entry %q's node no longer references this class", ref, ukey))
			}
		}

		// 5. Permutation action: every generator is a self-map of exactly
		// the class's current slots.
		for _, gen := range cd.Permutations.Generators() {
			if !gen.Keys().Equal(cd.Slots) || !gen.Values().Equal(cd.Slots) {
				return apperrors.InvariantViolation(fmt.Sprintf("class %s: permutation generator does not act on exactly the class's slots", ref))
			}
		}

		// 6. Union-find acyclicity: a second find must agree with the first.
		again, err := g.uf.Find(ref)
		if err != nil {
			return apperrors.InvariantViolation(fmt.Sprintf("find(%s) is not stable: %v", ref, err))
		}
		if !again.Args.Equal(root.Args) || again.Ref != root.Ref {
			return apperrors.InvariantViolation(fmt.Sprintf("find(%s) is not stable across repeated calls", ref))
		}
	}
	return nil
}
