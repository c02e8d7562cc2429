package egraph

import (
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
)

// propagatePermutations discovers symmetries of shape's own slot set and
// folds them into ref's permutation group (spec.md §4.3.3's "propagate
// permutations" / §4.3.4's "infer new permutations"). sigma is the renaming
// from shape's canonical slots to ref's real slots, as currently recorded.
//
// A symmetry is found by re-running shape's own compatible-variant
// expansion (varying each arg's renaming over that arg's class's
// permutation group, exactly as canonicalize does) and checking whether
// renumbering the variant by its own free-slot traversal order reproduces
// shape exactly. When it does, the traversal order's own numbering is a
// permutation pi of shape's canonical slots; conjugating it through sigma
// (sigma ∘ pi ∘ sigma⁻¹) transports it into a permutation of ref's real
// slots, which is then added as a generator.
func (g *EGraph[N]) propagatePermutations(ref eclass.Ref, shape eclass.ENode[N], sigma slot.SlotMap) error {
	cd, err := g.classData(ref)
	if err != nil {
		return err
	}

	variants, err := g.expandVariants(shape)
	if err != nil {
		return err
	}

	for _, v := range variants {
		order := freeSlotTraversalOrder(v)
		pi := assignCanonicalNumbering(order)
		candidate := v.RenameSlots(pi)
		if candidate.Key() != shape.Key() {
			continue
		}
		q := sigma.Compose(pi).Compose(sigma.Inverse())
		if q.IsIdentity() {
			continue
		}
		if newGroup, grew := cd.Permutations.Add(q); grew {
			cd.SetPermutations(newGroup)
		}
	}
	return nil
}
