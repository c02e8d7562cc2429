// Package permgroup implements PermutationGroup, a Schreier-Sims stabiliser
// chain over slot permutations. E-classes use it to record every slot
// symmetry their node set is invariant under without paying the
// exponential cost of storing the symmetry group as an explicit set of
// permutations (see spec.md §4.1).
package permgroup

import "github.com/perf-analysis/internal/slot"

// Permutation is a bijective SlotMap: keys and values are the same slot
// set. The package does not itself enforce this on construction; callers
// (the e-graph kernel) are expected to only ever Add permutations.
type Permutation = slot.SlotMap

// stabilizer is one link of the chain: the stabiliser of `point`, recorded
// as an orbit table mapping each point in point's orbit to a coset
// representative permutation that sends `point` there, plus the subgroup
// that fixes `point` (itself a chain, recursively).
type stabilizer struct {
	point slot.Slot
	// orbit[x] is a permutation p with p.Apply(point) == x.
	orbit map[slot.Slot]Permutation
	sub   *Group
}

// Group is a PermutationGroup: the subgroup of the symmetric group on
// `domain` generated by `generators`, represented as a stabiliser chain.
type Group struct {
	domain     slot.SlotSet
	generators []Permutation
	chain      *stabilizer
}

// Trivial returns the group containing only the identity permutation on
// domain.
func Trivial(domain slot.SlotSet) *Group {
	return &Group{domain: domain}
}

// Domain returns the slot set the group acts on.
func (g *Group) Domain() slot.SlotSet { return g.domain }

// IsTrivial reports whether the group contains only the identity.
func (g *Group) IsTrivial() bool { return g == nil || g.chain == nil }

// Generators returns the group's current (possibly redundant) generating
// set, excluding the identity.
func (g *Group) Generators() []Permutation {
	if g == nil {
		return nil
	}
	out := make([]Permutation, len(g.generators))
	copy(out, g.generators)
	return out
}

// Contains reports whether p is a member of the group.
func (g *Group) Contains(p Permutation) bool {
	if g == nil {
		return p.IsIdentity()
	}
	return strip(g.chain, p)
}

func strip(st *stabilizer, p Permutation) bool {
	if st == nil {
		return p.IsIdentity()
	}
	img := p.Apply(st.point)
	rep, ok := st.orbit[img]
	if !ok {
		return false
	}
	// p fixes st.point once composed with rep's inverse.
	residual := rep.Inverse().Compose(p)
	return strip(st.sub.chain, residual)
}

// Add inserts p into the group if it is not already a member, rebuilding
// the stabiliser chain from the augmented generating set. Reports whether
// the group actually grew.
func (g *Group) Add(p Permutation) (*Group, bool) {
	if g.Contains(p) {
		return g, false
	}
	gens := append(append([]Permutation{}, g.generators...), p)
	return build(g.domain, gens), true
}

// AllPerms enumerates every element of the group via the Cartesian
// expansion orbit-representatives × subgroup-elements.
func (g *Group) AllPerms() []Permutation {
	if g.IsTrivial() {
		return []Permutation{slot.Identity(g.domain)}
	}
	subPerms := g.chain.sub.AllPerms()
	var out []Permutation
	for _, rep := range g.chain.orbit {
		for _, s := range subPerms {
			out = append(out, rep.Compose(s))
		}
	}
	return out
}

// Orbit returns the set of slots reachable from s by applying elements of
// the generating set (equivalently, of the full group).
func (g *Group) Orbit(s slot.Slot) slot.SlotSet {
	seen := map[slot.Slot]bool{s: true}
	frontier := []slot.Slot{s}
	for len(frontier) > 0 {
		x := frontier[0]
		frontier = frontier[1:]
		if g != nil {
			for _, gen := range g.generators {
				y := gen.Apply(x)
				if !seen[y] {
					seen[y] = true
					frontier = append(frontier, y)
				}
			}
		}
	}
	items := make([]slot.Slot, 0, len(seen))
	for x := range seen {
		items = append(items, x)
	}
	return slot.NewSlotSet(items...)
}

// Restrict returns the group obtained by restricting every generator's
// domain/codomain to newDomain (a subset of g.Domain()), dropping any
// generator that collapses to the identity. Used by the kernel's
// shrinkSlots when a class's slot set shrinks.
func (g *Group) Restrict(newDomain slot.SlotSet) *Group {
	if g == nil {
		return Trivial(newDomain)
	}
	var gens []Permutation
	for _, p := range g.generators {
		restricted := p.FilterKeys(newDomain).RestrictValues(newDomain)
		if !isIdentityOn(restricted, newDomain) {
			gens = append(gens, restricted)
		}
	}
	return build(newDomain, gens)
}

func isIdentityOn(p Permutation, domain slot.SlotSet) bool {
	for _, x := range domain.Slice() {
		if p.Apply(x) != x {
			return false
		}
	}
	return true
}

// RenameDomain returns the group obtained by conjugating every generator
// through m: newGen = m ∘ gen ∘ m⁻¹. m must be injective on g.Domain(); used
// when merging one class's symmetry group into another's during union.
func (g *Group) RenameDomain(m slot.SlotMap) *Group {
	newDomain := slot.NewSlotSet(renameSlice(g.domain.Slice(), m)...)
	if g == nil || g.IsTrivial() {
		return Trivial(newDomain)
	}
	inv := m.Inverse()
	var gens []Permutation
	for _, p := range g.generators {
		b := slot.NewBuilder()
		for _, x := range g.domain.Slice() {
			nx := m.Apply(x)
			ny := m.Apply(p.Apply(inv.Apply(nx)))
			b.Set(nx, ny)
		}
		gens = append(gens, b.Build())
	}
	return build(newDomain, gens)
}

func renameSlice(xs []slot.Slot, m slot.SlotMap) []slot.Slot {
	out := make([]slot.Slot, len(xs))
	for i, x := range xs {
		out[i] = m.Apply(x)
	}
	return out
}

// Merge folds other's generators (already expressed over g's domain) into
// g, returning the (possibly larger) resulting group.
func (g *Group) Merge(other *Group) *Group {
	if other == nil || other.IsTrivial() {
		return g
	}
	result := g
	for _, p := range other.Generators() {
		result, _ = result.Add(p)
	}
	return result
}

// build constructs a fresh stabiliser chain from scratch for the given
// generating set. Rebuilding on every Add keeps the implementation simple;
// e-class slot domains are small so this stays cheap in practice (see
// spec.md §4.1's rationale for the chain representation).
func build(domain slot.SlotSet, gens []Permutation) *Group {
	gens = dedupeNonIdentity(gens)
	return &Group{domain: domain, generators: gens, chain: buildChain(domain, gens)}
}

func dedupeNonIdentity(gens []Permutation) []Permutation {
	var out []Permutation
	for _, p := range gens {
		if p.IsIdentity() {
			continue
		}
		dup := false
		for _, q := range out {
			if p.Equal(q) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

func buildChain(domain slot.SlotSet, gens []Permutation) *stabilizer {
	if len(gens) == 0 {
		return nil
	}
	point := basePoint(domain, gens)

	orbit := map[slot.Slot]Permutation{point: slot.Identity(domain)}
	frontier := []slot.Slot{point}
	for len(frontier) > 0 {
		x := frontier[0]
		frontier = frontier[1:]
		rx := orbit[x]
		for _, gen := range gens {
			y := gen.Apply(x)
			if _, ok := orbit[y]; !ok {
				orbit[y] = gen.Compose(rx)
				frontier = append(frontier, y)
			}
		}
	}

	// Schreier generators for the stabiliser of point: for every orbit
	// element x and generator g, rep(g(x))⁻¹ ∘ g ∘ rep(x) fixes point.
	var subGens []Permutation
	for x, rep := range orbit {
		for _, gen := range gens {
			y := gen.Apply(x)
			schreier := orbit[y].Inverse().Compose(gen.Compose(rep))
			subGens = append(subGens, schreier)
		}
	}
	subGens = dedupeNonIdentity(subGens)

	sub := &Group{domain: domain, generators: subGens, chain: buildChain(domain, subGens)}
	return &stabilizer{point: point, orbit: orbit, sub: sub}
}

// basePoint picks the smallest domain slot moved by at least one generator;
// falls back to the smallest domain slot if all generators happen to fix
// every point (shouldn't happen since identities are filtered out, but the
// domain may still be non-empty with no generators reaching here).
func basePoint(domain slot.SlotSet, gens []Permutation) slot.Slot {
	for _, x := range domain.Slice() {
		for _, g := range gens {
			if g.Apply(x) != x {
				return x
			}
		}
	}
	return domain.Slice()[0]
}
