package slot

import "sort"

type pair struct {
	from, to Slot
}

// SlotMap is an ordered bijection between two disjoint sets of slots (keys
// to values), maintained as a list of (from, to) pairs sorted by key. A
// SlotMap is a permutation iff its key set equals its value set.
type SlotMap struct {
	pairs []pair
}

// Builder accumulates (from, to) pairs before freezing them into a SlotMap.
type Builder struct {
	pairs []pair
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Set records from -> to, overwriting any prior mapping for from.
func (b *Builder) Set(from, to Slot) *Builder {
	for i := range b.pairs {
		if b.pairs[i].from == from {
			b.pairs[i].to = to
			return b
		}
	}
	b.pairs = append(b.pairs, pair{from, to})
	return b
}

// Build freezes the builder into a sorted, immutable SlotMap.
func (b *Builder) Build() SlotMap {
	pairs := make([]pair, len(b.pairs))
	copy(pairs, b.pairs)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].from.Less(pairs[j].from) })
	return SlotMap{pairs: pairs}
}

// New builds a SlotMap directly from from/to slices of equal length.
func New(from, to []Slot) SlotMap {
	b := NewBuilder()
	for i := range from {
		b.Set(from[i], to[i])
	}
	return b.Build()
}

// Identity returns the identity SlotMap over s.
func Identity(s SlotSet) SlotMap {
	items := s.Slice()
	pairs := make([]pair, len(items))
	for i, x := range items {
		pairs[i] = pair{x, x}
	}
	return SlotMap{pairs: pairs}
}

// Empty returns the nowhere-defined SlotMap.
func Empty() SlotMap { return SlotMap{} }

// Len returns the number of pairs.
func (m SlotMap) Len() int { return len(m.pairs) }

// Get looks up from, returning (to, true) if mapped.
func (m SlotMap) Get(from Slot) (Slot, bool) {
	i := sort.Search(len(m.pairs), func(i int) bool { return !m.pairs[i].from.Less(from) })
	if i < len(m.pairs) && m.pairs[i].from == from {
		return m.pairs[i].to, true
	}
	return Slot{}, false
}

// Apply looks up from, returning it unchanged if unmapped. Use Get when a
// missing mapping is meaningful.
func (m SlotMap) Apply(from Slot) Slot {
	if to, ok := m.Get(from); ok {
		return to
	}
	return from
}

// Keys returns the domain as a SlotSet.
func (m SlotMap) Keys() SlotSet {
	items := make([]Slot, len(m.pairs))
	for i, p := range m.pairs {
		items[i] = p.from
	}
	return SlotSet{items: items}
}

// Values returns the codomain as a SlotSet (deduplicated; a non-injective
// map collapses repeated images).
func (m SlotMap) Values() SlotSet {
	items := make([]Slot, len(m.pairs))
	for i, p := range m.pairs {
		items[i] = p.to
	}
	return NewSlotSet(items...)
}

// Pairs returns the (from, to) pairs in sorted-key order.
func (m SlotMap) Pairs() []struct{ From, To Slot } {
	out := make([]struct{ From, To Slot }, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = struct{ From, To Slot }{p.from, p.to}
	}
	return out
}

// IsIdentity reports whether every pair maps a slot to itself.
func (m SlotMap) IsIdentity() bool {
	for _, p := range m.pairs {
		if p.from != p.to {
			return false
		}
	}
	return true
}

// IsPermutation reports whether the key set equals the value set, i.e. m is
// a bijection on a single slot set rather than a renaming between two
// disjoint universes.
func (m SlotMap) IsPermutation() bool {
	return m.Keys().Equal(m.Values())
}

// IsInjective reports whether no two keys share an image.
func (m SlotMap) IsInjective() bool {
	seen := make(map[Slot]bool, len(m.pairs))
	for _, p := range m.pairs {
		if seen[p.to] {
			return false
		}
		seen[p.to] = true
	}
	return true
}

// Equal reports whether m and other contain exactly the same pairs.
func (m SlotMap) Equal(other SlotMap) bool {
	if len(m.pairs) != len(other.pairs) {
		return false
	}
	for i := range m.pairs {
		if m.pairs[i] != other.pairs[i] {
			return false
		}
	}
	return true
}

// FilterKeys returns the restriction of m to keys in s.
func (m SlotMap) FilterKeys(s SlotSet) SlotMap {
	var out []pair
	for _, p := range m.pairs {
		if s.Contains(p.from) {
			out = append(out, p)
		}
	}
	return SlotMap{pairs: out}
}

// Inverse swaps keys and values. The result is only a well-formed SlotMap
// (no two pairs sharing a "from") if m is injective; callers that need this
// invariant should check IsInjective first (debug assertion sites do).
func (m SlotMap) Inverse() SlotMap {
	pairs := make([]pair, len(m.pairs))
	for i, p := range m.pairs {
		pairs[i] = pair{p.to, p.from}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].from.Less(pairs[j].from) })
	return SlotMap{pairs: pairs}
}

// Compose returns f ∘ g: the map k -> f(g(k)), defined for k in g's domain
// whose image g(k) lies in f's domain. Keys of g that fall outside f's
// domain are silently dropped, matching composePartial's tolerance; callers
// that need totality should check the resulting Len against g.Len.
func (f SlotMap) Compose(g SlotMap) SlotMap {
	var out []pair
	for _, p := range g.pairs {
		if v, ok := f.Get(p.to); ok {
			out = append(out, pair{p.from, v})
		}
	}
	return SlotMap{pairs: out}
}

// ComposePartial is an alias for Compose kept to mirror the spec's naming;
// both tolerate keys of g that Compose cannot resolve through f.
func (f SlotMap) ComposePartial(g SlotMap) SlotMap {
	return f.Compose(g)
}

// ComposeFresh returns f ∘ g like Compose, except that for every key of g
// whose image does not land in f's domain, a freshly allocated slot is used
// as the result instead of dropping the key. This is how the kernel extends
// a partial renaming to cover slots a class has not seen before.
func (f SlotMap) ComposeFresh(g SlotMap, gen *Generator) SlotMap {
	b := NewBuilder()
	for _, p := range g.pairs {
		if v, ok := f.Get(p.to); ok {
			b.Set(p.from, v)
		} else {
			b.Set(p.from, gen.Fresh())
		}
	}
	return b.Build()
}

// Rename returns the image-renaming of m by r: every value v in m is
// replaced by r(v) when r maps it, and left unchanged otherwise. This is
// used to carry a class's node renamings forward across a slot-identity
// change (e.g. during rebuild's slot shrinkage) without touching keys.
func (m SlotMap) Rename(r SlotMap) SlotMap {
	pairs := make([]pair, len(m.pairs))
	for i, p := range m.pairs {
		pairs[i] = pair{p.from, r.Apply(p.to)}
	}
	return SlotMap{pairs: pairs}
}

// RestrictValues keeps only pairs whose value lies in s.
func (m SlotMap) RestrictValues(s SlotSet) SlotMap {
	var out []pair
	for _, p := range m.pairs {
		if s.Contains(p.to) {
			out = append(out, p)
		}
	}
	return SlotMap{pairs: out}
}

func (m SlotMap) String() string {
	s := "{"
	for i, p := range m.pairs {
		if i > 0 {
			s += ", "
		}
		s += p.from.String() + "->" + p.to.String()
	}
	return s + "}"
}
