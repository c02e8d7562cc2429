// Package eclass defines the slotted e-graph's structural vocabulary: nodes
// (ENode), applied class references (EClassCall, ShapeCall) and per-class
// storage (ClassData), per spec.md §3.2-§3.4. It has no notion of a whole
// graph; that lives in package egraph.
package eclass

import "fmt"

// Ref is an opaque, generational e-class identity. Using (index, generation)
// pairs rather than bare pointers lets an Arena detect stale references to
// an absorbed class cheaply, and keeps EClassData storable in a plain slice.
type Ref struct {
	index      uint32
	generation uint32
}

// Zero is the reference value never handed out by an Arena; it is useful as
// a "no class" sentinel in call sites that need one.
var Zero = Ref{}

// IsZero reports whether r is the Zero sentinel.
func (r Ref) IsZero() bool { return r == Zero }

func (r Ref) String() string { return fmt.Sprintf("e%d.%d", r.index, r.generation) }

// Index returns the Arena slot this Ref occupies, stable across generation
// bumps. Callers that need a dense, bitset-addressable key for a Ref (e.g.
// worklist membership tracking) use this rather than Ref itself.
func (r Ref) Index() uint32 { return r.index }

// Less gives Refs a total, deterministic order (by allocation index, then
// generation), used to pick a stable winner when merging two classes.
func (r Ref) Less(other Ref) bool {
	if r.index != other.index {
		return r.index < other.index
	}
	return r.generation < other.generation
}

// Arena allocates e-class references. It never reuses an (index) slot's
// identity across a generation bump, so a Ref captured before a class was
// absorbed compares unequal to any Ref handed out afterward for that slot
// (the kernel does not currently recycle slots on absorption, but the
// generation field keeps that possible without an API change).
type Arena struct {
	next uint32
}

// NewArena returns an empty Arena.
func NewArena() *Arena { return &Arena{} }

// Alloc returns a fresh, never-before-seen Ref.
func (a *Arena) Alloc() Ref {
	a.next++
	return Ref{index: a.next, generation: 1}
}
