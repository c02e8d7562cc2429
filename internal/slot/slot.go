// Package slot provides the name primitives the slotted e-graph kernel is
// built on: Slot (an opaque, totally ordered identity), SlotSet (an ordered
// set of slots) and SlotMap (an ordered bijection between two slot sets).
//
// Slots name binding and use sites inside e-node shapes. They carry no
// payload beyond identity and order; a Slot is only ever compared to other
// slots, never interpreted.
package slot

import (
	"fmt"
	"sync/atomic"
)

// Slot is an opaque, totally ordered identity. Two slots are equal iff they
// were produced by the same Generator call; order is the allocation order,
// used only to make canonicalisation deterministic.
type Slot struct {
	id uint64
}

// Compare returns -1, 0 or 1 as s is less than, equal to, or greater than o.
func (s Slot) Compare(o Slot) int {
	switch {
	case s.id < o.id:
		return -1
	case s.id > o.id:
		return 1
	default:
		return 0
	}
}

// Less reports whether s sorts before o.
func (s Slot) Less(o Slot) bool { return s.id < o.id }

// IsZero reports whether s is the zero value (never produced by a Generator).
func (s Slot) IsZero() bool { return s.id == 0 }

// RawID exposes the underlying counter value. Slot is otherwise opaque;
// this exists only so callers that need a stable, comparable encoding (hash
// keys, serialization) don't have to reinvent one.
func (s Slot) RawID() uint64 { return s.id }

func (s Slot) String() string { return fmt.Sprintf("$%d", s.id) }

// canonicalFreeBase separates the small, fixed pool of canonical shape slots
// from slots a Generator allocates for real class/use slots. Canonical
// slots are shared, deterministic markers: CanonicalSlot(i) always denotes
// "the i-th free slot of this shape", regardless of which class or graph is
// doing the canonicalising. This is what lets two structurally
// alpha-equivalent nodes built from different real (generator-allocated)
// slots hash-cons to the identical shape key.
const canonicalFreeBase = 1 << 32

// canonicalBoundBase is a second, disjoint pool used for a shape's own
// binder (Definitions) slots. Bound slots never escape the node that
// defines them, so they never need to agree with another node's numbering
// the way free-slot canonical numbers do; they only need to be assigned
// deterministically from a node's own Definitions order, in a range that
// can never collide with a free-slot canonical number.
const canonicalBoundBase = 1 << 40

// CanonicalSlot returns the i-th canonical free-slot shape slot (0-based,
// stable across the whole process).
func CanonicalSlot(i int) Slot {
	return Slot{id: canonicalFreeBase + uint64(i)}
}

// CanonicalBoundSlot returns the i-th canonical binder slot: the canonical
// name for the i-th entry of a shape's own Definitions list.
func CanonicalBoundSlot(i int) Slot {
	return Slot{id: canonicalBoundBase + uint64(i)}
}

// IsCanonical reports whether s is one of the reserved canonical shape
// slots (free or bound) rather than a real, generator-allocated one.
func (s Slot) IsCanonical() bool { return s.id >= canonicalFreeBase }

// Generator allocates fresh Slots from a monotone counter. It is safe for
// concurrent use: canonicalisation of independent add-batches may allocate
// fresh slots from the same generator in parallel.
type Generator struct {
	next atomic.Uint64
}

// NewGenerator returns a Generator whose first Fresh() call yields slot 1.
func NewGenerator() *Generator {
	return &Generator{}
}

// Fresh allocates and returns a new, never-before-seen Slot.
func (g *Generator) Fresh() Slot {
	return Slot{id: g.next.Add(1)}
}

// FreshN allocates n fresh, pairwise-distinct slots.
func (g *Generator) FreshN(n int) []Slot {
	out := make([]Slot, n)
	for i := range out {
		out[i] = g.Fresh()
	}
	return out
}
