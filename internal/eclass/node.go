package eclass

import (
	"fmt"
	"strings"

	"github.com/perf-analysis/internal/slot"
)

// NodeType is the constraint a user's term-language tag type must satisfy:
// comparable (so node sets can be built with it) and self-describing (so
// the kernel can derive a deterministic hash-cons key from it). A typical
// NodeType is a small enum with a generated String method ("Add", "Mul",
// "Lambda", "Var", ...).
type NodeType interface {
	comparable
	fmt.Stringer
}

// EClassCall is an applied reference into an e-class: Ref names the class,
// Args maps the class's canonical slot set onto the caller's slot
// universe (spec.md §3.2).
type EClassCall struct {
	Ref  Ref
	Args slot.SlotMap
}

// SlotSet returns the slots this call exposes to its caller: Args.Values().
func (c EClassCall) SlotSet() slot.SlotSet { return c.Args.Values() }

// RenameSlots returns the call with its argument slots renamed through m
// (the referenced class identity is untouched; only the caller-facing slot
// names change).
func (c EClassCall) RenameSlots(m slot.SlotMap) EClassCall {
	return EClassCall{Ref: c.Ref, Args: c.Args.Rename(m)}
}

// Equal reports whether c and other name the same class through the same
// slot arguments (NOT up to symmetry; that comparison needs the class's
// permutation group and lives in package egraph).
func (c EClassCall) Equal(other EClassCall) bool {
	return c.Ref == other.Ref && c.Args.Equal(other.Args)
}

func (c EClassCall) String() string {
	return fmt.Sprintf("%s%s", c.Ref, c.Args)
}

// ENode is a single term constructor applied to child e-classes, carrying
// its own binder (Definitions) and free-use (Uses) slots (spec.md §3.2).
type ENode[N NodeType] struct {
	NodeType    N
	Definitions slot.SlotSeq
	Uses        slot.SlotSeq
	Args        []EClassCall
}

// SlotSet computes uses ∪ (⋃ args.slots) \ definitions — the slots free in
// the node as a whole.
func (n ENode[N]) SlotSet() slot.SlotSet {
	s := n.Uses.ToSet()
	for _, a := range n.Args {
		s = s.Union(a.SlotSet())
	}
	return s.Diff(n.Definitions.ToSet())
}

// RenameSlots returns the node with every slot it mentions — definitions,
// uses, and the caller-facing slots of its args — passed through m.
func (n ENode[N]) RenameSlots(m slot.SlotMap) ENode[N] {
	args := make([]EClassCall, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.RenameSlots(m)
	}
	return ENode[N]{
		NodeType:    n.NodeType,
		Definitions: renameSeq(n.Definitions, m),
		Uses:        renameSeq(n.Uses, m),
		Args:        args,
	}
}

func renameSeq(seq slot.SlotSeq, m slot.SlotMap) slot.SlotSeq {
	out := make(slot.SlotSeq, len(seq))
	for i, s := range seq {
		out[i] = m.Apply(s)
	}
	return out
}

// Key returns a deterministic string encoding of n, used as the hash-cons
// map key. Go map keys must be comparable, and ENode carries slices, so
// structural equality is mediated through this encoding rather than `==`.
// Two nodes with equal Key() are considered the same hash-cons entry.
func (n ENode[N]) Key() string {
	var b strings.Builder
	b.WriteString(n.NodeType.String())
	b.WriteByte('\x1f')
	writeSlotSeq(&b, n.Definitions)
	b.WriteByte('\x1f')
	writeSlotSeq(&b, n.Uses)
	b.WriteByte('\x1f')
	for i, a := range n.Args {
		if i > 0 {
			b.WriteByte('\x1e')
		}
		fmt.Fprintf(&b, "%d.%d:", a.Ref.index, a.Ref.generation)
		writeSlotMap(&b, a.Args)
	}
	return b.String()
}

func writeSlotSeq(b *strings.Builder, seq slot.SlotSeq) {
	for i, s := range seq {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d", s.RawID())
	}
}

func writeSlotMap(b *strings.Builder, m slot.SlotMap) {
	pairs := m.Pairs()
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d>%d", p.From.RawID(), p.To.RawID())
	}
}

// ShapeCall pairs a canonical shape with the renaming from the shape's own
// (canonical) slots to some containing context's slots — either a class's
// stored slots, or a caller's slot universe (spec.md §3.2).
type ShapeCall[N NodeType] struct {
	Shape    ENode[N]
	Renaming slot.SlotMap
}

// AddKind distinguishes a freshly created class from a hash-cons hit.
type AddKind int

const (
	// Added means tryAddMany allocated a brand-new e-class for this node.
	Added AddKind = iota
	// AlreadyThere means the node (up to canonicalisation) was already
	// present; no mutation occurred.
	AlreadyThere
)

func (k AddKind) String() string {
	if k == Added {
		return "Added"
	}
	return "AlreadyThere"
}

// AddResult is the outcome of inserting one node via tryAddMany.
type AddResult struct {
	Kind AddKind
	Call EClassCall
}
