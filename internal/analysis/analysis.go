// Package analysis implements the Analysis[N, A] hook (spec.md §4.7): an
// e-graph enrichment that derives and maintains a per-class value as the
// graph changes, independent of the kernel's own congruence bookkeeping.
package analysis

import (
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
)

// Analysis supplies the three hooks the kernel invokes to maintain a
// per-class value of type A: Make derives a value from a node's own shape
// and its args' current values; Join combines two classes' values when
// they're unioned (must be commutative, associative and idempotent, since
// union order and repeated application are both outside the analysis's
// control); Rename carries a value across a slot renaming, e.g. when
// rebuild shrinks a class's slot set.
type Analysis[N eclass.NodeType, A any] interface {
	Make(node eclass.ENode[N], args []A) A
	Join(a, b A) A
	Rename(a A, m slot.SlotMap) A
}

// Store is the metadata side-table an enriched e-graph maintains: one A
// per live class ref. It is not safe for concurrent mutation — callers
// enriching an EGraph serialize Store access the same way they serialize
// the kernel's own mutating calls.
type Store[N eclass.NodeType, A any] struct {
	analysis Analysis[N, A]
	values   map[eclass.Ref]A
}

// NewStore returns an empty Store driven by a.
func NewStore[N eclass.NodeType, A any](a Analysis[N, A]) *Store[N, A] {
	return &Store[N, A]{analysis: a, values: make(map[eclass.Ref]A)}
}

// Get returns ref's current value, or the zero value of A and false if
// none has been recorded yet.
func (s *Store[N, A]) Get(ref eclass.Ref) (A, bool) {
	v, ok := s.values[ref]
	return v, ok
}

// Set records ref's value, overwriting any previous one.
func (s *Store[N, A]) Set(ref eclass.Ref, v A) {
	s.values[ref] = v
}

// Delete removes ref's value, e.g. once a class has been absorbed by a
// union and its data folded into the winner via Join.
func (s *Store[N, A]) Delete(ref eclass.Ref) {
	delete(s.values, ref)
}

// OnAdd is the add-time hook: called with a freshly installed node's own
// ref, the node itself and its args' current analysis values, in argument
// order. It records Make's result for ref, joining with any value already
// present (a hash-cons hit whose shape changed args, or a second member
// node installed into an already-populated class).
func (s *Store[N, A]) OnAdd(ref eclass.Ref, node eclass.ENode[N], args []A) {
	v := s.analysis.Make(node, args)
	if prev, ok := s.values[ref]; ok {
		v = s.analysis.Join(prev, v)
	}
	s.values[ref] = v
}

// OnUnion is the union-time hook: winner absorbs loser's value via Join,
// and loser's entry is dropped since it no longer names a live class.
func (s *Store[N, A]) OnUnion(winner, loser eclass.Ref) {
	lv, lok := s.values[loser]
	if !lok {
		return
	}
	if wv, wok := s.values[winner]; wok {
		s.values[winner] = s.analysis.Join(wv, lv)
	} else {
		s.values[winner] = lv
	}
	delete(s.values, loser)
}

// OnRebuildShrink is the rebuild-time hook: a class's slot set shrank
// (compactUnusedSlots dropped some), so its value is carried across the
// renaming that maps old slots to new.
func (s *Store[N, A]) OnRebuildShrink(ref eclass.Ref, m slot.SlotMap) {
	if v, ok := s.values[ref]; ok {
		s.values[ref] = s.analysis.Rename(v, m)
	}
}
