// Package egraph is the slotted e-graph kernel (spec.md §4): hash-consed,
// congruence-closed storage of alpha-equivalence classes of terms, with a
// slotted union-find tracking which classes have been merged and a
// Schreier-Sims permutation group per class recording the slot symmetries
// its node set is invariant under.
//
// Every exported method that mutates graph state (TryAddMany, UnionMany) is
// documented as sequential-only: callers must not invoke them concurrently
// with each other or with any other method on the same EGraph. Read-only
// queries (Nodes, Users, AreSame, Contains) and the internal canonicalize
// step are safe to call from multiple goroutines provided no mutation is
// concurrently in flight, matching spec.md §5's "parallel reads, sequential
// writes" contract.
package egraph

import (
	"sync"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
	"github.com/perf-analysis/internal/unionfind"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/parallel"
	"github.com/perf-analysis/pkg/utils"
)

// EGraph is the kernel. N is the user's term-language tag type.
type EGraph[N eclass.NodeType] struct {
	gen *slot.Generator
	uf  *unionfind.UnionFind

	// classMu guards classes and hashcons. These are mutated only by the
	// sequential phases of TryAddMany/UnionMany; it exists to let Contains,
	// Nodes and Users be called safely from a goroutine that a caller spun
	// up alongside a belt-and-braces instrumentation read, not to make the
	// mutating operations themselves concurrency-safe with each other.
	classMu sync.RWMutex
	classes map[eclass.Ref]*eclass.ClassData[N]
	// hashcons maps a shape's Key() to the class that owns it.
	hashcons map[string]eclass.Ref

	arena *eclass.Arena
	log   utils.Logger

	// pendingEmpty records classes whose node set became empty during the
	// rebuild currently in flight, for Emptied() to report once it settles.
	pendingEmpty []eclass.Ref
}

// New returns an empty e-graph.
func New[N eclass.NodeType](log utils.Logger) *EGraph[N] {
	if log == nil {
		log = utils.GetGlobalLogger()
	}
	return &EGraph[N]{
		gen:      slot.NewGenerator(),
		uf:       unionfind.New(),
		classes:  make(map[eclass.Ref]*eclass.ClassData[N]),
		hashcons: make(map[string]eclass.Ref),
		arena:    eclass.NewArena(),
		log:      log,
	}
}

// Generator exposes the e-graph's slot generator so callers can mint fresh
// slots consistent with ones the kernel allocates internally (e.g. when
// building new ENodes to add).
func (g *EGraph[N]) Generator() *slot.Generator { return g.gen }

// Contains reports whether r names a currently-registered class (root or
// not — use AreSame/Find-style lookups for canonical identity).
func (g *EGraph[N]) Contains(r eclass.Ref) bool {
	return g.uf.Contains(r)
}

// ClassCount returns the number of classes ever allocated, including ones
// later absorbed by a union (spec exposes this for diagnostics/tests, not
// as a live "class count").
func (g *EGraph[N]) ClassCount() int {
	g.classMu.RLock()
	defer g.classMu.RUnlock()
	return len(g.classes)
}

// Classes returns every currently-registered class ref, canonical or not.
// Debug/diagnostic use only (checkInvariants, export writers).
func (g *EGraph[N]) Classes() []eclass.Ref {
	g.classMu.RLock()
	defer g.classMu.RUnlock()
	out := make([]eclass.Ref, 0, len(g.classes))
	for r := range g.classes {
		out = append(out, r)
	}
	return out
}

// Resolve ports call through whatever unions have happened since it was
// produced, returning the equivalent call against the current canonical
// root. External callers that hold onto EClassCalls across a rebuild (rule
// matches, saturation's PortableMatch) use this to re-validate them.
func (g *EGraph[N]) Resolve(call eclass.EClassCall) (eclass.EClassCall, error) {
	return g.uf.FindCall(call)
}

func (g *EGraph[N]) classData(r eclass.Ref) (*eclass.ClassData[N], error) {
	g.classMu.RLock()
	defer g.classMu.RUnlock()
	cd, ok := g.classes[r]
	if !ok {
		return nil, apperrors.NotFound("e-class", r)
	}
	return cd, nil
}

// AreSame reports whether two calls denote the same class under the same
// effective slot arguments once both are canonicalised (spec.md §4.4).
func (g *EGraph[N]) AreSame(a, b eclass.EClassCall) (bool, error) {
	ca, err := g.uf.FindCall(a)
	if err != nil {
		return false, err
	}
	cb, err := g.uf.FindCall(b)
	if err != nil {
		return false, err
	}
	if ca.Ref != cb.Ref {
		return false, nil
	}
	cd, err := g.classData(ca.Ref)
	if err != nil {
		return false, err
	}
	if ca.Args.Equal(cb.Args) {
		return true, nil
	}
	// ca.Args and cb.Args may differ yet still denote the same applied call
	// if some permutation of the class's own slots carries one onto the
	// other: ca.Args == cb.Args ∘ p for some p in the class's group.
	diff := cb.Args.Inverse().Compose(ca.Args)
	if !diff.IsPermutation() {
		return false, nil
	}
	return cd.Permutations.Contains(diff), nil
}

// defaultParallelMap is used when a caller passes a nil parallel.Map to an
// operation that accepts one.
func defaultParallelMap() parallel.Map {
	return parallel.NewSequential()
}
