// Package unionfind implements the slotted disjoint-set over e-class
// references (spec.md §4.2): each non-root edge carries a SlotMap renaming
// that bijects the child's pre-merge slots onto a subset of its parent's
// slots. Structural mutation is single-threaded by contract — the kernel
// only ever calls MakeSet and Update from inside one sequential rebuild —
// while Find may run concurrently and takes the structure's mutex.
package unionfind

import (
	"sync"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
	apperrors "github.com/perf-analysis/pkg/errors"
)

type link struct {
	parent   eclass.Ref
	toParent slot.SlotMap
}

// UnionFind is the slotted disjoint-set structure. Structural mutation
// (MakeSet, Update) is the kernel's sequential-only territory, but Find
// path-compresses as a side effect and the kernel's canonicalize runs
// concurrently over independent nodes during tryAddMany's parallel phase, so
// the entries map is guarded by a mutex: path compression is purely an
// optimization, never an observable semantic change, and is the only write
// that can overlap with concurrent reads.
type UnionFind struct {
	mu      sync.Mutex
	entries map[eclass.Ref]link
}

// New returns an empty UnionFind.
func New() *UnionFind {
	return &UnionFind{entries: make(map[eclass.Ref]link)}
}

// MakeSet registers r as a fresh root over the given slot set.
func (u *UnionFind) MakeSet(r eclass.Ref, slots slot.SlotSet) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries[r] = link{parent: r, toParent: slot.Identity(slots)}
}

// Contains reports whether r has ever been registered (as a root or a
// child).
func (u *UnionFind) Contains(r eclass.Ref) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.entries[r]
	return ok
}

// Find follows parent pointers to r's root, composing renamings along the
// way and path-compressing the traversed entries. The returned call's Args
// renames r's own (pre-merge) slots onto the root's current slots.
func (u *UnionFind) Find(r eclass.Ref) (eclass.EClassCall, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.findLocked(r)
}

func (u *UnionFind) findLocked(r eclass.Ref) (eclass.EClassCall, error) {
	e, ok := u.entries[r]
	if !ok {
		return eclass.EClassCall{}, apperrors.NotFound("e-class", r)
	}
	if e.parent == r {
		return eclass.EClassCall{Ref: r, Args: e.toParent}, nil
	}
	parentCall, err := u.findLocked(e.parent)
	if err != nil {
		return eclass.EClassCall{}, err
	}
	composed := parentCall.Args.Compose(e.toParent)
	u.entries[r] = link{parent: parentCall.Ref, toParent: composed}
	return eclass.EClassCall{Ref: parentCall.Ref, Args: composed}, nil
}

// FindCall canonicalises an EClassCall: it resolves call.Ref to its current
// root and re-expresses call.Args (which maps call.Ref's canonical slots to
// the caller's universe) as a map from the root's canonical slots to that
// same caller universe.
func (u *UnionFind) FindCall(call eclass.EClassCall) (eclass.EClassCall, error) {
	rootCall, err := u.Find(call.Ref)
	if err != nil {
		return eclass.EClassCall{}, err
	}
	// rootCall.Args: call.Ref's slots -> root's slots. Its inverse maps
	// root's slots back to call.Ref's slots, which composed with call.Args
	// (call.Ref's slots -> caller universe) yields root's slots -> caller
	// universe.
	newArgs := call.Args.Compose(rootCall.Args.Inverse())
	return eclass.EClassCall{Ref: rootCall.Ref, Args: newArgs}, nil
}

// IsCanonical reports whether r is currently its own root.
func (u *UnionFind) IsCanonical(r eclass.Ref) (bool, error) {
	call, err := u.Find(r)
	if err != nil {
		return false, err
	}
	return call.Ref == r, nil
}

// Update points c's parent edge directly at parent (spec.md §4.2's
// `update`), overwriting any previous edge for c. Used both to register a
// fresh child (mergeInto) and to refresh a root's self-edge after a slot
// shrink.
func (u *UnionFind) Update(c eclass.Ref, parent eclass.EClassCall) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries[c] = link{parent: parent.Ref, toParent: parent.Args}
}
