package unionfind

import (
	"testing"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind_RootIsIdentity(t *testing.T) {
	arena := eclass.NewArena()
	gen := slot.NewGenerator()
	r := arena.Alloc()
	a := gen.Fresh()

	uf := New()
	uf.MakeSet(r, slot.NewSlotSet(a))

	call, err := uf.Find(r)
	require.NoError(t, err)
	assert.Equal(t, r, call.Ref)
	assert.True(t, call.Args.IsIdentity())
}

func TestFind_MissingIsNotFound(t *testing.T) {
	arena := eclass.NewArena()
	uf := New()
	_, err := uf.Find(arena.Alloc())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFind_ChainComposesRenamings(t *testing.T) {
	arena := eclass.NewArena()
	gen := slot.NewGenerator()
	r1, r2, r3 := arena.Alloc(), arena.Alloc(), arena.Alloc()
	a, b, c := gen.Fresh(), gen.Fresh(), gen.Fresh()

	uf := New()
	uf.MakeSet(r1, slot.NewSlotSet(a))
	uf.MakeSet(r2, slot.NewSlotSet(b))
	uf.MakeSet(r3, slot.NewSlotSet(c))

	// r1 -> r2 renaming a -> b
	uf.Update(r1, eclass.EClassCall{Ref: r2, Args: slot.New([]slot.Slot{a}, []slot.Slot{b})})
	// r2 -> r3 renaming b -> c
	uf.Update(r2, eclass.EClassCall{Ref: r3, Args: slot.New([]slot.Slot{b}, []slot.Slot{c})})

	call, err := uf.Find(r1)
	require.NoError(t, err)
	assert.Equal(t, r3, call.Ref)
	got, ok := call.Args.Get(a)
	require.True(t, ok)
	assert.Equal(t, c, got)

	// path compression: r1 should now point directly at r3.
	canon, err := uf.IsCanonical(r1)
	require.NoError(t, err)
	assert.False(t, canon)
	call2, err := uf.Find(r1)
	require.NoError(t, err)
	assert.Equal(t, r3, call2.Ref)
}

func TestFindCall_ReexpressesArgsOverRoot(t *testing.T) {
	arena := eclass.NewArena()
	gen := slot.NewGenerator()
	child, root := arena.Alloc(), arena.Alloc()
	x, y, caller := gen.Fresh(), gen.Fresh(), gen.Fresh()

	uf := New()
	uf.MakeSet(child, slot.NewSlotSet(x))
	uf.MakeSet(root, slot.NewSlotSet(y))
	uf.Update(child, eclass.EClassCall{Ref: root, Args: slot.New([]slot.Slot{x}, []slot.Slot{y})})

	// caller's call into child: child's canonical slot x -> caller's slot `caller`
	call := eclass.EClassCall{Ref: child, Args: slot.New([]slot.Slot{x}, []slot.Slot{caller})}

	resolved, err := uf.FindCall(call)
	require.NoError(t, err)
	assert.Equal(t, root, resolved.Ref)
	got, ok := resolved.Args.Get(y)
	require.True(t, ok)
	assert.Equal(t, caller, got)
}

func TestIsCanonical(t *testing.T) {
	arena := eclass.NewArena()
	gen := slot.NewGenerator()
	a, b := arena.Alloc(), arena.Alloc()
	s := gen.Fresh()

	uf := New()
	uf.MakeSet(a, slot.NewSlotSet(s))
	uf.MakeSet(b, slot.NewSlotSet(s))

	canon, err := uf.IsCanonical(a)
	require.NoError(t, err)
	assert.True(t, canon)

	uf.Update(a, eclass.EClassCall{Ref: b, Args: slot.Identity(slot.NewSlotSet(s))})
	canon, err = uf.IsCanonical(a)
	require.NoError(t, err)
	assert.False(t, canon)
}
