package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_FreshDistinct(t *testing.T) {
	gen := NewGenerator()
	a := gen.Fresh()
	b := gen.Fresh()
	assert.NotEqual(t, a, b)
	assert.True(t, a.Less(b))
}

func TestSlotSet_UnionIntersectDiff(t *testing.T) {
	gen := NewGenerator()
	a, b, c := gen.Fresh(), gen.Fresh(), gen.Fresh()

	s1 := NewSlotSet(a, b)
	s2 := NewSlotSet(b, c)

	assert.True(t, s1.Union(s2).Equal(NewSlotSet(a, b, c)))
	assert.True(t, s1.Intersect(s2).Equal(NewSlotSet(b)))
	assert.True(t, s1.Diff(s2).Equal(NewSlotSet(a)))
	assert.True(t, NewSlotSet(a).SubsetOf(s1))
	assert.False(t, s1.SubsetOf(NewSlotSet(a)))
}

func TestSlotSet_DedupesAndSorts(t *testing.T) {
	gen := NewGenerator()
	a, b := gen.Fresh(), gen.Fresh()
	s := NewSlotSet(b, a, b, a)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []Slot{a, b}, s.Slice())
}

func TestSlotMap_IdentityAndPermutation(t *testing.T) {
	gen := NewGenerator()
	a, b := gen.Fresh(), gen.Fresh()
	set := NewSlotSet(a, b)

	id := Identity(set)
	assert.True(t, id.IsIdentity())
	assert.True(t, id.IsPermutation())

	swap := NewBuilder().Set(a, b).Set(b, a).Build()
	assert.False(t, swap.IsIdentity())
	assert.True(t, swap.IsPermutation())
}

func TestSlotMap_ComposeAndInverse(t *testing.T) {
	gen := NewGenerator()
	a, b, c := gen.Fresh(), gen.Fresh(), gen.Fresh()

	g := NewBuilder().Set(a, b).Build() // a -> b
	f := NewBuilder().Set(b, c).Build() // b -> c

	composed := f.Compose(g) // a -> c
	got, ok := composed.Get(a)
	require.True(t, ok)
	assert.Equal(t, c, got)

	inv := f.Inverse() // c -> b
	got, ok = inv.Get(c)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestSlotMap_ComposeDropsUnresolvable(t *testing.T) {
	gen := NewGenerator()
	a, b, c := gen.Fresh(), gen.Fresh(), gen.Fresh()

	g := NewBuilder().Set(a, b).Build() // a -> b, but f below doesn't know b
	f := NewBuilder().Set(c, c).Build()

	composed := f.Compose(g)
	assert.Equal(t, 0, composed.Len())
}

func TestSlotMap_ComposeFreshAllocates(t *testing.T) {
	gen := NewGenerator()
	a, b := gen.Fresh(), gen.Fresh()

	g := NewBuilder().Set(a, b).Build() // a -> b
	f := Empty()                        // knows nothing about b

	composed := f.ComposeFresh(g, gen)
	got, ok := composed.Get(a)
	require.True(t, ok)
	assert.NotEqual(t, b, got)
	assert.False(t, got.IsZero())
}

func TestSlotMap_Rename(t *testing.T) {
	gen := NewGenerator()
	a, b, c := gen.Fresh(), gen.Fresh(), gen.Fresh()

	m := NewBuilder().Set(a, b).Build() // a -> b
	r := NewBuilder().Set(b, c).Build() // rename b -> c

	renamed := m.Rename(r)
	got, ok := renamed.Get(a)
	require.True(t, ok)
	assert.Equal(t, c, got)
}

func TestSlotMap_FilterKeys(t *testing.T) {
	gen := NewGenerator()
	a, b := gen.Fresh(), gen.Fresh()
	m := NewBuilder().Set(a, a).Set(b, b).Build()

	filtered := m.FilterKeys(NewSlotSet(a))
	assert.Equal(t, 1, filtered.Len())
	_, ok := filtered.Get(b)
	assert.False(t, ok)
}
