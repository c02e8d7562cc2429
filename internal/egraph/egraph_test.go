package egraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
)

// sym is the minimal NodeType used across this package's tests: a bare
// string tag, self-describing via String().
type sym string

func (s sym) String() string { return string(s) }

const (
	symVar    sym = "Var"
	symLambda sym = "Lambda"
	symMul    sym = "Mul"
	symConst  sym = "Const"
)

func leaf(tag sym) eclass.ENode[sym] {
	return eclass.ENode[sym]{NodeType: tag}
}

func varNode(use slot.Slot) eclass.ENode[sym] {
	return eclass.ENode[sym]{NodeType: symVar, Uses: slot.SlotSeq{use}}
}

func lambdaNode(def slot.Slot, body eclass.EClassCall) eclass.ENode[sym] {
	return eclass.ENode[sym]{NodeType: symLambda, Definitions: slot.SlotSeq{def}, Args: []eclass.EClassCall{body}}
}

func mulNode(a, b eclass.EClassCall) eclass.ENode[sym] {
	return eclass.ENode[sym]{NodeType: symMul, Args: []eclass.EClassCall{a, b}}
}

func newTestGraph() *EGraph[sym] {
	return New[sym](nil)
}

func TestTryAdd_SlotFreeDedup(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	r1, err := g.TryAdd(ctx, leaf(symConst))
	require.NoError(t, err)
	assert.Equal(t, eclass.Added, r1.Kind)

	r2, err := g.TryAdd(ctx, leaf(symConst))
	require.NoError(t, err)
	assert.Equal(t, eclass.AlreadyThere, r2.Kind)
	assert.Equal(t, r1.Call.Ref, r2.Call.Ref)
	assert.True(t, r2.Call.Args.IsIdentity())
}

func TestCongruenceClosure(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	a, err := g.TryAdd(ctx, leaf(sym("a")))
	require.NoError(t, err)
	b, err := g.TryAdd(ctx, leaf(sym("b")))
	require.NoError(t, err)

	fa, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: sym("f"), Args: []eclass.EClassCall{a.Call}})
	require.NoError(t, err)
	fb, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: sym("f"), Args: []eclass.EClassCall{b.Call}})
	require.NoError(t, err)

	same, err := g.AreSame(fa.Call, fb.Call)
	require.NoError(t, err)
	assert.False(t, same, "f(a) and f(b) must be distinct before a = b")

	require.NoError(t, g.Union(ctx, a.Call, b.Call))

	same, err = g.AreSame(fa.Call, fb.Call)
	require.NoError(t, err)
	assert.True(t, same, "f(a) and f(b) must coincide once a = b")

	require.NoError(t, g.CheckInvariants())
}

func TestAlphaEquivalenceViaSlots(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	x := g.Generator().Fresh()
	y := g.Generator().Fresh()

	varX, err := g.TryAdd(ctx, varNode(x))
	require.NoError(t, err)
	varY, err := g.TryAdd(ctx, varNode(y))
	require.NoError(t, err)

	lamX, err := g.TryAdd(ctx, lambdaNode(x, varX.Call))
	require.NoError(t, err)
	lamY, err := g.TryAdd(ctx, lambdaNode(y, varY.Call))
	require.NoError(t, err)

	assert.Equal(t, lamX.Call.Ref, lamY.Call.Ref, "λx.x and λy.y must hash-cons to the same class")

	cd, err := g.classData(lamX.Call.Ref)
	require.NoError(t, err)
	assert.True(t, cd.Slots.IsEmpty(), "a closed lambda's class must have an empty free-slot set")
	assert.True(t, cd.Permutations.IsTrivial())

	require.NoError(t, g.CheckInvariants())
}

func TestSymmetryPropagation(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	aRef := mustAdd(t, g, leaf(sym("opaqueA")))
	bRef := mustAdd(t, g, leaf(sym("opaqueB")))
	callA := eclass.EClassCall{Ref: aRef, Args: slot.Identity(slot.NewSlotSet())}
	callB := eclass.EClassCall{Ref: bRef, Args: slot.Identity(slot.NewSlotSet())}

	mulAB, err := g.TryAdd(ctx, mulNode(callA, callB))
	require.NoError(t, err)
	mulBA, err := g.TryAdd(ctx, mulNode(callB, callA))
	require.NoError(t, err)

	require.NoError(t, g.Union(ctx, mulAB.Call, mulBA.Call))

	same, err := g.AreSame(mulAB.Call, mulBA.Call)
	require.NoError(t, err)
	assert.True(t, same)

	require.NoError(t, g.CheckInvariants())
}

func mustAdd(t *testing.T, g *EGraph[sym], n eclass.ENode[sym]) eclass.Ref {
	t.Helper()
	res, err := g.TryAdd(context.Background(), n)
	require.NoError(t, err)
	return res.Call.Ref
}

func TestSlotShrinkageOnUnion(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	x := g.Generator().Fresh()
	y := g.Generator().Fresh()

	gx, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: sym("g"), Uses: slot.SlotSeq{x}})
	require.NoError(t, err)
	gy, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: sym("g"), Uses: slot.SlotSeq{y}})
	require.NoError(t, err)

	require.NoError(t, g.Union(ctx, gx.Call, gy.Call))

	root, err := g.Root(gx.Call.Ref)
	require.NoError(t, err)
	cd, err := g.classData(root)
	require.NoError(t, err)
	assert.LessOrEqual(t, cd.Slots.Len(), 1)

	require.NoError(t, g.CheckInvariants())
}

func TestUnionOfSelfIsNoopOrNewPermutation(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	res, err := g.TryAdd(ctx, leaf(symConst))
	require.NoError(t, err)

	require.NoError(t, g.Union(ctx, res.Call, res.Call))

	same, err := g.AreSame(res.Call, res.Call)
	require.NoError(t, err)
	assert.True(t, same)
	require.NoError(t, g.CheckInvariants())
}

func TestFindMissReturnsFalse(t *testing.T) {
	g := newTestGraph()
	_, ok, err := g.Find(leaf(sym("nope")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNodesAndUsersRoundTrip(t *testing.T) {
	g := newTestGraph()
	ctx := context.Background()

	a, err := g.TryAdd(ctx, leaf(sym("a")))
	require.NoError(t, err)
	fa, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: sym("f"), Args: []eclass.EClassCall{a.Call}})
	require.NoError(t, err)

	nodes, err := g.Nodes(fa.Call)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, sym("f"), nodes[0].NodeType)

	users, err := g.Users(a.Call.Ref)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, fa.Call.Ref, users[0].Owner)
}
