package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
)

type sym string

func (s sym) String() string { return string(s) }

func newGraph() *egraph.EGraph[sym] { return egraph.New[sym](nil) }

func leaf(tag sym) ENodeSymbol[sym] { return ENodeSymbol[sym]{NodeType: tag} }

func unary(tag sym, arg EClassSymbol) ENodeSymbol[sym] {
	return ENodeSymbol[sym]{NodeType: tag, Args: []EClassSymbol{arg}}
}

func TestAddManySingleEntry(t *testing.T) {
	g := newGraph()
	v := NewVirtualSymbol()
	cmd := &AddMany[sym]{Entries: []AddEntry[sym]{{Symbol: v, Node: leaf("a")}}}

	changed, reif, err := cmd.Apply(context.Background(), g, ReificationMap{}, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	call, ok := reif[v]
	require.True(t, ok)
	assert.Equal(t, sym("a"), mustNodeType(t, g, call))
}

func TestAddManyDependentChain(t *testing.T) {
	g := newGraph()
	vA := NewVirtualSymbol()
	vFA := NewVirtualSymbol()

	cmd := &AddMany[sym]{Entries: []AddEntry[sym]{
		{Symbol: vA, Node: leaf("a")},
		{Symbol: vFA, Node: unary("f", Virtual(vA))},
	}}

	_, reif, err := cmd.Apply(context.Background(), g, ReificationMap{}, nil)
	require.NoError(t, err)
	require.Contains(t, reif, vA)
	require.Contains(t, reif, vFA)
}

func TestUnionManyResolvesVirtuals(t *testing.T) {
	g := newGraph()
	ctx := context.Background()
	vA := NewVirtualSymbol()
	vB := NewVirtualSymbol()

	adds := &AddMany[sym]{Entries: []AddEntry[sym]{
		{Symbol: vA, Node: leaf("a")},
		{Symbol: vB, Node: leaf("b")},
	}}
	_, reif, err := adds.Apply(ctx, g, ReificationMap{}, nil)
	require.NoError(t, err)

	unions := &UnionMany[sym]{Pairs: [][2]EClassSymbol{{Virtual(vA), Virtual(vB)}}}
	changed, _, err := unions.Apply(ctx, g, reif, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	same, err := g.AreSame(reif[vA], reif[vB])
	require.NoError(t, err)
	assert.True(t, same)
}

func TestOptimizeMergesIndependentAdds(t *testing.T) {
	vA := NewVirtualSymbol()
	vB := NewVirtualSymbol()

	q := &CommandQueue[sym]{Commands: []Command[sym]{
		&AddMany[sym]{Entries: []AddEntry[sym]{{Symbol: vA, Node: leaf("a")}}},
		&AddMany[sym]{Entries: []AddEntry[sym]{{Symbol: vB, Node: leaf("b")}}},
	}}

	opt := Optimize[sym](q)
	require.Len(t, opt.Commands, 1)
	add, ok := opt.Commands[0].(*AddMany[sym])
	require.True(t, ok)
	assert.Len(t, add.Entries, 2)
}

func TestOptimizeSeparatesDependentAddsAndTrailsUnion(t *testing.T) {
	vA := NewVirtualSymbol()
	vFA := NewVirtualSymbol()
	vB := NewVirtualSymbol()

	q := &CommandQueue[sym]{Commands: []Command[sym]{
		&AddMany[sym]{Entries: []AddEntry[sym]{
			{Symbol: vA, Node: leaf("a")},
			{Symbol: vFA, Node: unary("f", Virtual(vA))},
		}},
		&AddMany[sym]{Entries: []AddEntry[sym]{{Symbol: vB, Node: leaf("b")}}},
		&UnionMany[sym]{Pairs: [][2]EClassSymbol{{Virtual(vFA), Virtual(vB)}}},
	}}

	opt := Optimize[sym](q)
	require.Len(t, opt.Commands, 3)

	batch0, ok := opt.Commands[0].(*AddMany[sym])
	require.True(t, ok)
	assert.Len(t, batch0.Entries, 2, "a and b have no mutual dependency and share batch 0")

	batch1, ok := opt.Commands[1].(*AddMany[sym])
	require.True(t, ok)
	require.Len(t, batch1.Entries, 1)
	assert.Equal(t, vFA, batch1.Entries[0].Symbol)

	union, ok := opt.Commands[2].(*UnionMany[sym])
	require.True(t, ok)
	assert.Len(t, union.Pairs, 1)
}

func TestAddManySimplifyDropsAlreadyPresentNodes(t *testing.T) {
	g := newGraph()
	ctx := context.Background()

	res, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: "a"})
	require.NoError(t, err)

	v := NewVirtualSymbol()
	cmd := &AddMany[sym]{Entries: []AddEntry[sym]{{Symbol: v, Node: leaf("a")}}}

	simplified, discovered, err := cmd.Simplify(g, ReificationMap{})
	require.NoError(t, err)
	assert.Equal(t, res.Call, discovered[v])
	add := simplified.(*AddMany[sym])
	assert.Empty(t, add.Entries)
}

func TestEquivalenceInsertsTreeAndUnionsWithSymbol(t *testing.T) {
	g := newGraph()
	ctx := context.Background()

	known, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: "a"})
	require.NoError(t, err)
	symbol := NewVirtualSymbol()

	root := NewVirtualSymbol()
	cmd := Equivalence[sym](symbol, []AddEntry[sym]{{Symbol: root, Node: leaf("b")}})

	_, reif, err := cmd.Apply(ctx, g, ReificationMap{}.Bind(symbol, known.Call), nil)
	require.NoError(t, err)

	same, err := g.AreSame(known.Call, reif[root])
	require.NoError(t, err)
	assert.True(t, same)
}

func mustNodeType(t *testing.T, g *egraph.EGraph[sym], call eclass.EClassCall) sym {
	t.Helper()
	nodes, err := g.Nodes(call)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	return nodes[0].NodeType
}
