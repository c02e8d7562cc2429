package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/saturation"
	"github.com/perf-analysis/pkg/parallel"
)

func saturate(t *testing.T, g *egraph.EGraph[Op]) {
	t.Helper()
	strategy := saturation.UntilFixpoint(saturation.MaximalRuleApplication(Rules()))
	_, _, _, err := strategy.Apply(context.Background(), g, struct{}{}, parallel.NewSequential())
	require.NoError(t, err)
}

func TestAddZeroRuleReducesToLeftOperand(t *testing.T) {
	g := egraph.New[Op](nil)
	term, err := Parse("(+ x 0)")
	require.NoError(t, err)
	root, err := Insert(context.Background(), g, term, parallel.NewSequential())
	require.NoError(t, err)

	saturate(t, g)

	out, err := ExtractTree(g, root)
	require.NoError(t, err)
	assert.Equal(t, "x", out.String())
}

func TestMulOneAndMulZeroRules(t *testing.T) {
	g := egraph.New[Op](nil)
	term, err := Parse("(+ (* x 1) (* y 0))")
	require.NoError(t, err)
	root, err := Insert(context.Background(), g, term, parallel.NewSequential())
	require.NoError(t, err)

	saturate(t, g)

	out, err := ExtractTree(g, root)
	require.NoError(t, err)
	// x + (y*0) saturates to x + 0, and then to x via add-zero.
	assert.Equal(t, "x", out.String())
}

func TestAddAssocRuleUnifiesBothGroupings(t *testing.T) {
	g := egraph.New[Op](nil)
	ctx := context.Background()
	pm := parallel.NewSequential()

	left, err := Parse("(+ (+ x y) z)")
	require.NoError(t, err)
	right, err := Parse("(+ x (+ y z))")
	require.NoError(t, err)

	leftRoot, err := Insert(ctx, g, left, pm)
	require.NoError(t, err)
	rightRoot, err := Insert(ctx, g, right, pm)
	require.NoError(t, err)

	saturate(t, g)

	same, err := g.AreSame(leftRoot, rightRoot)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestAddCommRuleUnifiesSwappedOperands(t *testing.T) {
	g := egraph.New[Op](nil)
	ctx := context.Background()
	pm := parallel.NewSequential()

	a, err := Parse("(+ x y)")
	require.NoError(t, err)
	b, err := Parse("(+ y x)")
	require.NoError(t, err)

	aRoot, err := Insert(ctx, g, a, pm)
	require.NoError(t, err)
	bRoot, err := Insert(ctx, g, b, pm)
	require.NoError(t, err)

	saturate(t, g)

	same, err := g.AreSame(aRoot, bRoot)
	require.NoError(t, err)
	assert.True(t, same)
}
