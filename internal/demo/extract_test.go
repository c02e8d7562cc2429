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

func TestSmallestTermExtractorPrefersSmallerMember(t *testing.T) {
	g := egraph.New[Op](nil)
	ctx := context.Background()
	pm := parallel.NewSequential()

	term, err := Parse("(+ x 0)")
	require.NoError(t, err)
	root, err := Insert(ctx, g, term, pm)
	require.NoError(t, err)

	saturate(t, g)

	var extractor saturation.SmallestTermExtractor[Op]
	node, args, err := extractor.Extract(g, root)
	require.NoError(t, err)
	assert.Equal(t, VarOp("x"), node.NodeType)
	assert.Empty(t, args)
}

func TestExtractTreeOnUnsaturatedGraphReturnsOriginalShape(t *testing.T) {
	g := egraph.New[Op](nil)
	ctx := context.Background()
	pm := parallel.NewSequential()

	term, err := Parse("(* x y)")
	require.NoError(t, err)
	root, err := Insert(ctx, g, term, pm)
	require.NoError(t, err)

	out, err := ExtractTree(g, root)
	require.NoError(t, err)
	assert.Equal(t, "(mul x y)", out.String())
}
