package saturation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
)

func TestSmallestTermExtractorPrefersCheaperMember(t *testing.T) {
	g := egraph.New[sym](nil)
	ctx := context.Background()

	leaf, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: "a"})
	require.NoError(t, err)

	wrapped, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: "wrap", Args: []eclass.EClassCall{leaf.Call}})
	require.NoError(t, err)

	err = g.Union(ctx, leaf.Call, wrapped.Call)
	require.NoError(t, err)

	var extractor SmallestTermExtractor[sym]
	node, args, err := extractor.Extract(g, leaf.Call)
	require.NoError(t, err)
	assert.Equal(t, sym("a"), node.NodeType)
	assert.Empty(t, args)
}
