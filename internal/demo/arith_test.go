package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/pkg/parallel"
)

func TestParseRoundTripsThroughString(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"(+ x 0)", "(add x 0)"},
		{"(* (+ x y) 2)", "(mul (add x y) 2)"},
		{"x", "x"},
		{"42", "42"},
	}
	for _, tt := range tests {
		term, err := Parse(tt.src)
		require.NoError(t, err)
		assert.Equal(t, tt.want, term.String())
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	tests := []string{"", "(+ x)", "(+ x y z)", "(- x y)", "(+ x y"}
	for _, src := range tests {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestInsertSharesStructurallyIdenticalSubterms(t *testing.T) {
	g := egraph.New[Op](nil)
	ctx := context.Background()
	pm := parallel.NewSequential()

	term, err := Parse("(+ (* x 1) (* x 1))")
	require.NoError(t, err)

	root, err := Insert(ctx, g, term, pm)
	require.NoError(t, err)

	nodes, err := g.Nodes(root)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, nodes[0].Args[0].Ref, nodes[0].Args[1].Ref)
}
