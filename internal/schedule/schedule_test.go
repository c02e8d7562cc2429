package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/command"
	"github.com/perf-analysis/internal/egraph"
	apperrors "github.com/perf-analysis/pkg/errors"
)

type sym string

func (s sym) String() string { return string(s) }

func TestBuilderRejectsVirtualArgInBatchZero(t *testing.T) {
	b := NewBuilder[sym]()
	v := command.NewVirtualSymbol()
	node := command.ENodeSymbol[sym]{NodeType: "f", Args: []command.EClassSymbol{command.Virtual(v)}}

	err := b.Add(command.NewVirtualSymbol(), node, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidBatch(err))
}

func TestBuilderResultProducesOrderedBatches(t *testing.T) {
	b := NewBuilder[sym]()
	vA := command.NewVirtualSymbol()
	vB := command.NewVirtualSymbol()
	vFA := command.NewVirtualSymbol()

	require.NoError(t, b.Add(vA, command.ENodeSymbol[sym]{NodeType: "a"}, 0))
	require.NoError(t, b.Add(vB, command.ENodeSymbol[sym]{NodeType: "b"}, 0))
	require.NoError(t, b.Add(vFA, command.ENodeSymbol[sym]{NodeType: "f", Args: []command.EClassSymbol{command.Virtual(vA)}}, 1))
	require.NoError(t, b.Union(command.Virtual(vFA), command.Virtual(vB)))

	sched, err := b.Result()
	require.NoError(t, err)
	assert.Len(t, sched.Batch0Symbols, 2)
	assert.Len(t, sched.Batch0Nodes, 2)
	require.Len(t, sched.Batches, 1)
	assert.Len(t, sched.Batches[0].Symbols, 1)
	require.Len(t, sched.Unions, 1)
}

func TestBuilderStampsDistinctRunIDs(t *testing.T) {
	a := NewBuilder[sym]()
	b := NewBuilder[sym]()
	schedA, err := a.Result()
	require.NoError(t, err)
	schedB, err := b.Result()
	require.NoError(t, err)
	assert.NotEqual(t, schedA.RunID, schedB.RunID)
}

func TestScheduleToCommandQueueExecutes(t *testing.T) {
	g := egraph.New[sym](nil)
	b := NewBuilder[sym]()
	vA := command.NewVirtualSymbol()
	vFA := command.NewVirtualSymbol()

	require.NoError(t, b.Add(vA, command.ENodeSymbol[sym]{NodeType: "a"}, 0))
	require.NoError(t, b.Add(vFA, command.ENodeSymbol[sym]{NodeType: "f", Args: []command.EClassSymbol{command.Virtual(vA)}}, 1))

	sched, err := b.Result()
	require.NoError(t, err)

	q := sched.ToCommandQueue()
	changed, reif, err := q.Apply(context.Background(), g, command.ReificationMap{}, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Contains(t, reif, vA)
	require.Contains(t, reif, vFA)

	nodes, err := g.Nodes(reif[vFA])
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, sym("f"), nodes[0].NodeType)
}
