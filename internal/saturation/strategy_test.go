package saturation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/internal/command"
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/rule"
	"github.com/perf-analysis/pkg/parallel"
)

type sym string

func (s sym) String() string { return string(s) }

// doubler is a trivial rule: whenever an "a" leaf class exists it adds a
// "b" leaf and unions the two. A second round re-adds the existing "b" and
// re-unions an already-merged pair, which changes nothing, so
// MaximalRuleApplication reaches a fixpoint after exactly one productive
// round.
type doubler struct{ applied bool }

func (d *doubler) Search(ctx context.Context, g *egraph.EGraph[sym]) ([]rule.Match[sym], error) {
	if d.applied {
		return nil, nil
	}
	call, ok, err := g.Find(eclass.ENode[sym]{NodeType: "a"})
	if err != nil || !ok {
		return nil, err
	}
	return []rule.Match[sym]{{Rule: "doubler", Root: call}}, nil
}

type doublerApplier struct{ fired *bool }

func (a *doublerApplier) Apply(m rule.Match[sym]) (command.Command[sym], error) {
	*a.fired = true
	v := command.NewVirtualSymbol()
	return &command.CommandQueue[sym]{Commands: []command.Command[sym]{
		&command.AddMany[sym]{Entries: []command.AddEntry[sym]{{Symbol: v, Node: command.ENodeSymbol[sym]{NodeType: "b"}}}},
		&command.UnionMany[sym]{Pairs: [][2]command.EClassSymbol{{command.Real(m.Root), command.Virtual(v)}}},
	}}, nil
}

func TestMaximalRuleApplicationReachesFixpoint(t *testing.T) {
	g := egraph.New[sym](nil)
	ctx := context.Background()
	_, err := g.TryAdd(ctx, eclass.ENode[sym]{NodeType: "a"})
	require.NoError(t, err)

	fired := false
	d := &doubler{}
	rules := []rule.Rule[sym]{{Name: "doubler", Searcher: d, Applier: &doublerApplier{fired: &fired}}}

	strategy := UntilFixpoint[sym, struct{}](MaximalRuleApplication[sym](rules))
	_, _, _, err = strategy.Apply(ctx, g, struct{}{}, parallel.NewSequential())
	require.NoError(t, err)
	assert.True(t, fired)

	bCall, ok, err := g.Find(eclass.ENode[sym]{NodeType: "b"})
	require.NoError(t, err)
	require.True(t, ok)
	aCall, ok, err := g.Find(eclass.ENode[sym]{NodeType: "a"})
	require.NoError(t, err)
	require.True(t, ok)
	same, err := g.AreSame(aCall, bCall)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestWithIterationLimitStopsEarly(t *testing.T) {
	g := egraph.New[sym](nil)
	count := 0
	base := Func[sym, struct{}]{
		InitialFn: func() struct{} { return struct{}{} },
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[sym], _ struct{}, pm parallel.Map) (*egraph.EGraph[sym], struct{}, bool, error) {
			count++
			return g, struct{}{}, true, nil
		},
	}
	limited := WithIterationLimit[sym, struct{}](base, 2)
	data := limited.InitialData()
	for i := 0; i < 5; i++ {
		_, nd, changed, err := limited.Apply(context.Background(), g, data, parallel.NewSequential())
		require.NoError(t, err)
		data = nd
		if !changed {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestDropDataHidesState(t *testing.T) {
	g := egraph.New[sym](nil)
	base := Func[sym, int]{
		InitialFn: func() int { return 0 },
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[sym], data int, pm parallel.Map) (*egraph.EGraph[sym], int, bool, error) {
			return g, data + 1, data < 2, nil
		},
	}
	dropped := DropData[sym, int](base)
	data := dropped.InitialData()
	var changed bool
	var err error
	for i := 0; i < 5; i++ {
		_, data, changed, err = dropped.Apply(context.Background(), g, data, parallel.NewSequential())
		require.NoError(t, err)
		if !changed {
			break
		}
	}
	assert.Equal(t, struct{}{}, data)
}
