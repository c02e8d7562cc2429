// Package schedule builds a CommandSchedule: a driver-friendly, batch-laid-
// out plan that a caller can execute as a fixed sequence of tryAddMany/
// unionMany calls (spec.md §4.5).
package schedule

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/perf-analysis/internal/command"
	"github.com/perf-analysis/internal/eclass"
	apperrors "github.com/perf-analysis/pkg/errors"
)

type scheduledAdd[N eclass.NodeType] struct {
	symbol command.VirtualSymbol
	node   command.ENodeSymbol[N]
	batch  int
	order  int
}

// CommandScheduleBuilder is a thread-safe accumulator for add/union
// entries, later materialised into a CommandSchedule by result().
type CommandScheduleBuilder[N eclass.NodeType] struct {
	mu     sync.Mutex
	runID  uuid.UUID
	adds   []scheduledAdd[N]
	unions [][2]command.EClassSymbol
	closed bool
}

// NewBuilder returns an empty CommandScheduleBuilder. The builder is
// stamped with a fresh run id, carried through to the resulting
// CommandSchedule so a caller can correlate a schedule with the trace
// spans/log lines its execution produces.
func NewBuilder[N eclass.NodeType]() *CommandScheduleBuilder[N] {
	return &CommandScheduleBuilder[N]{runID: uuid.New()}
}

// Add records a node definition at the given batch. Batch-0 adds must
// carry no virtual args (spec.md §4.5); violating that, or calling Add
// after Result, raises InvalidBatch.
func (b *CommandScheduleBuilder[N]) Add(sym command.VirtualSymbol, node command.ENodeSymbol[N], batch int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return apperrors.InvalidBatch("add called after result()")
	}
	if batch < 0 {
		return apperrors.InvalidBatch("negative batch")
	}
	if batch == 0 && len(node.Args) > 0 {
		for _, a := range node.Args {
			if a.IsVirtual() {
				return apperrors.InvalidBatch("batch 0 add carries a virtual arg")
			}
		}
	}
	b.adds = append(b.adds, scheduledAdd[N]{symbol: sym, node: node, batch: batch, order: len(b.adds)})
	return nil
}

// Union records a pair to be unioned once every batch has run.
func (b *CommandScheduleBuilder[N]) Union(a, c command.EClassSymbol) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return apperrors.InvalidBatch("union called after result()")
	}
	b.unions = append(b.unions, [2]command.EClassSymbol{a, c})
	return nil
}

// Result materialises the accumulated entries into a CommandSchedule.
// After Result, Add and Union return an InvalidBatch error.
func (b *CommandScheduleBuilder[N]) Result() (CommandSchedule[N], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true

	byBatch := make(map[int][]scheduledAdd[N])
	maxBatch := 0
	for _, a := range b.adds {
		byBatch[a.batch] = append(byBatch[a.batch], a)
		if a.batch > maxBatch {
			maxBatch = a.batch
		}
	}
	for _, group := range byBatch {
		sort.Slice(group, func(i, j int) bool { return group[i].order < group[j].order })
	}

	var sched CommandSchedule[N]
	sched.RunID = b.runID
	for _, a := range byBatch[0] {
		node, ok := a.node.Resolve(command.ReificationMap{})
		if !ok {
			return CommandSchedule[N]{}, apperrors.InvalidBatch("batch 0 add unexpectedly carries an unresolved virtual arg")
		}
		sched.Batch0Symbols = append(sched.Batch0Symbols, a.symbol)
		sched.Batch0Nodes = append(sched.Batch0Nodes, node)
	}

	for batch := 1; batch <= maxBatch; batch++ {
		var syms []command.VirtualSymbol
		var nodes []command.ENodeSymbol[N]
		for _, a := range byBatch[batch] {
			syms = append(syms, a.symbol)
			nodes = append(nodes, a.node)
		}
		sched.Batches = append(sched.Batches, Batch[N]{Symbols: syms, Nodes: nodes})
	}

	sched.Unions = append(sched.Unions, b.unions...)
	return sched, nil
}

// Batch is one post-batch-0 layer: parallel symbol/node arrays, ready for
// a tryAddMany call once every symbol its nodes use has been bound.
type Batch[N eclass.NodeType] struct {
	Symbols []command.VirtualSymbol
	Nodes   []command.ENodeSymbol[N]
}

// CommandSchedule is the batched execution plan a CommandScheduleBuilder
// produces: batch 0 is fully real and runs first; each later batch may
// reference symbols batch 0 or an earlier later-batch defined; Unions run
// last, once every add has committed (spec.md §4.5).
type CommandSchedule[N eclass.NodeType] struct {
	RunID         uuid.UUID
	Batch0Symbols []command.VirtualSymbol
	Batch0Nodes   []eclass.ENode[N]
	Batches       []Batch[N]
	Unions        [][2]command.EClassSymbol
}

// ToCommandQueue renders the schedule as an ordinary CommandQueue, for
// callers that just want a single Command to Apply — e.g. a saturation
// strategy that already drives commands generically and has no special
// handling for batch-parallel execution.
func (s CommandSchedule[N]) ToCommandQueue() *command.CommandQueue[N] {
	q := &command.CommandQueue[N]{}
	if len(s.Batch0Symbols) > 0 {
		entries := make([]command.AddEntry[N], len(s.Batch0Symbols))
		for i, sym := range s.Batch0Symbols {
			node := s.Batch0Nodes[i]
			entries[i] = command.AddEntry[N]{Symbol: sym, Node: command.ENodeSymbol[N]{
				NodeType:    node.NodeType,
				Definitions: node.Definitions,
				Uses:        node.Uses,
				Args:        realArgs(node.Args),
			}}
		}
		q.Commands = append(q.Commands, &command.AddMany[N]{Entries: entries})
	}
	for _, batch := range s.Batches {
		entries := make([]command.AddEntry[N], len(batch.Symbols))
		for i, sym := range batch.Symbols {
			entries[i] = command.AddEntry[N]{Symbol: sym, Node: batch.Nodes[i]}
		}
		q.Commands = append(q.Commands, &command.AddMany[N]{Entries: entries})
	}
	if len(s.Unions) > 0 {
		q.Commands = append(q.Commands, &command.UnionMany[N]{Pairs: append([][2]command.EClassSymbol(nil), s.Unions...)})
	}
	return q
}

func realArgs(calls []eclass.EClassCall) []command.EClassSymbol {
	out := make([]command.EClassSymbol, len(calls))
	for i, c := range calls {
		out[i] = command.Real(c)
	}
	return out
}
