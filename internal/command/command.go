package command

import (
	"context"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/parallel"
)

// Command is a staged graph edit (spec.md §4.4): it names the virtual
// symbols it reads (Uses) and the ones it defines (Definitions), and can be
// Applied against a live graph given bindings for every symbol it uses.
// Simplify lets a command shrink itself against a read-only view of the
// graph plus whatever bindings are already known, without mutating anything.
type Command[N eclass.NodeType] interface {
	// Uses returns the virtual symbols this command reads. A CommandQueue
	// leaves out symbols an earlier command in it defines; an AddMany lists
	// every virtual arg of its entries, including symbols that another of
	// its own entries defines.
	Uses() []VirtualSymbol
	// Definitions returns the virtual symbols this command defines.
	Definitions() []VirtualSymbol
	// Apply executes the command against g, given bindings for every
	// symbol in Uses(). It returns whether the graph changed and the
	// bindings discovered for every symbol in Definitions().
	Apply(ctx context.Context, g *egraph.EGraph[N], reif ReificationMap, pm parallel.Map) (bool, ReificationMap, error)
	// Simplify returns an equivalent, possibly cheaper command plus any
	// bindings it could resolve just by reading g and partial, without
	// mutating g.
	Simplify(g *egraph.EGraph[N], partial ReificationMap) (Command[N], ReificationMap, error)
}

func dedupSymbols(syms []VirtualSymbol) []VirtualSymbol {
	seen := make(map[VirtualSymbol]bool, len(syms))
	out := syms[:0:0]
	for _, s := range syms {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// AddEntry pairs a virtual symbol with the node definition it names.
type AddEntry[N eclass.NodeType] struct {
	Symbol VirtualSymbol
	Node   ENodeSymbol[N]
}

// AddMany installs a batch of possibly-interdependent nodes, binding each
// entry's Symbol to the e-class the installed node resolves to (spec.md
// §4.4, §6.2).
type AddMany[N eclass.NodeType] struct {
	Entries []AddEntry[N]
}

var _ Command[sentinelNode] = (*AddMany[sentinelNode])(nil)

// sentinelNode only exists to let the compiler check Command conformance
// above without requiring a concrete caller term type in this package.
type sentinelNode struct{}

func (sentinelNode) String() string { return "" }

func (a *AddMany[N]) Uses() []VirtualSymbol {
	var out []VirtualSymbol
	for _, e := range a.Entries {
		out = append(out, e.Node.virtualUses()...)
	}
	return dedupSymbols(out)
}

func (a *AddMany[N]) Definitions() []VirtualSymbol {
	out := make([]VirtualSymbol, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Symbol
	}
	return out
}

func (a *AddMany[N]) Apply(ctx context.Context, g *egraph.EGraph[N], reif ReificationMap, pm parallel.Map) (bool, ReificationMap, error) {
	changed := false
	out := reif
	// Entries that use a symbol defined by an earlier entry of this same
	// command land in a later layer, installed once that symbol is bound.
	for _, batch := range layerEntries([]*AddMany[N]{a}) {
		nodes := make([]eclass.ENode[N], len(batch))
		for i, e := range batch {
			n, ok := e.Node.Resolve(out)
			if !ok {
				return false, nil, apperrors.MalformedCall("addMany: entry references an unbound virtual symbol")
			}
			nodes[i] = n
		}

		results, err := g.TryAddMany(ctx, nodes, pm)
		if err != nil {
			return false, nil, err
		}

		for i, r := range results {
			if r.Kind == eclass.Added {
				changed = true
			}
			out = out.Bind(batch[i].Symbol, r.Call)
		}
	}
	return changed, out, nil
}

func (a *AddMany[N]) Simplify(g *egraph.EGraph[N], partial ReificationMap) (Command[N], ReificationMap, error) {
	var remaining []AddEntry[N]
	discovered := ReificationMap{}
	for _, e := range a.Entries {
		refined := refineNode(e.Node, partial)
		if node, ok := refined.Resolve(partial); ok {
			if call, hit, err := g.Find(node); err != nil {
				return nil, nil, err
			} else if hit {
				discovered = discovered.Bind(e.Symbol, call)
				continue
			}
		}
		remaining = append(remaining, AddEntry[N]{Symbol: e.Symbol, Node: refined})
	}
	return &AddMany[N]{Entries: remaining}, discovered, nil
}

// refineNode replaces every arg whose virtual symbol is bound in partial
// with its real resolution, leaving unresolved args untouched.
func refineNode[N eclass.NodeType](n ENodeSymbol[N], partial ReificationMap) ENodeSymbol[N] {
	args := make([]EClassSymbol, len(n.Args))
	for i, arg := range n.Args {
		if call, ok := partial.Resolve(arg); ok {
			args[i] = Real(call)
		} else {
			args[i] = arg
		}
	}
	return ENodeSymbol[N]{NodeType: n.NodeType, Definitions: n.Definitions, Uses: n.Uses, Args: args}
}

// UnionMany merges pairs of (possibly still virtual) classes (spec.md §4.4,
// §6.2). It defines nothing; every symbol it mentions must already be
// bound by an earlier command.
type UnionMany[N eclass.NodeType] struct {
	Pairs [][2]EClassSymbol
}

var _ Command[sentinelNode] = (*UnionMany[sentinelNode])(nil)

func (u *UnionMany[N]) Uses() []VirtualSymbol {
	var out []VirtualSymbol
	for _, p := range u.Pairs {
		for _, s := range p {
			if s.IsVirtual() {
				out = append(out, s.AsVirtual())
			}
		}
	}
	return dedupSymbols(out)
}

func (u *UnionMany[N]) Definitions() []VirtualSymbol { return nil }

func (u *UnionMany[N]) Apply(ctx context.Context, g *egraph.EGraph[N], reif ReificationMap, pm parallel.Map) (bool, ReificationMap, error) {
	pairs := make([][2]eclass.EClassCall, 0, len(u.Pairs))
	for _, p := range u.Pairs {
		a, ok := reif.Resolve(p[0])
		if !ok {
			return false, nil, apperrors.MalformedCall("unionMany: left side references an unbound virtual symbol")
		}
		b, ok := reif.Resolve(p[1])
		if !ok {
			return false, nil, apperrors.MalformedCall("unionMany: right side references an unbound virtual symbol")
		}
		pairs = append(pairs, [2]eclass.EClassCall{a, b})
	}
	changed := false
	for _, p := range pairs {
		same, err := g.AreSame(p[0], p[1])
		if err != nil {
			return false, nil, err
		}
		if !same {
			changed = true
			break
		}
	}
	if !changed {
		return false, reif, nil
	}
	if err := g.UnionMany(ctx, pairs, pm); err != nil {
		return false, nil, err
	}
	return true, reif, nil
}

func (u *UnionMany[N]) Simplify(g *egraph.EGraph[N], partial ReificationMap) (Command[N], ReificationMap, error) {
	var remaining [][2]EClassSymbol
	for _, p := range u.Pairs {
		left, leftOK := resolveSymbol(p[0], partial)
		right, rightOK := resolveSymbol(p[1], partial)
		if leftOK && rightOK {
			same, err := g.AreSame(left.AsReal(), right.AsReal())
			if err != nil {
				return nil, nil, err
			}
			if same {
				continue
			}
		}
		remaining = append(remaining, [2]EClassSymbol{left, right})
	}
	return &UnionMany[N]{Pairs: remaining}, ReificationMap{}, nil
}

func resolveSymbol(s EClassSymbol, partial ReificationMap) (EClassSymbol, bool) {
	if !s.IsVirtual() {
		return s, true
	}
	if call, ok := partial[s.AsVirtual()]; ok {
		return Real(call), true
	}
	return s, false
}

// CommandQueue runs a fixed sequence of commands, threading the
// reification map forward from one to the next (spec.md §4.4).
type CommandQueue[N eclass.NodeType] struct {
	Commands []Command[N]
}

var _ Command[sentinelNode] = (*CommandQueue[sentinelNode])(nil)

func (q *CommandQueue[N]) Uses() []VirtualSymbol {
	defined := make(map[VirtualSymbol]bool)
	var out []VirtualSymbol
	for _, c := range q.Commands {
		for _, u := range c.Uses() {
			if !defined[u] {
				out = append(out, u)
			}
		}
		for _, d := range c.Definitions() {
			defined[d] = true
		}
	}
	return dedupSymbols(out)
}

func (q *CommandQueue[N]) Definitions() []VirtualSymbol {
	var out []VirtualSymbol
	for _, c := range q.Commands {
		out = append(out, c.Definitions()...)
	}
	return dedupSymbols(out)
}

func (q *CommandQueue[N]) Apply(ctx context.Context, g *egraph.EGraph[N], reif ReificationMap, pm parallel.Map) (bool, ReificationMap, error) {
	changed := false
	cur := reif
	for _, c := range q.Commands {
		did, next, err := c.Apply(ctx, g, cur, pm)
		if err != nil {
			return false, nil, err
		}
		changed = changed || did
		cur = cur.Merge(next)
	}
	return changed, cur, nil
}

func (q *CommandQueue[N]) Simplify(g *egraph.EGraph[N], partial ReificationMap) (Command[N], ReificationMap, error) {
	out := make([]Command[N], 0, len(q.Commands))
	cur := partial
	discovered := ReificationMap{}
	for _, c := range q.Commands {
		simplified, found, err := c.Simplify(g, cur)
		if err != nil {
			return nil, nil, err
		}
		cur = cur.Merge(found)
		discovered = discovered.Merge(found)
		out = append(out, simplified)
	}
	return &CommandQueue[N]{Commands: out}, discovered, nil
}

// Equivalence builds a CommandQueue that installs mixedTree (a tree of
// ENodeSymbols whose leaves may reference already-real classes) bottom-up
// and unions its root with symbol, as spec.md §4.4's `equivalence` factory
// describes. entries must already be in dependency order: an entry's Node
// may only reference virtual symbols defined by strictly earlier entries,
// and the last entry names mixedTree's root.
func Equivalence[N eclass.NodeType](symbol VirtualSymbol, entries []AddEntry[N]) Command[N] {
	all := make([]AddEntry[N], len(entries))
	copy(all, entries)
	add := &AddMany[N]{Entries: all}
	if len(all) == 0 {
		return add
	}
	root := all[len(all)-1].Symbol
	union := &UnionMany[N]{Pairs: [][2]EClassSymbol{{Virtual(root), Virtual(symbol)}}}
	return &CommandQueue[N]{Commands: []Command[N]{add, union}}
}
