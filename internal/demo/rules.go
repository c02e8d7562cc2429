package demo

import (
	"context"

	"github.com/perf-analysis/internal/command"
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/rule"
)

// classHasNum reports whether call's class currently owns a member node
// naming the integer literal n — the rules below compare against a class's
// node set rather than a syntactic arg, so they still fire once some other
// rewrite has unioned a compound expression into the zero or one class.
func classHasNum(g *egraph.EGraph[Op], call eclass.EClassCall, n int64) (bool, error) {
	nodes, err := g.Nodes(call)
	if err != nil {
		return false, err
	}
	for _, nd := range nodes {
		if nd.NodeType == NumOp(n) {
			return true, nil
		}
	}
	return false, nil
}

// walkClasses invokes fn once per canonical class with every member node
// it currently owns, skipping classes already visited under a different
// (non-canonical) ref. Every rule searcher in this file is a pattern match
// over that same walk.
func walkClasses(g *egraph.EGraph[Op], fn func(call eclass.EClassCall, node eclass.ENode[Op]) error) error {
	seen := make(map[eclass.Ref]bool)
	for _, ref := range g.Classes() {
		root, err := g.Root(ref)
		if err != nil {
			return err
		}
		if seen[root] {
			continue
		}
		seen[root] = true

		call := identityCall(root)
		nodes, err := g.Nodes(call)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if err := fn(call, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddZeroRule rewrites add(x, 0) to x.
type AddZeroRule struct{}

func (AddZeroRule) Search(ctx context.Context, g *egraph.EGraph[Op]) ([]rule.Match[Op], error) {
	var out []rule.Match[Op]
	err := walkClasses(g, func(call eclass.EClassCall, n eclass.ENode[Op]) error {
		if n.NodeType != AddOp {
			return nil
		}
		isZero, err := classHasNum(g, n.Args[1], 0)
		if err != nil || !isZero {
			return err
		}
		out = append(out, rule.Match[Op]{
			Rule:     "add-zero",
			Root:     call,
			Bindings: map[string]eclass.EClassCall{"x": n.Args[0]},
		})
		return nil
	})
	return out, err
}

type AddZeroApplier struct{}

func (AddZeroApplier) Apply(m rule.Match[Op]) (command.Command[Op], error) {
	return &command.UnionMany[Op]{
		Pairs: [][2]command.EClassSymbol{{command.Real(m.Root), command.Real(m.Bindings["x"])}},
	}, nil
}

// MulOneRule rewrites mul(x, 1) to x.
type MulOneRule struct{}

func (MulOneRule) Search(ctx context.Context, g *egraph.EGraph[Op]) ([]rule.Match[Op], error) {
	var out []rule.Match[Op]
	err := walkClasses(g, func(call eclass.EClassCall, n eclass.ENode[Op]) error {
		if n.NodeType != MulOp {
			return nil
		}
		isOne, err := classHasNum(g, n.Args[1], 1)
		if err != nil || !isOne {
			return err
		}
		out = append(out, rule.Match[Op]{
			Rule:     "mul-one",
			Root:     call,
			Bindings: map[string]eclass.EClassCall{"x": n.Args[0]},
		})
		return nil
	})
	return out, err
}

type MulOneApplier struct{}

func (MulOneApplier) Apply(m rule.Match[Op]) (command.Command[Op], error) {
	return &command.UnionMany[Op]{
		Pairs: [][2]command.EClassSymbol{{command.Real(m.Root), command.Real(m.Bindings["x"])}},
	}, nil
}

// MulZeroRule rewrites mul(x, 0) to 0.
type MulZeroRule struct{}

func (MulZeroRule) Search(ctx context.Context, g *egraph.EGraph[Op]) ([]rule.Match[Op], error) {
	var out []rule.Match[Op]
	err := walkClasses(g, func(call eclass.EClassCall, n eclass.ENode[Op]) error {
		if n.NodeType != MulOp {
			return nil
		}
		isZero, err := classHasNum(g, n.Args[1], 0)
		if err != nil || !isZero {
			return err
		}
		out = append(out, rule.Match[Op]{
			Rule:     "mul-zero",
			Root:     call,
			Bindings: map[string]eclass.EClassCall{"zero": n.Args[1]},
		})
		return nil
	})
	return out, err
}

type MulZeroApplier struct{}

func (MulZeroApplier) Apply(m rule.Match[Op]) (command.Command[Op], error) {
	return &command.UnionMany[Op]{
		Pairs: [][2]command.EClassSymbol{{command.Real(m.Root), command.Real(m.Bindings["zero"])}},
	}, nil
}

// AddCommRule rewrites add(x, y) to add(y, x).
type AddCommRule struct{}

func (AddCommRule) Search(ctx context.Context, g *egraph.EGraph[Op]) ([]rule.Match[Op], error) {
	return searchCommutative(g, AddOp, "add-comm")
}

// MulCommRule rewrites mul(x, y) to mul(y, x).
type MulCommRule struct{}

func (MulCommRule) Search(ctx context.Context, g *egraph.EGraph[Op]) ([]rule.Match[Op], error) {
	return searchCommutative(g, MulOp, "mul-comm")
}

func searchCommutative(g *egraph.EGraph[Op], op Op, name rule.Name) ([]rule.Match[Op], error) {
	var out []rule.Match[Op]
	err := walkClasses(g, func(call eclass.EClassCall, n eclass.ENode[Op]) error {
		if n.NodeType != op {
			return nil
		}
		out = append(out, rule.Match[Op]{
			Rule: name,
			Root: call,
			Bindings: map[string]eclass.EClassCall{
				"x": n.Args[0],
				"y": n.Args[1],
			},
		})
		return nil
	})
	return out, err
}

type commCommApplier struct{ op Op }

// AddCommApplier builds the commuted add.
var AddCommApplier = commCommApplier{op: AddOp}

// MulCommApplier builds the commuted mul.
var MulCommApplier = commCommApplier{op: MulOp}

func (a commCommApplier) Apply(m rule.Match[Op]) (command.Command[Op], error) {
	v := command.NewVirtualSymbol()
	entry := command.AddEntry[Op]{
		Symbol: v,
		Node: command.ENodeSymbol[Op]{
			NodeType: a.op,
			Args:     []command.EClassSymbol{command.Real(m.Bindings["y"]), command.Real(m.Bindings["x"])},
		},
	}
	return &command.CommandQueue[Op]{Commands: []command.Command[Op]{
		&command.AddMany[Op]{Entries: []command.AddEntry[Op]{entry}},
		&command.UnionMany[Op]{Pairs: [][2]command.EClassSymbol{{command.Real(m.Root), command.Virtual(v)}}},
	}}, nil
}

// AddAssocRule rewrites add(add(x, y), z) to add(x, add(y, z)).
type AddAssocRule struct{}

func (AddAssocRule) Search(ctx context.Context, g *egraph.EGraph[Op]) ([]rule.Match[Op], error) {
	var out []rule.Match[Op]
	err := walkClasses(g, func(outerCall eclass.EClassCall, outer eclass.ENode[Op]) error {
		if outer.NodeType != AddOp {
			return nil
		}
		inner := outer.Args[0]
		innerNodes, err := g.Nodes(inner)
		if err != nil {
			return err
		}
		for _, in := range innerNodes {
			if in.NodeType != AddOp {
				continue
			}
			out = append(out, rule.Match[Op]{
				Rule: "add-assoc",
				Root: outerCall,
				Bindings: map[string]eclass.EClassCall{
					"x": in.Args[0],
					"y": in.Args[1],
					"z": outer.Args[1],
				},
			})
		}
		return nil
	})
	return out, err
}

type AddAssocApplier struct{}

func (AddAssocApplier) Apply(m rule.Match[Op]) (command.Command[Op], error) {
	inner := command.NewVirtualSymbol()
	outer := command.NewVirtualSymbol()
	return &command.CommandQueue[Op]{Commands: []command.Command[Op]{
		&command.AddMany[Op]{Entries: []command.AddEntry[Op]{{
			Symbol: inner,
			Node: command.ENodeSymbol[Op]{
				NodeType: AddOp,
				Args:     []command.EClassSymbol{command.Real(m.Bindings["y"]), command.Real(m.Bindings["z"])},
			},
		}}},
		&command.AddMany[Op]{Entries: []command.AddEntry[Op]{{
			Symbol: outer,
			Node: command.ENodeSymbol[Op]{
				NodeType: AddOp,
				Args:     []command.EClassSymbol{command.Real(m.Bindings["x"]), command.Virtual(inner)},
			},
		}}},
		&command.UnionMany[Op]{Pairs: [][2]command.EClassSymbol{{command.Real(m.Root), command.Virtual(outer)}}},
	}}, nil
}

// Rules returns the full demo rule set: identities for + and *, the zero
// annihilator for *, commutativity for both, and associativity for +.
func Rules() []rule.Rule[Op] {
	return []rule.Rule[Op]{
		{Name: "add-zero", Searcher: AddZeroRule{}, Applier: AddZeroApplier{}},
		{Name: "mul-one", Searcher: MulOneRule{}, Applier: MulOneApplier{}},
		{Name: "mul-zero", Searcher: MulZeroRule{}, Applier: MulZeroApplier{}},
		{Name: "add-comm", Searcher: AddCommRule{}, Applier: AddCommApplier},
		{Name: "mul-comm", Searcher: MulCommRule{}, Applier: MulCommApplier},
		{Name: "add-assoc", Searcher: AddAssocRule{}, Applier: AddAssocApplier{}},
	}
}
