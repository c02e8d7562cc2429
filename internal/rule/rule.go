// Package rule defines the generic Rule/Searcher/Applier/Match contracts a
// saturation strategy drives (spec.md §4.6 preamble): this package owns the
// search/apply interfaces and the PortableMatch bridge that lets a match
// survive a rebuild; concrete term-language rules are an external
// collaborator's concern, out of scope here (spec.md §1).
package rule

import (
	"context"

	"go.uber.org/multierr"

	"github.com/perf-analysis/internal/command"
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/pkg/parallel"
)

// Name identifies a rule for bookkeeping (backoff state, caching, metrics).
type Name string

// Match is one instance a Searcher found: a rule firing at Root, with
// whatever named sub-bindings (pattern variable → matched class) the
// Applier needs to build a replacement.
type Match[N eclass.NodeType] struct {
	Rule     Name
	Root     eclass.EClassCall
	Bindings map[string]eclass.EClassCall
}

// PortableMatch re-validates a Match against a graph that may have run
// unions since the match was found: the rule's stored refs are ported
// forward through the current union-find, and ok is false if the match no
// longer makes sense (e.g. a binding's class was absorbed in a way that
// broke the pattern the rule needs).
type PortableMatch[N eclass.NodeType] interface {
	Rewrite(g *egraph.EGraph[N]) (Match[N], bool, error)
}

// Rewrite implements PortableMatch for a bare Match by re-resolving Root
// and every binding through g's current union-find.
func (m Match[N]) Rewrite(g *egraph.EGraph[N]) (Match[N], bool, error) {
	root, err := g.Resolve(m.Root)
	if err != nil {
		return Match[N]{}, false, nil
	}
	bindings := make(map[string]eclass.EClassCall, len(m.Bindings))
	for name, call := range m.Bindings {
		resolved, err := g.Resolve(call)
		if err != nil {
			return Match[N]{}, false, nil
		}
		bindings[name] = resolved
	}
	return Match[N]{Rule: m.Rule, Root: root, Bindings: bindings}, true, nil
}

// Searcher finds every match of one rule in the current graph.
type Searcher[N eclass.NodeType] interface {
	Search(ctx context.Context, g *egraph.EGraph[N]) ([]Match[N], error)
}

// Applier turns a single match into the Command that realises the rewrite
// it represents, allocating fresh virtual symbols for any new structure it
// needs to introduce.
type Applier[N eclass.NodeType] interface {
	Apply(match Match[N]) (command.Command[N], error)
}

// Rule pairs a name with the searcher/applier implementing it.
type Rule[N eclass.NodeType] struct {
	Name     Name
	Searcher Searcher[N]
	Applier  Applier[N]
}

// SearchAll runs every rule's Searcher against g, fanning out across pm and
// aggregating every rule's matches plus every rule's error (via multierr,
// since one rule's search failing should not silently hide another's).
func SearchAll[N eclass.NodeType](ctx context.Context, g *egraph.EGraph[N], rules []Rule[N], pm parallel.Map) (map[Name][]Match[N], error) {
	if pm == nil {
		pm = parallel.NewSequential()
	}

	results := make([][]Match[N], len(rules))
	errs := make([]error, len(rules))
	_ = pm.Range(ctx, len(rules), func(ctx context.Context, i int) error {
		matches, err := rules[i].Searcher.Search(ctx, g)
		results[i] = matches
		errs[i] = err
		return nil
	})

	var combined error
	for _, err := range errs {
		combined = multierr.Append(combined, err)
	}
	if combined != nil {
		return nil, combined
	}

	out := make(map[Name][]Match[N], len(rules))
	for i, r := range rules {
		out[r.Name] = results[i]
	}
	return out, nil
}

// ApplyAll converts every match into a command via its rule's Applier,
// fanning applier errors through multierr the same way SearchAll does for
// search errors. One rule's commands keep the order of its matches; the
// order across rules follows map iteration and is not defined.
func ApplyAll[N eclass.NodeType](rules []Rule[N], matchesByRule map[Name][]Match[N]) ([]command.Command[N], error) {
	appliers := make(map[Name]Applier[N], len(rules))
	for _, r := range rules {
		appliers[r.Name] = r.Applier
	}

	var out []command.Command[N]
	var combined error
	for name, matches := range matchesByRule {
		applier, ok := appliers[name]
		if !ok {
			continue
		}
		for _, m := range matches {
			cmd, err := applier.Apply(m)
			if err != nil {
				combined = multierr.Append(combined, err)
				continue
			}
			out = append(out, cmd)
		}
	}
	if combined != nil {
		return nil, combined
	}
	return out, nil
}
