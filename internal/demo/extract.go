package demo

import (
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/saturation"
)

// ExtractTree extracts the cheapest full term rooted at root, recursively,
// via package saturation's default Extractor — a demo CLI wants the whole
// rewritten expression printed, not just its top constructor, so it walks
// what Extract only describes one level at a time.
func ExtractTree(g *egraph.EGraph[Op], root eclass.EClassCall) (*Term, error) {
	var extractor saturation.SmallestTermExtractor[Op]

	var build func(call eclass.EClassCall) (*Term, error)
	build = func(call eclass.EClassCall) (*Term, error) {
		node, args, err := extractor.Extract(g, call)
		if err != nil {
			return nil, err
		}
		children := make([]*Term, len(args))
		for i, a := range args {
			t, err := build(a)
			if err != nil {
				return nil, err
			}
			children[i] = t
		}
		return &Term{Op: node.NodeType, Args: children}, nil
	}
	return build(root)
}
