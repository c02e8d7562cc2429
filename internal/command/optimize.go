package command

import "github.com/perf-analysis/internal/eclass"

// Optimize turns a (possibly deeply nested) command into an equivalent
// CommandQueue with minimal, maximally-parallel structure (spec.md §4.4):
//
//  1. flatten every nested CommandQueue into one ordered list of AddMany and
//     UnionMany leaves;
//  2. build the dependency DAG over that list (i ~> j iff j's uses
//     intersect i's definitions) and partition it into independent groups,
//     each one level deeper than anything it depends on;
//  3. within each group, merge every UnionMany into one trailing UnionMany,
//     and layer every AddMany's entries into sub-batches by their mutual
//     virtual-symbol dependencies (an entry goes in batch h+1, where h is
//     the deepest batch of any entry in the same group it locally uses).
//
// The result executes identically to the input but does the least possible
// sequential work: entries that don't depend on each other land in the same
// AddMany, and groups that don't depend on each other appear in command
// order only because CommandQueue itself is sequential — a caller wanting
// true cross-group parallelism runs each group as a separate schedule batch
// (see package schedule).
func Optimize[N eclass.NodeType](cmd Command[N]) *CommandQueue[N] {
	flat := flatten(cmd)
	groups := partitionIndependentGroups(flat)

	var out []Command[N]
	for _, group := range groups {
		adds, unions := splitAddsUnions(group)

		for _, batch := range layerEntries(adds) {
			out = append(out, &AddMany[N]{Entries: batch})
		}
		if merged := mergeUnions(unions); merged != nil {
			out = append(out, merged)
		}
	}
	return &CommandQueue[N]{Commands: out}
}

// flatten expands nested CommandQueues in place, preserving order.
func flatten[N eclass.NodeType](cmd Command[N]) []Command[N] {
	switch c := cmd.(type) {
	case *CommandQueue[N]:
		var out []Command[N]
		for _, sub := range c.Commands {
			out = append(out, flatten(sub)...)
		}
		return out
	default:
		return []Command[N]{cmd}
	}
}

// partitionIndependentGroups assigns each flattened command a level (0 if
// it depends on nothing earlier in the list, else 1 + the deepest level of
// anything it depends on) and groups commands by level, preserving relative
// order within a group. Commands in the same group share no dependency
// edge, by construction, and so can run in any order (or merged) within it.
func partitionIndependentGroups[N eclass.NodeType](flat []Command[N]) [][]Command[N] {
	levels := make([]int, len(flat))
	maxLevel := 0
	for i, c := range flat {
		uses := asSet(c.Uses())
		level := 0
		for j := 0; j < i; j++ {
			if intersects(uses, flat[j].Definitions()) {
				if levels[j]+1 > level {
					level = levels[j] + 1
				}
			}
		}
		levels[i] = level
		if level > maxLevel {
			maxLevel = level
		}
	}

	groups := make([][]Command[N], maxLevel+1)
	for i, c := range flat {
		groups[levels[i]] = append(groups[levels[i]], c)
	}
	return groups
}

func asSet(syms []VirtualSymbol) map[VirtualSymbol]bool {
	out := make(map[VirtualSymbol]bool, len(syms))
	for _, s := range syms {
		out[s] = true
	}
	return out
}

func intersects(set map[VirtualSymbol]bool, syms []VirtualSymbol) bool {
	for _, s := range syms {
		if set[s] {
			return true
		}
	}
	return false
}

// splitAddsUnions separates an independent group (which, post-flatten,
// contains only *AddMany and *UnionMany leaves) into its two kinds,
// preserving order within each.
func splitAddsUnions[N eclass.NodeType](group []Command[N]) ([]*AddMany[N], []*UnionMany[N]) {
	var adds []*AddMany[N]
	var unions []*UnionMany[N]
	for _, c := range group {
		switch v := c.(type) {
		case *AddMany[N]:
			adds = append(adds, v)
		case *UnionMany[N]:
			unions = append(unions, v)
		}
	}
	return adds, unions
}

// mergeUnions concatenates every union's pairs into one trailing UnionMany,
// or returns nil if there is nothing to merge.
func mergeUnions[N eclass.NodeType](unions []*UnionMany[N]) *UnionMany[N] {
	var pairs [][2]EClassSymbol
	for _, u := range unions {
		pairs = append(pairs, u.Pairs...)
	}
	if len(pairs) == 0 {
		return nil
	}
	return &UnionMany[N]{Pairs: pairs}
}

// layerEntries flattens every add's entries (preserving their relative
// order) and re-batches them by local dependency depth: an entry with no
// local dependency goes in batch 0; one that uses a symbol defined by an
// entry in this same group goes 1 + that entry's batch.
func layerEntries[N eclass.NodeType](adds []*AddMany[N]) [][]AddEntry[N] {
	var entries []AddEntry[N]
	for _, a := range adds {
		entries = append(entries, a.Entries...)
	}
	if len(entries) == 0 {
		return nil
	}

	batchOf := make(map[VirtualSymbol]int, len(entries))
	entryBatch := make([]int, len(entries))
	maxBatch := 0
	for i, e := range entries {
		h := -1
		for _, used := range e.Node.virtualUses() {
			if b, ok := batchOf[used]; ok && b > h {
				h = b
			}
		}
		entryBatch[i] = h + 1
		batchOf[e.Symbol] = h + 1
		if h+1 > maxBatch {
			maxBatch = h + 1
		}
	}

	out := make([][]AddEntry[N], maxBatch+1)
	for i, e := range entries {
		b := entryBatch[i]
		out[b] = append(out[b], e)
	}
	return out
}
