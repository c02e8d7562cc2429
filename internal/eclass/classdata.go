package eclass

import (
	"github.com/perf-analysis/internal/permgroup"
	"github.com/perf-analysis/internal/slot"
)

// NodeEntry records one member node of a class, in shape form, together
// with the renaming from the shape's canonical slots to the class's own
// slots (spec.md §3.3).
type NodeEntry[N NodeType] struct {
	Shape    ENode[N]
	Renaming slot.SlotMap
}

// UserEntry records another class's node (in shape form) that references
// the owning class through its Args.
type UserEntry[N NodeType] struct {
	Owner Ref
	Shape ENode[N]
}

// ClassData is the per-class record the kernel's class table stores:
// member nodes, the classes and nodes that reference this one, and the
// permutation group of slot symmetries the node set is invariant under
// (spec.md §3.3). Cached projections (AppliedNodes,
// AppliedNodesWithIdentity) are invalidated whenever Slots, Permutations or
// Nodes change.
type ClassData[N NodeType] struct {
	Slots        slot.SlotSet
	Nodes        map[string]NodeEntry[N]
	Users        map[string]UserEntry[N]
	Permutations *permgroup.Group

	appliedCache         []ShapeCall[N]
	appliedIdentityCache []ENode[N]
	cacheDirty           bool
}

// New returns an empty ClassData over the given initial slot set.
func New[N NodeType](slots slot.SlotSet) *ClassData[N] {
	return &ClassData[N]{
		Slots:        slots,
		Nodes:        make(map[string]NodeEntry[N]),
		Users:        make(map[string]UserEntry[N]),
		Permutations: permgroup.Trivial(slots),
		cacheDirty:   true,
	}
}

// InvalidateCache drops the cached projections; the next AppliedNodes* call
// recomputes them.
func (c *ClassData[N]) InvalidateCache() {
	c.cacheDirty = true
	c.appliedCache = nil
	c.appliedIdentityCache = nil
}

// SetSlots replaces the class's slot set (only ever shrinks it; see
// spec.md §3.5) and invalidates caches.
func (c *ClassData[N]) SetSlots(s slot.SlotSet) {
	c.Slots = s
	c.InvalidateCache()
}

// SetPermutations replaces the class's symmetry group and invalidates
// caches.
func (c *ClassData[N]) SetPermutations(g *permgroup.Group) {
	c.Permutations = g
	c.InvalidateCache()
}

// AddNode records shape as a member of the class, keyed by its canonical
// encoding, with the given shape-slots-to-class-slots renaming.
func (c *ClassData[N]) AddNode(shape ENode[N], renaming slot.SlotMap) {
	c.Nodes[shape.Key()] = NodeEntry[N]{Shape: shape, Renaming: renaming}
	c.InvalidateCache()
}

// RemoveNode deletes the node stored under key (shape.Key()).
func (c *ClassData[N]) RemoveNode(key string) {
	delete(c.Nodes, key)
	c.InvalidateCache()
}

// Node looks up the stored entry for a shape's key.
func (c *ClassData[N]) Node(key string) (NodeEntry[N], bool) {
	e, ok := c.Nodes[key]
	return e, ok
}

func userKey(owner Ref, shapeKey string) string {
	return owner.String() + "#" + shapeKey
}

// AddUser records that owner has a node (in shape form) referencing this
// class.
func (c *ClassData[N]) AddUser(owner Ref, shape ENode[N]) {
	c.Users[userKey(owner, shape.Key())] = UserEntry[N]{Owner: owner, Shape: shape}
}

// RemoveUser removes a previously-recorded user entry.
func (c *ClassData[N]) RemoveUser(owner Ref, shape ENode[N]) {
	delete(c.Users, userKey(owner, shape.Key()))
}

// AppliedNodes returns ShapeCall(shape, renaming) for every member node,
// cached until the next mutation.
func (c *ClassData[N]) AppliedNodes() []ShapeCall[N] {
	c.ensureCache()
	return c.appliedCache
}

// AppliedNodesWithIdentity returns every member node rewritten as if the
// caller's args were the identity map on the class's slots — the common
// case nodes() optimises for.
func (c *ClassData[N]) AppliedNodesWithIdentity() []ENode[N] {
	c.ensureCache()
	return c.appliedIdentityCache
}

func (c *ClassData[N]) ensureCache() {
	if !c.cacheDirty {
		return
	}
	c.appliedCache = make([]ShapeCall[N], 0, len(c.Nodes))
	c.appliedIdentityCache = make([]ENode[N], 0, len(c.Nodes))
	for _, e := range c.Nodes {
		c.appliedCache = append(c.appliedCache, ShapeCall[N]{Shape: e.Shape, Renaming: e.Renaming})
		c.appliedIdentityCache = append(c.appliedIdentityCache, e.Shape.RenameSlots(e.Renaming))
	}
	c.cacheDirty = false
}

// IsEmpty reports whether the class has been fully absorbed (no member
// nodes left).
func (c *ClassData[N]) IsEmpty() bool { return len(c.Nodes) == 0 }
