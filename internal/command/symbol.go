// Package command implements staged, composable graph edits (spec.md §4.4):
// Command values describe an AddMany, a UnionMany, or a CommandQueue of
// either, over a reification map binding not-yet-resolved virtual symbols
// to real e-classes. Optimize (optimize.go) turns a CommandQueue into a
// minimal, maximally-parallel schedule of batches.
package command

import (
	"sync/atomic"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/slot"
)

// VirtualSymbol names an e-class that a command will define once applied,
// but that does not yet exist in the graph.
type VirtualSymbol uint64

func (v VirtualSymbol) String() string { return "v" + itoa(uint64(v)) }

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

var virtualCounter atomic.Uint64

// NewVirtualSymbol allocates a fresh, process-wide unique VirtualSymbol.
func NewVirtualSymbol() VirtualSymbol {
	return VirtualSymbol(virtualCounter.Add(1))
}

// EClassSymbol is either a real, already-resolved EClassCall or a virtual
// symbol awaiting resolution.
type EClassSymbol struct {
	isVirtual bool
	real      eclass.EClassCall
	virtual   VirtualSymbol
}

// Real wraps an already-resolved class call.
func Real(call eclass.EClassCall) EClassSymbol { return EClassSymbol{real: call} }

// Virtual wraps a not-yet-resolved virtual symbol.
func Virtual(v VirtualSymbol) EClassSymbol { return EClassSymbol{isVirtual: true, virtual: v} }

// IsVirtual reports whether this symbol is still unresolved.
func (s EClassSymbol) IsVirtual() bool { return s.isVirtual }

// AsReal returns the resolved call; only meaningful if !IsVirtual().
func (s EClassSymbol) AsReal() eclass.EClassCall { return s.real }

// AsVirtual returns the virtual symbol; only meaningful if IsVirtual().
func (s EClassSymbol) AsVirtual() VirtualSymbol { return s.virtual }

// ReificationMap binds virtual symbols to the real class calls a command
// execution has discovered so far. The zero value is an empty map.
type ReificationMap map[VirtualSymbol]eclass.EClassCall

// Resolve looks s up: real symbols resolve to themselves; virtual symbols
// resolve through the map.
func (m ReificationMap) Resolve(s EClassSymbol) (eclass.EClassCall, bool) {
	if !s.IsVirtual() {
		return s.AsReal(), true
	}
	call, ok := m[s.AsVirtual()]
	return call, ok
}

// Bind returns a copy of m with v bound to call.
func (m ReificationMap) Bind(v VirtualSymbol, call eclass.EClassCall) ReificationMap {
	out := make(ReificationMap, len(m)+1)
	for k, v2 := range m {
		out[k] = v2
	}
	out[v] = call
	return out
}

// Merge returns a copy of m with every binding of other applied on top.
func (m ReificationMap) Merge(other ReificationMap) ReificationMap {
	out := make(ReificationMap, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// ENodeSymbol mirrors eclass.ENode but its args may name virtual classes
// not yet present in the graph.
type ENodeSymbol[N eclass.NodeType] struct {
	NodeType    N
	Definitions slot.SlotSeq
	Uses        slot.SlotSeq
	Args        []EClassSymbol
}

// Resolve turns n into a concrete eclass.ENode, looking every arg up in m.
// ok is false if some arg's virtual symbol is not yet bound.
func (n ENodeSymbol[N]) Resolve(m ReificationMap) (eclass.ENode[N], bool) {
	args := make([]eclass.EClassCall, len(n.Args))
	for i, a := range n.Args {
		call, ok := m.Resolve(a)
		if !ok {
			return eclass.ENode[N]{}, false
		}
		args[i] = call
	}
	return eclass.ENode[N]{
		NodeType:    n.NodeType,
		Definitions: n.Definitions,
		Uses:        n.Uses,
		Args:        args,
	}, true
}

// virtualUses returns the distinct virtual symbols n's args reference.
func (n ENodeSymbol[N]) virtualUses() []VirtualSymbol {
	var out []VirtualSymbol
	seen := make(map[VirtualSymbol]bool)
	for _, a := range n.Args {
		if a.IsVirtual() && !seen[a.AsVirtual()] {
			seen[a.AsVirtual()] = true
			out = append(out, a.AsVirtual())
		}
	}
	return out
}
