package egraph

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/perf-analysis/pkg/writer"
)

// Snapshot is a debug-export projection of an e-graph: one entry per live
// class, its slots, its member node shapes (rendered as strings, since
// ENode is generic over the caller's term type and a debug dump only needs
// something a human or `dot` can read) and the classes each member node's
// args reference.
type Snapshot struct {
	Classes []SnapshotClass `json:"classes"`
}

// SnapshotClass is one class's entry in a Snapshot.
type SnapshotClass struct {
	Ref          string   `json:"ref"`
	Slots        []string `json:"slots"`
	Nodes        []string `json:"nodes"`
	Permutations []string `json:"permutations"`
	Edges        []string `json:"edges"` // refs of classes this class's nodes point at
}

// Snapshot walks every live class and renders it for debug export. It takes
// classMu for the duration, like the other read-only queries.
func (g *EGraph[N]) Snapshot() Snapshot {
	g.classMu.RLock()
	defer g.classMu.RUnlock()

	out := Snapshot{Classes: make([]SnapshotClass, 0, len(g.classes))}
	for ref, cd := range g.classes {
		if cd.IsEmpty() {
			continue
		}
		sc := SnapshotClass{Ref: ref.String()}
		for _, s := range cd.Slots.Slice() {
			sc.Slots = append(sc.Slots, s.String())
		}
		edgeSet := make(map[string]struct{})
		for key, entry := range cd.Nodes {
			sc.Nodes = append(sc.Nodes, key)
			for _, a := range entry.Shape.Args {
				edgeSet[a.Ref.String()] = struct{}{}
			}
		}
		for e := range edgeSet {
			sc.Edges = append(sc.Edges, e)
		}
		sort.Strings(sc.Nodes)
		sort.Strings(sc.Edges)
		for _, p := range cd.Permutations.Generators() {
			sc.Permutations = append(sc.Permutations, p.String())
		}
		out.Classes = append(out.Classes, sc)
	}
	sort.Slice(out.Classes, func(i, j int) bool { return out.Classes[i].Ref < out.Classes[j].Ref })
	return out
}

// JSONWriter writes a Snapshot as JSON.
type JSONWriter = writer.JSONWriter[Snapshot]

// NewJSONWriter returns a compact Snapshot JSON writer.
func NewJSONWriter() *JSONWriter { return writer.NewJSONWriter[Snapshot]() }

// NewPrettyJSONWriter returns an indented Snapshot JSON writer.
func NewPrettyJSONWriter() *JSONWriter { return writer.NewPrettyJSONWriter[Snapshot]() }

// GzipWriter writes a Snapshot as gzipped JSON.
type GzipWriter = writer.GzipWriter[Snapshot]

// NewGzipWriter returns a gzipped Snapshot JSON writer.
func NewGzipWriter() *GzipWriter { return writer.NewGzipWriter[Snapshot]() }

// DOTWriter renders a Snapshot as a graphviz DOT graph: one node per class,
// one edge per class reference.
type DOTWriter struct{}

// NewDOTWriter returns a DOT format writer for e-graph snapshots.
func NewDOTWriter() *DOTWriter { return &DOTWriter{} }

// Write renders snap as a `digraph egraph { ... }` body.
func (w *DOTWriter) Write(snap Snapshot, out io.Writer) error {
	if _, err := fmt.Fprintln(out, "digraph egraph {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, "  node [shape=record];"); err != nil {
		return err
	}
	for _, c := range snap.Classes {
		label := fmt.Sprintf("%s|{%d slots|%d nodes}", c.Ref, len(c.Slots), len(c.Nodes))
		if _, err := fmt.Fprintf(out, "  \"%s\" [label=\"%s\"];\n", c.Ref, label); err != nil {
			return err
		}
	}
	for _, c := range snap.Classes {
		for _, target := range c.Edges {
			if _, err := fmt.Fprintf(out, "  \"%s\" -> \"%s\";\n", c.Ref, target); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(out, "}")
	return err
}

// WriteToFile renders snap as DOT to filepath.
func (w *DOTWriter) WriteToFile(snap Snapshot, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()
	return w.Write(snap, file)
}
