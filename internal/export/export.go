// Package export renders lineage graphs as CSV, Graphviz DOT and JSON, and
// writes column lineage back into dbt schema files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/graph"
)

// Format names accepted by Write.
const (
	FormatCSV  = "csv"
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatCSV, FormatDOT, FormatJSON}
}

// Write renders g in the named format.
func Write(w io.Writer, format, name string, g *graph.LineageGraph) error {
	nodes, edges := g.Export()
	switch strings.ToLower(format) {
	case FormatCSV:
		return WriteCSV(w, nodes, edges)
	case FormatDOT:
		attrs := make(map[string]map[string]string)
		for _, n := range g.GetAllNodes() {
			if len(n.Attrs) > 0 {
				attrs[n.ID] = n.Attrs
			}
		}
		return WriteDOT(w, name, nodes, edges, attrs)
	case FormatJSON:
		return WriteJSON(w, nodes, edges)
	default:
		return fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

// WriteCSV writes one source,target row per edge, followed by a row with an
// empty target for every node without edges.
func WriteCSV(w io.Writer, nodes []string, edges []graph.Edge) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "target"}); err != nil {
		return err
	}

	connected := make(map[string]bool, len(nodes))
	for _, e := range edges {
		connected[e.Source] = true
		connected[e.Target] = true
		if err := cw.Write([]string{e.Source, e.Target}); err != nil {
			return err
		}
	}
	for _, n := range nodes {
		if !connected[n] {
			if err := cw.Write([]string{n, ""}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDOT writes a Graphviz digraph. attrs maps node IDs to extra node
// attributes, e.g. a "title" rendered as the node tooltip.
func WriteDOT(w io.Writer, name string, nodes []string, edges []graph.Edge, attrs map[string]map[string]string) error {
	if name == "" {
		name = "lineage"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", dotQuote(name))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for _, n := range nodes {
		fmt.Fprintf(&b, "  %s", dotQuote(n))
		if a := attrs[n]; len(a) > 0 {
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				key := k
				if k == "title" {
					key = "tooltip"
				}
				parts = append(parts, fmt.Sprintf("%s=%s", key, dotQuote(a[k])))
			}
			fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
		}
		b.WriteString(";\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", dotQuote(e.Source), dotQuote(e.Target))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

// Document is the JSON shape of an exported graph.
type Document struct {
	Nodes []string     `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// WriteJSON writes {"nodes": [...], "edges": [{"source", "target"}]}.
func WriteJSON(w io.Writer, nodes []string, edges []graph.Edge) error {
	doc := Document{Nodes: nodes, Edges: edges}
	if doc.Nodes == nil {
		doc.Nodes = []string{}
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
