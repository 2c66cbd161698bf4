// Package graph holds table and column lineage as a directed graph.
// It supports ingestion of parsed statements, node relabelling and removal,
// bounded upstream/downstream filtering, and deterministic export.
package graph

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

// Node represents a node in the lineage graph.
type Node struct {
	// ID is the canonical table or column name
	ID string
	// Attrs holds presentation data, e.g. a "title" tooltip
	Attrs map[string]string
}

// Edge is a source -> target lineage edge.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// LineageGraph is a directed graph without parallel edges. Every edge
// endpoint is a node.
type LineageGraph struct {
	includeIsolated bool
	nodes           map[string]*Node
	edges           map[string][]string // source -> targets
	parents         map[string][]string // target -> sources
}

// New creates an empty graph. includeIsolated controls whether nodes
// without edges are kept by Ingest and RemoveNode.
func New(includeIsolated bool) *LineageGraph {
	return &LineageGraph{
		includeIsolated: includeIsolated,
		nodes:           make(map[string]*Node),
		edges:           make(map[string][]string),
		parents:         make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the attributes of an existing one when
// attrs is non-nil.
func (g *LineageGraph) AddNode(id string, attrs map[string]string) {
	if node, exists := g.nodes[id]; exists {
		if attrs != nil {
			node.Attrs = attrs
		}
		return
	}
	g.nodes[id] = &Node{ID: id, Attrs: attrs}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge, creating missing endpoints. Self-loops are
// rejected: a table feeding itself carries no lineage.
func (g *LineageGraph) AddEdge(sourceID, targetID string) error {
	if sourceID == targetID {
		return fmt.Errorf("self-loop detected: %s", sourceID)
	}
	g.AddNode(sourceID, nil)
	g.AddNode(targetID, nil)

	if g.HasEdge(sourceID, targetID) {
		return nil
	}
	g.edges[sourceID] = append(g.edges[sourceID], targetID)
	g.parents[targetID] = append(g.parents[targetID], sourceID)
	return nil
}

// HasNode reports whether id is a node.
func (g *LineageGraph) HasNode(id string) bool {
	_, exists := g.nodes[id]
	return exists
}

// HasEdge reports whether the edge source -> target exists.
func (g *LineageGraph) HasEdge(sourceID, targetID string) bool {
	return contains(g.edges[sourceID], targetID)
}

// GetParents returns the sources of a node, sorted.
func (g *LineageGraph) GetParents(id string) []string {
	return sorted(g.parents[id])
}

// GetChildren returns the targets of a node, sorted.
func (g *LineageGraph) GetChildren(id string) []string {
	return sorted(g.edges[id])
}

// Degree returns the number of edges touching id.
func (g *LineageGraph) Degree(id string) int {
	return len(g.edges[id]) + len(g.parents[id])
}

// GetAllNodes returns all nodes sorted by ID.
func (g *LineageGraph) GetAllNodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *LineageGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *LineageGraph) EdgeCount() int {
	count := 0
	for _, targets := range g.edges {
		count += len(targets)
	}
	return count
}

// Ingest adds parsed statements in order. A statement with both sources
// and targets contributes every source -> target edge; a one-sided
// statement contributes isolated nodes only when the graph keeps them.
// Renames relabel nodes in place and drops remove them.
func (g *LineageGraph) Ingest(stmts []*lineage.ParsedStatement) {
	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		sources, targets := stmt.Sources.Sorted(), stmt.Targets.Sorted()

		switch {
		case len(sources) > 0 && len(targets) > 0:
			for _, src := range sources {
				for _, dst := range targets {
					_ = g.AddEdge(src, dst)
				}
			}
		case g.includeIsolated:
			for _, id := range append(sources, targets...) {
				g.AddNode(id, nil)
			}
		}

		for _, r := range stmt.Renamed {
			if r.Old != "" && r.New != "" {
				g.Relabel(r.Old, r.New)
			}
		}
		for _, id := range stmt.Dropped.Sorted() {
			g.RemoveNode(id)
		}
	}
}

// Relabel renames a node, keeping its edges. If newID already exists the
// two nodes are merged. Unknown oldID is a no-op.
func (g *LineageGraph) Relabel(oldID, newID string) {
	node, exists := g.nodes[oldID]
	if !exists || oldID == newID {
		return
	}

	parents, children := g.GetParents(oldID), g.GetChildren(oldID)
	g.deleteNode(oldID)

	if existing, ok := g.nodes[newID]; !ok {
		g.AddNode(newID, node.Attrs)
	} else if existing.Attrs == nil {
		existing.Attrs = node.Attrs
	}
	for _, p := range parents {
		_ = g.AddEdge(p, newID)
	}
	for _, c := range children {
		_ = g.AddEdge(newID, c)
	}
}

// RemoveNode removes a node and its edges. Unless the graph keeps isolated
// nodes, neighbours left without edges are removed too. Unknown IDs are a
// no-op.
func (g *LineageGraph) RemoveNode(id string) {
	if _, exists := g.nodes[id]; !exists {
		return
	}

	neighbours := append(g.GetParents(id), g.GetChildren(id)...)
	g.deleteNode(id)

	if g.includeIsolated {
		return
	}
	for _, n := range neighbours {
		if g.HasNode(n) && g.Degree(n) == 0 {
			g.deleteNode(n)
		}
	}
}

func (g *LineageGraph) deleteNode(id string) {
	for _, p := range g.parents[id] {
		g.edges[p] = remove(g.edges[p], id)
	}
	for _, c := range g.edges[id] {
		g.parents[c] = remove(g.parents[c], id)
	}
	delete(g.nodes, id)
	delete(g.edges, id)
	delete(g.parents, id)
}

// Export returns the sorted node IDs and edges for a renderer.
func (g *LineageGraph) Export() ([]string, []Edge) {
	nodes := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	edges := make([]Edge, 0, g.EdgeCount())
	for _, src := range nodes {
		for _, dst := range sorted(g.edges[src]) {
			edges = append(edges, Edge{Source: src, Target: dst})
		}
	}
	return nodes, edges
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *LineageGraph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// TopologicalSort returns node IDs with every source before its targets.
// Returns an error if the graph contains a cycle.
func (g *LineageGraph) TopologicalSort() ([]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parentID := range sorted(g.parents[id]) {
			visit(parentID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return result, nil
}

// GetRoots returns nodes with no sources.
func (g *LineageGraph) GetRoots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// GetLeaves returns nodes with no targets.
func (g *LineageGraph) GetLeaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns the subgraph induced by nodeIDs. Unknown IDs are ignored.
func (g *LineageGraph) Subgraph(nodeIDs []string) *LineageGraph {
	sub := New(g.includeIsolated)
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			nodeSet[id] = true
			sub.AddNode(id, node.Attrs)
		}
	}
	for id := range nodeSet {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = sub.AddEdge(id, childID)
			}
		}
	}
	return sub
}

func (g *LineageGraph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sorted(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func remove(slice []string, str string) []string {
	out := slice[:0]
	for _, s := range slice {
		if s != str {
			out = append(out, s)
		}
	}
	return out
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
