package graph

import (
	"fmt"
	"strings"
)

// Direction selects which edges Filter follows.
type Direction int

// Filter directions.
const (
	DirectionBoth Direction = iota
	DirectionUpstream
	DirectionDownstream
)

func (d Direction) String() string {
	switch d {
	case DirectionUpstream:
		return "upstream"
	case DirectionDownstream:
		return "downstream"
	default:
		return "both"
	}
}

// ParseDirection parses "upstream", "downstream" or "both".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upstream", "up":
		return DirectionUpstream, nil
	case "downstream", "down":
		return DirectionDownstream, nil
	case "both", "":
		return DirectionBoth, nil
	default:
		return DirectionBoth, fmt.Errorf("unknown direction %q (want upstream, downstream or both)", s)
	}
}

// Filter returns the subgraph induced by the nodes reachable from node in
// the given direction within depth hops. A nil depth is unbounded. For
// DirectionBoth the upstream and downstream walks are bounded
// independently. An unknown node yields an empty graph.
func (g *LineageGraph) Filter(node string, dir Direction, depth *int) *LineageGraph {
	if !g.HasNode(node) {
		return New(g.includeIsolated)
	}

	ids := []string{node}
	if dir == DirectionUpstream || dir == DirectionBoth {
		ids = append(ids, g.GetUpstreamNodes(node, depth)...)
	}
	if dir == DirectionDownstream || dir == DirectionBoth {
		ids = append(ids, g.GetDownstreamNodes(node, depth)...)
	}
	return g.Subgraph(ids)
}

// GetUpstreamNodes returns the nodes that feed id within depth hops,
// sorted. A nil depth is unbounded.
func (g *LineageGraph) GetUpstreamNodes(id string, depth *int) []string {
	return g.reachable(id, g.parents, depth)
}

// GetDownstreamNodes returns the nodes fed by id within depth hops, sorted.
// A nil depth is unbounded.
func (g *LineageGraph) GetDownstreamNodes(id string, depth *int) []string {
	return g.reachable(id, g.edges, depth)
}

func (g *LineageGraph) reachable(id string, adjacency map[string][]string, depth *int) []string {
	seen := g.walk(id, adjacency, depth)
	delete(seen, id)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return sorted(out)
}

// walk runs a breadth-first search from start over adjacency and returns
// every node within depth hops, start included.
func (g *LineageGraph) walk(start string, adjacency map[string][]string, depth *int) map[string]bool {
	seen := map[string]bool{start: true}
	frontier := []string{start}
	for hops := 0; len(frontier) > 0; hops++ {
		if depth != nil && hops >= *depth {
			break
		}
		var next []string
		for _, id := range frontier {
			for _, n := range adjacency[id] {
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}
	return seen
}
