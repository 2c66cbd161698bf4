package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

func statement(sources, targets []string) *lineage.ParsedStatement {
	ps := lineage.NewParsedStatement()
	for _, s := range sources {
		ps.Sources.Add(s)
	}
	for _, t := range targets {
		ps.Targets.Add(t)
	}
	return ps
}

func pathGraph(n int) *LineageGraph {
	g := New(false)
	for i := 0; i < n-1; i++ {
		_ = g.AddEdge(fmt.Sprint(i), fmt.Sprint(i+1))
	}
	return g
}

func intPtr(i int) *int { return &i }

func nodeAttrs(g *LineageGraph, id string) map[string]string {
	for _, n := range g.GetAllNodes() {
		if n.ID == id {
			return n.Attrs
		}
	}
	return nil
}

func TestLineageGraph_AddNodeAndEdge(t *testing.T) {
	g := New(true)
	g.AddNode("a", map[string]string{"title": "A"})

	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.True(t, g.HasEdge("a", "b"))
	assert.Equal(t, []string{"a"}, g.GetParents("b"))
	assert.Equal(t, []string{"c"}, g.GetChildren("b"))

	assert.Equal(t, "A", nodeAttrs(g, "a")["title"])

	assert.Error(t, g.AddEdge("a", "a"))
}

func TestLineageGraph_Ingest(t *testing.T) {
	t.Run("connected statements become edges", func(t *testing.T) {
		g := New(false)
		g.Ingest([]*lineage.ParsedStatement{
			statement([]string{"s1", "s2"}, []string{"t"}),
			statement([]string{"only_source"}, nil),
			nil,
		})

		nodes, edges := g.Export()
		assert.Equal(t, []string{"s1", "s2", "t"}, nodes)
		assert.Equal(t, []Edge{{"s1", "t"}, {"s2", "t"}}, edges)
	})

	t.Run("one-sided statements kept when isolated nodes are wanted", func(t *testing.T) {
		g := New(true)
		g.Ingest([]*lineage.ParsedStatement{
			statement([]string{"only_source"}, nil),
			statement(nil, []string{"only_target"}),
		})

		nodes, edges := g.Export()
		assert.Equal(t, []string{"only_source", "only_target"}, nodes)
		assert.Empty(t, edges)
	})

	t.Run("table feeding itself adds nothing", func(t *testing.T) {
		for _, includeIsolated := range []bool{false, true} {
			g := New(includeIsolated)
			g.Ingest([]*lineage.ParsedStatement{statement([]string{"t"}, []string{"t"})})

			assert.Equal(t, 0, g.NodeCount(), "include isolated %v", includeIsolated)
			assert.Equal(t, 0, g.EdgeCount(), "include isolated %v", includeIsolated)
		}
	})

	t.Run("renames and drops apply in order", func(t *testing.T) {
		g := New(false)
		rename := lineage.NewParsedStatement()
		rename.AddRename("b", "b2")
		drop := lineage.NewParsedStatement()
		drop.Dropped.Add("c")

		g.Ingest([]*lineage.ParsedStatement{
			statement([]string{"a"}, []string{"b"}),
			statement([]string{"b"}, []string{"c"}),
			rename,
			drop,
		})

		nodes, edges := g.Export()
		assert.Equal(t, []string{"a", "b2"}, nodes)
		assert.Equal(t, []Edge{{"a", "b2"}}, edges)
	})
}

func TestLineageGraph_Relabel(t *testing.T) {
	g := New(false)
	_ = g.AddEdge("up", "old")
	_ = g.AddEdge("old", "down")
	g.AddNode("old", map[string]string{"title": "kept"})

	g.Relabel("old", "new")

	assert.False(t, g.HasNode("old"))
	assert.True(t, g.HasEdge("up", "new"))
	assert.True(t, g.HasEdge("new", "down"))
	assert.Equal(t, "kept", nodeAttrs(g, "new")["title"])

	filtered := g.Filter("new", DirectionBoth, nil)
	_, edges := filtered.Export()
	assert.Equal(t, []Edge{{"new", "down"}, {"up", "new"}}, edges)

	t.Run("merges into existing node", func(t *testing.T) {
		g := New(false)
		_ = g.AddEdge("a", "x")
		_ = g.AddEdge("x", "y")
		g.Relabel("x", "y")

		nodes, edges := g.Export()
		assert.Equal(t, []string{"a", "y"}, nodes)
		assert.Equal(t, []Edge{{"a", "y"}}, edges)
	})

	t.Run("unknown node is a no-op", func(t *testing.T) {
		g := pathGraph(3)
		g.Relabel("missing", "other")
		assert.Equal(t, 3, g.NodeCount())
	})
}

func TestLineageGraph_RemoveNode(t *testing.T) {
	t.Run("prunes neighbours left without edges", func(t *testing.T) {
		g := New(false)
		_ = g.AddEdge("s", "t")

		g.RemoveNode("t")

		assert.Equal(t, 0, g.NodeCount())
	})

	t.Run("keeps neighbours that still have edges", func(t *testing.T) {
		g := New(false)
		_ = g.AddEdge("a", "x")
		_ = g.AddEdge("b", "x")
		_ = g.AddEdge("b", "c")

		g.RemoveNode("x")

		nodes, edges := g.Export()
		assert.Equal(t, []string{"b", "c"}, nodes)
		assert.Equal(t, []Edge{{"b", "c"}}, edges)
	})

	t.Run("pre-existing isolated nodes survive", func(t *testing.T) {
		g := New(false)
		g.AddNode("lonely", nil)
		_ = g.AddEdge("s", "t")

		g.RemoveNode("s")

		nodes, _ := g.Export()
		assert.Equal(t, []string{"lonely"}, nodes)
	})

	t.Run("isolated policy removes exactly the node", func(t *testing.T) {
		g := New(true)
		_ = g.AddEdge("s", "t")

		g.RemoveNode("t")

		nodes, edges := g.Export()
		assert.Equal(t, []string{"s"}, nodes)
		assert.Empty(t, edges)
	})

	t.Run("absent node is a no-op", func(t *testing.T) {
		g := pathGraph(3)
		g.RemoveNode("missing")
		assert.Equal(t, 3, g.NodeCount())
	})
}

func TestLineageGraph_RemoveNodeLeavesNoNewSingletons(t *testing.T) {
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"e", "c"}, {"f", "g"}}
	for _, victim := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		t.Run(victim, func(t *testing.T) {
			g := New(false)
			for _, e := range edges {
				_ = g.AddEdge(e[0], e[1])
			}

			g.RemoveNode(victim)

			for _, node := range g.GetAllNodes() {
				assert.NotZero(t, g.Degree(node.ID), "node %s left isolated", node.ID)
			}
		})
	}
}

func TestLineageGraph_Filter(t *testing.T) {
	tests := []struct {
		name  string
		node  string
		dir   Direction
		depth *int
		want  []Edge
	}{
		{
			name:  "downstream one hop",
			node:  "3",
			dir:   DirectionDownstream,
			depth: intPtr(1),
			want:  []Edge{{"3", "4"}},
		},
		{
			name:  "upstream two hops",
			node:  "3",
			dir:   DirectionUpstream,
			depth: intPtr(2),
			want:  []Edge{{"1", "2"}, {"2", "3"}},
		},
		{
			name:  "both bounded independently",
			node:  "2",
			dir:   DirectionBoth,
			depth: intPtr(1),
			want:  []Edge{{"1", "2"}, {"2", "3"}},
		},
		{
			name: "unbounded downstream",
			node: "2",
			dir:  DirectionDownstream,
			want: []Edge{{"2", "3"}, {"3", "4"}},
		},
		{
			name:  "zero depth keeps only the node",
			node:  "2",
			dir:   DirectionBoth,
			depth: intPtr(0),
			want:  []Edge{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := pathGraph(5)

			_, edges := g.Filter(tt.node, tt.dir, tt.depth).Export()
			assert.Equal(t, tt.want, edges)
		})
	}

	t.Run("unknown node", func(t *testing.T) {
		assert.Equal(t, 0, pathGraph(5).Filter("9", DirectionBoth, nil).NodeCount())
	})
}

func TestLineageGraph_FilterDepthBound(t *testing.T) {
	g := New(false)
	for _, e := range [][2]string{{"r", "a"}, {"a", "b"}, {"b", "c"}, {"r", "c"}, {"c", "d"}} {
		_ = g.AddEdge(e[0], e[1])
	}
	shortest := map[string]int{"r": 0, "a": 1, "c": 1, "b": 2, "d": 2}

	for k := 0; k <= 3; k++ {
		nodes, _ := g.Filter("r", DirectionDownstream, intPtr(k)).Export()
		for _, n := range nodes {
			assert.LessOrEqual(t, shortest[n], k, "depth %d included %s", k, n)
		}
		for n, dist := range shortest {
			if dist <= k {
				assert.Contains(t, nodes, n, "depth %d missing %s", k, n)
			}
		}
	}
}

func TestLineageGraph_TopologicalSort(t *testing.T) {
	g := New(false)
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, []string{"a", "b"}, g.GetRoots())
	assert.Equal(t, []string{"d"}, g.GetLeaves())
	assert.Equal(t, []string{"a", "b", "c"}, g.GetUpstreamNodes("d", nil))
	assert.Equal(t, []string{"c"}, g.GetUpstreamNodes("d", intPtr(1)))
	assert.Equal(t, []string{"c", "d"}, g.GetDownstreamNodes("b", nil))
	assert.Empty(t, g.GetDownstreamNodes("b", intPtr(0)))

	_ = g.AddEdge("d", "a")
	hasCycle, path := g.HasCycle()
	assert.True(t, hasCycle)
	assert.NotEmpty(t, path)
	_, err = g.TopologicalSort()
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{
		"upstream": DirectionUpstream, "DOWN": DirectionDownstream, "": DirectionBoth, "both": DirectionBoth,
	} {
		got, err := ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}
