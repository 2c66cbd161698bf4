package dbt

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/graph"
	"github.com/leapstack-labs/leaplineage/pkg/dialect"
	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

// ModelLineage is the column lineage of one model.
type ModelLineage struct {
	UniqueID string
	Name     string
	Relation string
	// PatchPath is the schema file documenting the model, if any.
	PatchPath string
	Columns   lineage.ColumnDependency
}

// DependencyGraph builds the model dependency graph from depends_on.
func DependencyGraph(m *Manifest) *graph.LineageGraph {
	g := graph.New(true)
	for _, id := range m.Models() {
		n := m.Nodes[id]
		g.AddNode(id, map[string]string{"title": n.RelationName()})
		for _, dep := range n.DependsOn.Nodes {
			if dep == id {
				continue
			}
			_ = g.AddEdge(dep, id)
		}
	}
	return g
}

// ColumnLineage resolves column lineage for every model with compiled SQL,
// parents before children. Upstream columns come from the catalog; each
// resolved model also publishes its output columns for its dependents.
// A model that fails to resolve is logged at debug level and skipped.
func ColumnLineage(m *Manifest, c *Catalog, d *dialect.Dialect, logger *slog.Logger) (map[string]*ModelLineage, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	order, err := DependencyGraph(m).TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to order models: %w", err)
	}

	known := lineage.NewCatalog()
	for _, id := range order {
		n, ok := m.Node(id)
		if !ok {
			continue
		}
		if cn, ok := c.Node(id); ok {
			for _, col := range cn.ColumnNames() {
				known.AddColumn(n.RelationName(), col)
			}
		}
	}

	resolver := lineage.NewColumnLineageResolver(d, known)
	results := make(map[string]*ModelLineage)
	failed := 0
	for _, id := range order {
		n, ok := m.Nodes[id]
		if !ok || n.Compiled() == "" {
			continue
		}

		relation := n.RelationName()
		deps, err := resolver.Resolve(relation, n.Compiled())
		if err != nil {
			failed++
			logger.Debug("skipping model", "model", id, "error", err)
			continue
		}

		if _, ok := c.Node(id); !ok {
			for key := range deps {
				known.AddColumn(relation, strings.TrimPrefix(key, relation+"."))
			}
		}

		results[id] = &ModelLineage{
			UniqueID:  id,
			Name:      n.Name,
			Relation:  relation,
			PatchPath: n.PatchPath,
			Columns:   deps,
		}
	}

	logger.Info("resolved column lineage", "models", len(results), "failed", failed)
	return results, nil
}

// ColumnGraph flattens per-model lineage into a column-level graph.
func ColumnGraph(models map[string]*ModelLineage) *graph.LineageGraph {
	g := graph.New(false)
	for _, ml := range models {
		for target, sources := range ml.Columns {
			for _, src := range sources.Sorted() {
				_ = g.AddEdge(src, target)
			}
		}
	}
	return g
}
