package dbt

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/testutil"
)

const manifestJSON = `{
  "nodes": {
    "model.shop.fct_orders": {
      "name": "fct_orders",
      "resource_type": "model",
      "database": "DB",
      "schema": "analytics",
      "compiled_code": "select order_id, name as customer_name from db.analytics.stg_orders s join db.raw.customers c on s.customer_id = c.id",
      "patch_path": "shop://models/marts/schema.yml",
      "depends_on": {"nodes": ["model.shop.stg_orders", "source.shop.raw.customers"]}
    },
    "model.shop.stg_orders": {
      "name": "stg_orders",
      "resource_type": "model",
      "database": "db",
      "schema": "analytics",
      "compiled_sql": "select id as order_id, customer_id, amount from db.raw.orders",
      "depends_on": {"nodes": ["source.shop.raw.orders"]}
    },
    "model.shop.broken": {
      "name": "broken",
      "resource_type": "model",
      "database": "db",
      "schema": "analytics",
      "compiled_code": "select from (",
      "depends_on": {"nodes": []}
    },
    "seed.shop.countries": {
      "name": "countries",
      "resource_type": "seed",
      "database": "db",
      "schema": "analytics",
      "depends_on": {"nodes": []}
    }
  },
  "sources": {
    "source.shop.raw.orders": {"name": "orders", "resource_type": "source", "database": "db", "schema": "raw"},
    "source.shop.raw.customers": {"name": "customers", "resource_type": "source", "database": "db", "schema": "raw"}
  }
}`

const catalogJSON = `{
  "nodes": {},
  "sources": {
    "source.shop.raw.orders": {
      "metadata": {"database": "db", "schema": "raw", "name": "orders"},
      "columns": {
        "ID": {"name": "ID", "index": 1},
        "CUSTOMER_ID": {"name": "CUSTOMER_ID", "index": 2},
        "AMOUNT": {"name": "AMOUNT", "index": 3}
      }
    },
    "source.shop.raw.customers": {
      "metadata": {"database": "db", "schema": "raw", "name": "customers"},
      "columns": {
        "ID": {"name": "ID", "index": 1},
        "NAME": {"name": "NAME", "index": 2}
      }
    }
  }
}`

func writeArtifacts(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.json")
	catalog := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestJSON), 0600))
	require.NoError(t, os.WriteFile(catalog, []byte(catalogJSON), 0600))
	return manifest, catalog
}

func TestLoadManifest(t *testing.T) {
	manifestPath, _ := writeArtifacts(t)

	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"model.shop.broken", "model.shop.fct_orders", "model.shop.stg_orders"}, m.Models())

	stg := m.Nodes["model.shop.stg_orders"]
	assert.Equal(t, "model.shop.stg_orders", stg.UniqueID)
	assert.Equal(t, "select id as order_id, customer_id, amount from db.raw.orders", stg.Compiled())
	assert.Equal(t, "db.analytics.fct_orders", m.Nodes["model.shop.fct_orders"].RelationName())

	src, ok := m.Node("source.shop.raw.orders")
	require.True(t, ok)
	assert.Equal(t, "db.raw.orders", src.RelationName())
}

func TestLoadArtifacts_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0600))

	_, err := LoadManifest(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to load manifest")
	_, err = LoadCatalog(bad)
	assert.ErrorContains(t, err, "failed to load catalog")
}

func TestCatalogNode_ColumnNames(t *testing.T) {
	_, catalogPath := writeArtifacts(t)
	c, err := LoadCatalog(catalogPath)
	require.NoError(t, err)

	node, ok := c.Node("source.shop.raw.orders")
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "CUSTOMER_ID", "AMOUNT"}, node.ColumnNames())

	_, ok = (*Catalog)(nil).Node("x")
	assert.False(t, ok)
}

func TestColumnLineage(t *testing.T) {
	manifestPath, catalogPath := writeArtifacts(t)
	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	c, err := LoadCatalog(catalogPath)
	require.NoError(t, err)
	logger, logs := testutil.NewCaptureLogger()

	models, err := ColumnLineage(m, c, nil, logger)
	require.NoError(t, err)

	require.Contains(t, models, "model.shop.stg_orders")
	assert.Equal(t, map[string][]string{
		"order_id":    {"db.raw.orders.id"},
		"customer_id": {"db.raw.orders.customer_id"},
		"amount":      {"db.raw.orders.amount"},
	}, models["model.shop.stg_orders"].Columns.Columns())

	require.Contains(t, models, "model.shop.fct_orders")
	fct := models["model.shop.fct_orders"]
	assert.Equal(t, "db.analytics.fct_orders", fct.Relation)
	assert.Equal(t, "shop://models/marts/schema.yml", fct.PatchPath)
	assert.Equal(t, map[string][]string{
		"order_id":      {"db.analytics.stg_orders.order_id"},
		"customer_name": {"db.raw.customers.name"},
	}, fct.Columns.Columns())

	assert.NotContains(t, models, "model.shop.broken")
	assert.Contains(t, logs.String(), "skipping model")
	assert.Contains(t, logs.String(), "failed=1")
}

func TestColumnGraph(t *testing.T) {
	manifestPath, catalogPath := writeArtifacts(t)
	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	c, err := LoadCatalog(catalogPath)
	require.NoError(t, err)

	models, err := ColumnLineage(m, c, nil, testutil.NewTestLogger(t))
	require.NoError(t, err)

	g := ColumnGraph(models)
	assert.Equal(t,
		[]string{"db.analytics.stg_orders.order_id", "db.raw.orders.id"},
		g.GetUpstreamNodes("db.analytics.fct_orders.order_id", nil))
}

func TestDependencyGraph(t *testing.T) {
	manifestPath, _ := writeArtifacts(t)
	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)

	g := DependencyGraph(m)
	order, err := g.TopologicalSort()
	require.NoError(t, err)

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	assert.Less(t, index["model.shop.stg_orders"], index["model.shop.fct_orders"])
	assert.Less(t, index["source.shop.raw.orders"], index["model.shop.stg_orders"])
	assert.True(t, g.HasNode("model.shop.broken"))
}

func TestLoadArtifacts(t *testing.T) {
	manifestPath, catalogPath := writeArtifacts(t)

	m, c, err := LoadArtifacts(context.Background(), manifestPath, catalogPath)
	require.NoError(t, err)
	assert.Len(t, m.Models(), 3)
	_, ok := c.Node("source.shop.raw.customers")
	assert.True(t, ok)

	_, _, err = LoadArtifacts(context.Background(), manifestPath, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to load catalog")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = LoadArtifacts(ctx, filepath.Join(t.TempDir(), "missing.json"), catalogPath)
	assert.Error(t, err)
}
