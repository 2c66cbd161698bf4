// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// Project files written by SetupTestProject, relative to its root.
const (
	InsertSQL    = "etl.sql"
	DropSQL      = "drop.sql"
	HistoryFile  = "history.json"
	ManifestFile = "target/manifest.json"
	CatalogFile  = "target/catalog.json"
	SchemaFile   = "models/schema.yml"
)

const configYAML = `profile:
  database_name: db1
  schema_name: sc1
dialect: generic
history:
  path: history.json
dbt:
  manifest: target/manifest.json
  catalog: target/catalog.json
`

const historyJSON = `[
  "insert into target_table (select c from source_table)",
  {
    "raw_query_text": "insert into report select * from target_table",
    "queried_database": "db1",
    "queried_schema": "sc1",
    "query_time": "2024-06-01T10:00:00Z",
    "query_type": "INSERT",
    "user": "etl"
  },
  {
    "raw_query_text": "drop table t1",
    "queried_schema": "sc1",
    "query_time": "2024-06-02T10:00:00Z",
    "query_type": "DROP"
  }
]`

const manifestJSON = `{
  "nodes": {
    "model.shop.stg_orders": {
      "name": "stg_orders",
      "resource_type": "model",
      "database": "db1",
      "schema": "sc1",
      "compiled_code": "select id as order_id, amount from db1.raw.orders",
      "patch_path": "shop://models/schema.yml",
      "depends_on": {"nodes": ["source.shop.raw.orders"]}
    }
  },
  "sources": {
    "source.shop.raw.orders": {"name": "orders", "resource_type": "source", "database": "db1", "schema": "raw"}
  }
}`

const catalogJSON = `{
  "nodes": {},
  "sources": {
    "source.shop.raw.orders": {
      "metadata": {"database": "db1", "schema": "raw", "name": "orders"},
      "columns": {
        "ID": {"name": "ID", "index": 1},
        "AMOUNT": {"name": "AMOUNT", "index": 2}
      }
    }
  }
}`

const schemaYAML = `version: 2
models:
  - name: stg_orders
    # staged orders
    columns:
      - name: order_id
`

// SetupTestProject creates a temporary project with a leaplineage.yaml
// (profile db1.sc1), SQL scripts, a query history file and dbt artifacts.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	files := map[string]string{
		"leaplineage.yaml": configYAML,
		InsertSQL:          "insert into target_table (select c from source_table)",
		DropSQL:            "drop table t1",
		HistoryFile:        historyJSON,
		ManifestFile:       manifestJSON,
		CatalogFile:        catalogJSON,
		SchemaFile:         schemaYAML,
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750), "failed to create directory for %s", name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600), "failed to create %s", name)
	}

	return tmpDir
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	require.False(t, ansiPattern.MatchString(s), "string contains ANSI escape codes: %q", s)
}
