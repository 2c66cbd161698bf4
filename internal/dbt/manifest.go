// Package dbt reads dbt artifacts and drives per-model column lineage.
package dbt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Resource types that carry compiled SQL.
const (
	ResourceModel    = "model"
	ResourceSnapshot = "snapshot"
	ResourceSeed     = "seed"
	ResourceSource   = "source"
)

// DependsOn lists the unique IDs a node reads from.
type DependsOn struct {
	Nodes []string `json:"nodes"`
}

// ManifestNode is the subset of a manifest.json node used for lineage.
type ManifestNode struct {
	UniqueID     string    `json:"unique_id"`
	Name         string    `json:"name"`
	ResourceType string    `json:"resource_type"`
	Database     string    `json:"database"`
	Schema       string    `json:"schema"`
	Alias        string    `json:"alias"`
	CompiledSQL  string    `json:"compiled_sql"`
	CompiledCode string    `json:"compiled_code"`
	OriginalPath string    `json:"original_file_path"`
	PatchPath    string    `json:"patch_path"`
	DependsOn    DependsOn `json:"depends_on"`
}

// Compiled returns the compiled SQL, preferring the newer compiled_code key.
func (n ManifestNode) Compiled() string {
	if n.CompiledCode != "" {
		return n.CompiledCode
	}
	return n.CompiledSQL
}

// RelationName returns the lower-case database.schema.identifier of the
// relation the node materializes.
func (n ManifestNode) RelationName() string {
	identifier := n.Alias
	if identifier == "" {
		identifier = n.Name
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Database, n.Schema, identifier} {
		if p != "" {
			parts = append(parts, strings.ToLower(p))
		}
	}
	return strings.Join(parts, ".")
}

// Manifest is the subset of manifest.json used for lineage.
type Manifest struct {
	Nodes   map[string]ManifestNode `json:"nodes"`
	Sources map[string]ManifestNode `json:"sources"`
}

// Models returns the unique IDs of nodes with compiled SQL, sorted.
func (m *Manifest) Models() []string {
	var ids []string
	for id, n := range m.Nodes {
		if (n.ResourceType == ResourceModel || n.ResourceType == ResourceSnapshot) && n.Compiled() != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Node looks a unique ID up among nodes and sources.
func (m *Manifest) Node(id string) (ManifestNode, bool) {
	if n, ok := m.Nodes[id]; ok {
		return n, true
	}
	n, ok := m.Sources[id]
	return n, ok
}

// CatalogColumn is a column entry of catalog.json.
type CatalogColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// CatalogMetadata identifies the relation a catalog node describes.
type CatalogMetadata struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

// CatalogNode is a relation entry of catalog.json.
type CatalogNode struct {
	UniqueID string                   `json:"unique_id"`
	Metadata CatalogMetadata          `json:"metadata"`
	Columns  map[string]CatalogColumn `json:"columns"`
}

// ColumnNames returns the node's column names in declaration order.
func (n CatalogNode) ColumnNames() []string {
	cols := make([]CatalogColumn, 0, len(n.Columns))
	for key, c := range n.Columns {
		if c.Name == "" {
			c.Name = key
		}
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Index != cols[j].Index {
			return cols[i].Index < cols[j].Index
		}
		return cols[i].Name < cols[j].Name
	})

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Catalog is the subset of catalog.json used for lineage.
type Catalog struct {
	Nodes   map[string]CatalogNode `json:"nodes"`
	Sources map[string]CatalogNode `json:"sources"`
}

// Node looks a unique ID up among nodes and sources.
func (c *Catalog) Node(id string) (CatalogNode, bool) {
	if c == nil {
		return CatalogNode{}, false
	}
	if n, ok := c.Nodes[id]; ok {
		return n, true
	}
	n, ok := c.Sources[id]
	return n, ok
}

// LoadManifest reads a manifest.json file.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := loadJSON(path, &m); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	for id, n := range m.Nodes {
		if n.UniqueID == "" {
			n.UniqueID = id
			m.Nodes[id] = n
		}
	}
	for id, n := range m.Sources {
		if n.UniqueID == "" {
			n.UniqueID = id
			m.Sources[id] = n
		}
	}
	return &m, nil
}

// LoadCatalog reads a catalog.json file.
func LoadCatalog(path string) (*Catalog, error) {
	var c Catalog
	if err := loadJSON(path, &c); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return &c, nil
}

// LoadArtifacts reads manifest.json and catalog.json concurrently. The first
// failure cancels the other read.
func LoadArtifacts(ctx context.Context, manifestPath, catalogPath string) (*Manifest, *Catalog, error) {
	var (
		m *Manifest
		c *Catalog
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		m, err = LoadManifest(manifestPath)
		return err
	})
	eg.Go(func() error {
		if err := egctx.Err(); err != nil {
			return err
		}
		var err error
		c, err = LoadCatalog(catalogPath)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return m, c, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // artifact paths come from configuration
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
