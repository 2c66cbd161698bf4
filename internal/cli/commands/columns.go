package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/dbt"
	"github.com/leapstack-labs/leaplineage/internal/export"
)

// ColumnsOptions holds options for the columns command.
type ColumnsOptions struct {
	Model       string
	WriteSchema bool
	Name        string
}

// ColumnRow is the JSON shape of one model's column lineage.
type ColumnRow struct {
	Model   string              `json:"model"`
	Columns map[string][]string `json:"columns"`
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand() *cobra.Command {
	opts := &ColumnsOptions{}

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Show column lineage of dbt models",
		Long: `Trace every output column of each compiled dbt model back to the upstream
columns it is derived from. Models are read from manifest.json and upstream
columns from catalog.json; models are resolved parents first so each model's
columns are known to its dependents.

A model whose SQL cannot be analyzed is skipped; run with --verbose to see why.`,
		Example: `  # Column lineage of every model
  leaplineage columns --manifest target/manifest.json --catalog target/catalog.json

  # One model, as JSON
  leaplineage columns --model fct_orders -o json

  # Write lineage into the models' schema files under meta.lineage
  leaplineage columns --write-schema --project-dir .`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runColumns(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "Only this model (name or unique id)")
	cmd.Flags().BoolVar(&opts.WriteSchema, "write-schema", false, "Write lineage into each model's schema file")
	cmd.Flags().StringVar(&opts.Name, "name", "column_lineage", "Graph name for DOT output")

	return cmd
}

func runColumns(cmd *cobra.Command, opts *ColumnsOptions) error {
	ctx := NewCommandContext(cmd)

	d, err := ctx.Cfg.LineageDialect()
	if err != nil {
		return err
	}
	if err := config.ValidateArtifacts(ctx.Cfg); err != nil {
		return err
	}
	manifest, catalog, err := dbt.LoadArtifacts(ctx.Context(), ctx.Cfg.Dbt.Manifest, ctx.Cfg.Dbt.Catalog)
	if err != nil {
		return err
	}

	models, err := dbt.ColumnLineage(manifest, catalog, d.SQL(), ctx.Logger)
	if err != nil {
		return err
	}
	if opts.Model != "" {
		models = selectModel(models, opts.Model)
		if len(models) == 0 {
			return fmt.Errorf("model not found or not resolvable: %s", opts.Model)
		}
	}

	if opts.WriteSchema {
		if err := writeSchemas(ctx, models); err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := cmd.OutOrStdout()
	switch ctx.Format() {
	case "json":
		rows := make([]ColumnRow, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, ColumnRow{Model: models[id].Relation, Columns: models[id].Columns.Columns()})
		}
		return renderJSON(out, rows)
	case "text":
		var rows [][]string
		for _, id := range ids {
			cols := models[id].Columns.Columns()
			names := make([]string, 0, len(cols))
			for name := range cols {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				rows = append(rows, []string{models[id].Name, name, joinList(cols[name])})
			}
		}
		renderTable(out, []string{"Model", "Column", "Sources"}, rows)
		return nil
	default:
		return export.Write(out, ctx.Format(), opts.Name, dbt.ColumnGraph(models))
	}
}

func selectModel(models map[string]*dbt.ModelLineage, want string) map[string]*dbt.ModelLineage {
	for id, ml := range models {
		if id == want || strings.EqualFold(ml.Name, want) || strings.EqualFold(ml.Relation, want) {
			return map[string]*dbt.ModelLineage{id: ml}
		}
	}
	return nil
}

// writeSchemas injects each model's lineage into the schema file named by
// its patch_path, relative to the dbt project directory.
func writeSchemas(ctx *CommandContext, models map[string]*dbt.ModelLineage) error {
	root := ctx.Cfg.Dbt.ProjectDir
	if root == "" {
		root = ctx.Cfg.ProjectRoot
	}

	for _, ml := range models {
		if ml.PatchPath == "" || len(ml.Columns) == 0 {
			ctx.Logger.Debug("no schema file for model", "model", ml.UniqueID)
			continue
		}
		rel := ml.PatchPath
		if i := strings.Index(rel, "://"); i >= 0 {
			rel = rel[i+3:]
		}
		path := filepath.Join(root, filepath.FromSlash(rel))

		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("failed to read schema file for %s: %w", ml.Name, err)
		}
		updated, err := export.InjectColumnLineage(data, ml.Name, ml.Columns.Columns())
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := os.WriteFile(path, updated, 0600); err != nil {
			return fmt.Errorf("failed to write schema file for %s: %w", ml.Name, err)
		}
		ctx.Logger.Info("wrote column lineage", "model", ml.Name, "path", path)
	}
	return nil
}
