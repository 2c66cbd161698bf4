package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

// TablesOptions holds options for the tables command.
type TablesOptions struct {
	Window HistoryWindow
}

// StatementRow is the JSON shape of one parsed statement.
type StatementRow struct {
	Sources []string         `json:"sources"`
	Targets []string         `json:"targets"`
	Dropped []string         `json:"dropped,omitempty"`
	Renamed []lineage.Rename `json:"renamed,omitempty"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables [file.sql...]",
		Short: "Show the tables each statement reads and writes",
		Long: `Parse SQL statements and list the in-scope tables each one reads (sources),
writes (targets), drops and renames.

Statements come from the SQL files given as arguments, or from the query
history cache when no files are given. Statements that fail to parse are
skipped; run with --verbose to see why.`,
		Example: `  # Analyze a script against the analytics.public profile
  leaplineage tables etl.sql --database analytics --schema public

  # Analyze cached Snowflake history from the last day
  leaplineage tables --dialect snowflake --store .leaplineage/history.db --since 2024-06-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(cmd, args, opts)
		},
	}
	addWindowFlags(cmd, &opts.Window)

	return cmd
}

func runTables(cmd *cobra.Command, args []string, opts *TablesOptions) error {
	ctx := NewCommandContext(cmd)

	parser, err := ctx.StatementParser()
	if err != nil {
		return err
	}
	queries, err := ctx.LoadQueries(args, opts.Window)
	if err != nil {
		return err
	}

	stmts := lineage.ParseAll(parser, queries, ctx.Logger)
	rows := make([]StatementRow, 0, len(stmts))
	for _, ps := range stmts {
		if ps.Empty() {
			continue
		}
		rows = append(rows, StatementRow{
			Sources: ps.Sources.Sorted(),
			Targets: ps.Targets.Sorted(),
			Dropped: ps.Dropped.Sorted(),
			Renamed: ps.Renamed,
		})
	}

	out := cmd.OutOrStdout()
	switch ctx.Format() {
	case "json":
		return renderJSON(out, rows)
	case "text":
		table := make([][]string, 0, len(rows))
		for i, r := range rows {
			renames := make([]string, 0, len(r.Renamed))
			for _, rn := range r.Renamed {
				renames = append(renames, rn.Old+" -> "+rn.New)
			}
			table = append(table, []string{
				fmt.Sprint(i + 1),
				joinList(r.Sources),
				joinList(r.Targets),
				joinList(r.Dropped),
				joinList(renames),
			})
		}
		renderTable(out, []string{"#", "Sources", "Targets", "Dropped", "Renamed"}, table)
		return nil
	default:
		return fmt.Errorf("output format %q is not supported by tables (use text or json)", ctx.Format())
	}
}
