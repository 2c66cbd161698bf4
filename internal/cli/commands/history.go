package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/history"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the query history cache",
		Long: `Move cached query history between JSON files and the SQLite history store.

The JSON file holds either a list of query strings or a list of records with
a "raw_query_text" key ("query" is also read) and the query's context
(queried_database, queried_schema, query_time, query_type, destination_table,
referenced_tables, duration_ms, user, role).`,
	}

	cmd.AddCommand(newHistoryImportCommand())
	cmd.AddCommand(newHistoryExportCommand())
	cmd.AddCommand(newHistoryListCommand())

	return cmd
}

func newHistoryImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.json]",
		Short: "Load a history file into the store",
		Example: `  leaplineage history import snowflake_history.json --store .leaplineage/history.db`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewCommandContext(cmd)

			path := ctx.Cfg.History.Path
			if len(args) == 1 {
				path = args[0]
			}
			entries, err := history.LoadFile(path, ctx.Logger)
			if err != nil {
				return err
			}

			store, err := ctx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			batchID, err := store.SaveEntries(ctx.Context(), entries)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d queries (batch %s)\n", len(entries), batchID)
			return nil
		},
	}
}

func newHistoryExportCommand() *cobra.Command {
	window := &HistoryWindow{}
	cmd := &cobra.Command{
		Use:   "export [file.json]",
		Short: "Write stored history to a file",
		Example: `  leaplineage history export recent.json --since 2024-06-01 --limit 1000`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewCommandContext(cmd)
			if ctx.Cfg.History.Store == "" {
				return fmt.Errorf("no history store configured\nHint: set history.store in leaplineage.yaml or pass --store")
			}

			path := ctx.Cfg.History.Path
			if len(args) == 1 {
				path = args[0]
			}
			entries, err := ctx.LoadHistory(*window)
			if err != nil {
				return err
			}
			if err := history.SaveFile(path, entries); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d queries to %s\n", len(entries), path)
			return nil
		},
	}
	addWindowFlags(cmd, window)
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	window := &HistoryWindow{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := NewCommandContext(cmd)
			entries, err := ctx.LoadHistory(*window)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.Format() == "json" {
				if entries == nil {
					entries = []history.Entry{}
				}
				return renderJSON(out, entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				at := ""
				if t := e.Context.QueryTime(); !t.IsZero() {
					at = t.UTC().Format(time.RFC3339)
				}
				rows = append(rows, []string{at, e.Context.QueryType(), e.Context.User(), truncate(e.Query, 80)})
			}
			renderTable(out, []string{"Time", "Type", "User", "Query"}, rows)
			return nil
		},
	}
	addWindowFlags(cmd, window)
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
