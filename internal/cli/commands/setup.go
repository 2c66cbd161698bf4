package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/history"
	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Cmd    *cobra.Command
}

// NewCommandContext collects the config and logger stored on the command
// context by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    config.GetConfig(cmd.Context()),
		Logger: config.GetLogger(cmd.Context()),
		Cmd:    cmd,
	}
}

// Context returns the command's context, never nil.
func (c *CommandContext) Context() context.Context {
	if ctx := c.Cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Format returns the lower-case output format.
func (c *CommandContext) Format() string {
	return strings.ToLower(c.Cfg.OutputFormat)
}

// StatementParser builds the dialect's parser from the profile. The
// configuration is validated first, so errors surface before any SQL is
// read.
func (c *CommandContext) StatementParser() (lineage.StatementParser, error) {
	if err := c.Cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := c.Cfg.LineageDialect()
	if err != nil {
		return nil, err
	}
	return lineage.NewStatementParser(d, c.Cfg.Profile, lineage.WithLogger(c.Logger))
}

// HistoryWindow bounds reads from the history store.
type HistoryWindow struct {
	Since  string
	Until  string
	Limit  int
	Offset int
}

func (w HistoryWindow) bounds() (time.Time, time.Time, error) {
	since, err := parseTime(w.Since)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --since: %w", err)
	}
	until, err := parseTime(w.Until)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
	}
	return since, until, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// LoadQueries reads the batch to analyze: SQL files given as arguments
// (each read as one script), else the history store when configured, else
// the history file.
func (c *CommandContext) LoadQueries(args []string, window HistoryWindow) ([]lineage.Query, error) {
	if len(args) > 0 {
		queries := make([]lineage.Query, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			queries = append(queries, lineage.Query{SQL: string(data)})
		}
		return queries, nil
	}

	entries, err := c.LoadHistory(window)
	if err != nil {
		return nil, err
	}
	return history.Queries(entries), nil
}

// LoadHistory reads cached entries from the store when configured, else
// from the history file.
func (c *CommandContext) LoadHistory(window HistoryWindow) ([]history.Entry, error) {
	if c.Cfg.History.Store == "" {
		return history.LoadFile(c.Cfg.History.Path, c.Logger)
	}

	since, until, err := window.bounds()
	if err != nil {
		return nil, err
	}
	store, err := c.OpenStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return store.Entries(c.Context(), since, until, window.Limit, window.Offset)
}

// OpenStore opens and migrates the configured history store.
func (c *CommandContext) OpenStore() (*history.SQLiteStore, error) {
	if c.Cfg.History.Store == "" {
		return nil, fmt.Errorf("no history store configured\nHint: set history.store in leaplineage.yaml or pass --store")
	}
	if dir := filepath.Dir(c.Cfg.History.Store); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	store := history.NewSQLiteStore()
	if err := store.Open(c.Cfg.History.Store); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func addWindowFlags(cmd *cobra.Command, w *HistoryWindow) {
	cmd.Flags().StringVar(&w.Since, "since", "", "Only queries at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&w.Until, "until", "", "Only queries before this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&w.Limit, "limit", 0, "Max queries to read from the store (0 = unlimited)")
	cmd.Flags().IntVar(&w.Offset, "offset", 0, "Queries to skip in the store")
}
