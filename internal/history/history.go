// Package history caches warehouse query history for offline lineage runs.
//
// Entries are kept either in a JSON file, holding a list of bare query
// strings or of records carrying the query's context, or in a SQLite store
// for time-bounded, paginated reads.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

// Entry is one cached query and the context it ran in.
type Entry struct {
	Query   string
	Context *lineage.QueryContext
}

// record is the on-disk shape of an Entry: the context fields plus
// raw_query_text. "query" is read as an alias and never written.
type record struct {
	RawQueryText string `json:"raw_query_text"`
	Query        string `json:"query,omitempty"`
	lineage.QueryContextRecord
}

// MarshalJSON encodes e as a flat record.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{RawQueryText: e.Query, QueryContextRecord: e.Context.Record()})
}

// UnmarshalJSON accepts either a bare query string or a record.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var q string
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		*e = Entry{Query: q}
		return nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	query := rec.RawQueryText
	if query == "" {
		query = rec.Query
	}
	if query == "" {
		return errors.New("history record has no raw_query_text")
	}
	*e = Entry{Query: query, Context: rec.QueryContextRecord.Context()}
	return nil
}

// LoadFile reads a history file. A missing file or a malformed document
// yields no entries and a warning; malformed entries are skipped one by one.
// Only unexpected I/O failures are returned as errors.
func LoadFile(path string, logger *slog.Logger) ([]Entry, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("query history file not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("query history file is not a JSON list", "path", path, "error", err)
		return nil, nil
	}

	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			logger.Warn("skipping malformed history entry", "path", path, "index", i, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveFile writes entries as a list of records, creating parent directories.
func SaveFile(path string, entries []Entry) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// Queries converts entries into a batch for lineage.ParseAll.
func Queries(entries []Entry) []lineage.Query {
	queries := make([]lineage.Query, 0, len(entries))
	for _, e := range entries {
		queries = append(queries, lineage.Query{SQL: e.Query, Context: e.Context})
	}
	return queries
}
