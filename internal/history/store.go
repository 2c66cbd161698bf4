package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore persists query history in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store that is not yet opened.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens the database at path. Use ":memory:" for an in-memory store.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs all pending migrations.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveEntries stores entries in one transaction under a fresh batch ID,
// which it returns.
func (s *SQLiteStore) SaveEntries(ctx context.Context, entries []Entry) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	batchID := uuid.New().String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, e := range entries {
		contextJSON, err := json.Marshal(e.Context.Record())
		if err != nil {
			return "", fmt.Errorf("failed to encode context for entry %d: %w", i, err)
		}

		var queryTime sql.NullInt64
		if t := e.Context.QueryTime(); !t.IsZero() {
			queryTime = sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO query_history (batch_id, query_text, query_time_ms, context) VALUES (?, ?, ?, ?)`,
			batchID, e.Query, queryTime, string(contextJSON),
		); err != nil {
			return "", fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit history: %w", err)
	}
	return batchID, nil
}

// Entries returns stored entries ordered by query time. Zero since or until
// leave that side unbounded; limit <= 0 returns everything after offset.
func (s *SQLiteStore) Entries(ctx context.Context, since, until time.Time, limit, offset int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var (
		where []string
		args  []any
	)
	if !since.IsZero() {
		where = append(where, "query_time_ms >= ?")
		args = append(args, since.UnixMilli())
	}
	if !until.IsZero() {
		where = append(where, "query_time_ms < ?")
		args = append(args, until.UnixMilli())
	}

	query := `SELECT query_text, context FROM query_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY query_time_ms, id LIMIT ? OFFSET ?"
	args = append(args, limit, max(offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			text        string
			contextJSON sql.NullString
		)
		if err := rows.Scan(&text, &contextJSON); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		e := Entry{Query: text}
		if contextJSON.Valid && contextJSON.String != "" {
			var rec record
			if err := json.Unmarshal([]byte(contextJSON.String), &rec.QueryContextRecord); err != nil {
				return nil, fmt.Errorf("failed to decode context: %w", err)
			}
			e.Context = rec.QueryContextRecord.Context()
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return entries, nil
}
