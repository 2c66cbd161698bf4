package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entryAt(query string, at time.Time) Entry {
	return Entry{
		Query:   query,
		Context: lineage.NewQueryContext(lineage.WithQueryTime(at), lineage.WithQueriedDatabase("db")),
	}
}

func queriesOf(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Query)
	}
	return out
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "history.db")))
	require.NoError(t, store.Migrate())
	require.NoError(t, store.Migrate(), "migrations are idempotent")
	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.Error(t, store.Migrate())
	_, err := store.SaveEntries(ctx, nil)
	assert.Error(t, err)
	_, err = store.Entries(ctx, time.Time{}, time.Time{}, 0, 0)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Entries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := setupTestStore(t)
	ctx := context.Background()

	batchID, err := store.SaveEntries(ctx, []Entry{
		entryAt("q3", base.Add(3*time.Hour)),
		entryAt("q1", base.Add(1*time.Hour)),
		entryAt("q2", base.Add(2*time.Hour)),
		{Query: "untimed"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)

	tests := []struct {
		name          string
		since, until  time.Time
		limit, offset int
		want          []string
	}{
		{name: "everything", want: []string{"untimed", "q1", "q2", "q3"}},
		{name: "since", since: base.Add(2 * time.Hour), want: []string{"q2", "q3"}},
		{name: "until is exclusive", since: base, until: base.Add(2 * time.Hour), want: []string{"q1"}},
		{name: "page", since: base, limit: 1, offset: 1, want: []string{"q2"}},
		{name: "past the end", since: base, limit: 10, offset: 5, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Entries(ctx, tt.since, tt.until, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, queriesOf(entries))
		})
	}
}

func TestSQLiteStore_PreservesContext(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	qc := lineage.NewQueryContext(
		lineage.WithQueryType("create_table_as_select"),
		lineage.WithDestinationTable(&lineage.TableRef{Schema: "p.d", Name: "t"}),
		lineage.WithReferencedTables(lineage.TableRef{Schema: "p.d", Name: "s"}),
		lineage.WithDuration(2*time.Second),
	)

	_, err := store.SaveEntries(ctx, []Entry{{Query: "create table t as select * from s", Context: qc}})
	require.NoError(t, err)

	entries, err := store.Entries(ctx, time.Time{}, time.Time{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, qc.Record(), entries[0].Context.Record())
}

func TestSQLiteStore_SaveEntriesRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := &SQLiteStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO query_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO query_history").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = store.SaveEntries(context.Background(), []Entry{{Query: "a"}, {Query: "b"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "entry 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_EntriesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := &SQLiteStore{db: db}

	mock.ExpectQuery("SELECT query_text, context FROM query_history WHERE").
		WithArgs(int64(1000), -1, 0).
		WillReturnError(assert.AnError)

	_, err = store.Entries(context.Background(), time.UnixMilli(1000), time.Time{}, 0, 0)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_EntriesBadContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := &SQLiteStore{db: db}

	mock.ExpectQuery("SELECT query_text, context FROM query_history").
		WillReturnRows(sqlmock.NewRows([]string{"query_text", "context"}).AddRow("select 1", "{not json"))

	_, err = store.Entries(context.Background(), time.Time{}, time.Time{}, 0, 0)
	assert.ErrorContains(t, err, "failed to decode context")
}
