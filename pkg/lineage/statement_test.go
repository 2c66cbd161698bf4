package lineage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/testutil"
)

var testProfile = Profile{Database: "db1", Schema: "sc1", FullTableNames: true}

func mustParser(t *testing.T, d Dialect) StatementParser {
	t.Helper()
	p, err := NewStatementParser(d, testProfile, WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	return p
}

type wantStatement struct {
	sources []string
	targets []string
	dropped []string
	renamed []Rename
}

func assertStatement(t *testing.T, want wantStatement, got *ParsedStatement) {
	t.Helper()
	require.NotNil(t, got)
	assert.ElementsMatch(t, want.sources, got.Sources.Sorted(), "sources")
	assert.ElementsMatch(t, want.targets, got.Targets.Sorted(), "targets")
	assert.ElementsMatch(t, want.dropped, got.Dropped.Sorted(), "dropped")
	assert.Equal(t, want.renamed, got.Renamed, "renamed")
}

func TestNewStatementParser_ConfigurationErrors(t *testing.T) {
	_, err := NewStatementParser(DialectGeneric, Profile{Schema: "sc1"})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "database_name", cfgErr.Field)

	_, err = NewStatementParser(Dialect("oracle"), testProfile)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "dialect", cfgErr.Field)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect(" Snowflake ")
	require.NoError(t, err)
	assert.Equal(t, DialectSnowflake, d)

	d, err = ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, DialectGeneric, d)

	_, err = ParseDialect("mysql")
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestGenericParser(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		qc   *QueryContext
		want wantStatement
	}{
		{
			name: "insert from subquery",
			sql:  "insert into target_table (select c from source_table)",
			want: wantStatement{
				sources: []string{"db1.sc1.source_table"},
				targets: []string{"db1.sc1.target_table"},
			},
		},
		{
			name: "ctes ahead of insert",
			sql:  "with a as (select * from src), b as (select * from a) insert into t select * from b",
			want: wantStatement{
				sources: []string{"db1.sc1.src"},
				targets: []string{"db1.sc1.t"},
			},
		},
		{
			name: "drop with queried schema",
			sql:  "drop table t1",
			qc:   NewQueryContext(WithQueriedSchema("sc1")),
			want: wantStatement{dropped: []string{"db1.sc1.t1"}},
		},
		{
			name: "cte is not a source",
			sql: `create table report as
				with recent as (select * from sc1.orders where ts > current_date)
				select r.id, c.name from recent r join customers c on r.cid = c.id`,
			want: wantStatement{
				sources: []string{"db1.sc1.orders", "db1.sc1.customers"},
				targets: []string{"db1.sc1.report"},
			},
		},
		{
			name: "out of scope tables are dropped",
			sql:  "insert into sc1.t select * from other_db.sc1.s join sc2.u using (id)",
			want: wantStatement{targets: []string{"db1.sc1.t"}},
		},
		{
			name: "rename",
			sql:  "alter table t_old rename to t_new",
			want: wantStatement{renamed: []Rename{{Old: "db1.sc1.t_old", New: "db1.sc1.t_new"}}},
		},
		{
			name: "rename out of scope is discarded",
			sql:  "alter table t_old rename to sc2.t_new",
			want: wantStatement{},
		},
		{
			name: "script merges statements",
			sql:  "create view v as select * from a; drop table b; use schema x",
			want: wantStatement{
				sources: []string{"db1.sc1.a"},
				targets: []string{"db1.sc1.v"},
				dropped: []string{"db1.sc1.b"},
			},
		},
		{
			name: "queried database elsewhere puts everything out of scope",
			sql:  "insert into t select * from s",
			qc:   NewQueryContext(WithQueriedDatabase("db2"), WithQueriedSchema("sc1")),
			want: wantStatement{},
		},
	}

	p := mustParser(t, DialectGeneric)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.sql, tt.qc)
			require.NoError(t, err)
			assertStatement(t, tt.want, got)
		})
	}
}

func TestGenericParser_Failures(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		cause error
	}{
		{name: "syntax error", sql: "select from where", cause: ErrParseFailure},
		{name: "merge", sql: "merge into t using s on t.id = s.id when matched then delete", cause: ErrUnsupportedConstruct},
		{name: "multi-table insert", sql: "insert all into a into b select * from s", cause: ErrUnsupportedConstruct},
	}

	p := mustParser(t, DialectGeneric)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.sql, nil)
			assert.Nil(t, got)

			var stmtErr *StatementError
			require.True(t, errors.As(err, &stmtErr))
			assert.Equal(t, DialectGeneric, stmtErr.Dialect)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestBigQueryParser(t *testing.T) {
	profile := Profile{Database: "proj", Schema: "ds", FullTableNames: true}
	p, err := NewStatementParser(DialectBigQuery, profile, WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	tests := []struct {
		name string
		sql  string
		qc   *QueryContext
		want wantStatement
	}{
		{
			name: "anonymous referenced table is dropped",
			qc: NewQueryContext(
				WithQueryType("INSERT"),
				WithReferencedTables(
					TableRef{Schema: "proj.ds", Name: "anon123xyz"},
					TableRef{Schema: "proj.ds", Name: "events"},
				),
				WithDestinationTable(&TableRef{Schema: "proj.ds", Name: "daily"}),
			),
			want: wantStatement{
				sources: []string{"proj.ds.events"},
				targets: []string{"proj.ds.daily"},
			},
		},
		{
			name: "script dataset destination is dropped",
			qc: NewQueryContext(
				WithQueryType("SELECT"),
				WithReferencedTables(TableRef{Schema: "proj.ds", Name: "events"}),
				WithDestinationTable(&TableRef{Schema: "proj._script3f2a", Name: "result"}),
			),
			want: wantStatement{sources: []string{"proj.ds.events"}},
		},
		{
			name: "session dataset source is dropped",
			qc: NewQueryContext(
				WithQueryType("INSERT"),
				WithReferencedTables(
					TableRef{Schema: "proj._session", Name: "tmp_orders"},
					TableRef{Schema: "proj.ds", Name: "events"},
				),
				WithDestinationTable(&TableRef{Schema: "proj.ds", Name: "daily"}),
			),
			want: wantStatement{
				sources: []string{"proj.ds.events"},
				targets: []string{"proj.ds.daily"},
			},
		},
		{
			name: "underscore table names are kept",
			qc: NewQueryContext(
				WithQueryType("INSERT"),
				WithReferencedTables(TableRef{Schema: "proj.ds", Name: "_raw_orders"}),
				WithDestinationTable(&TableRef{Schema: "proj.ds", Name: "_staging_orders"}),
			),
			want: wantStatement{
				sources: []string{"proj.ds._raw_orders"},
				targets: []string{"proj.ds._staging_orders"},
			},
		},
		{
			name: "drop uses destination",
			qc: NewQueryContext(
				WithQueryType("DROP_TABLE"),
				WithDestinationTable(&TableRef{Schema: "proj.ds", Name: "old"}),
			),
			want: wantStatement{dropped: []string{"proj.ds.old"}},
		},
		{
			name: "alter reads renames from text",
			sql:  "ALTER TABLE `proj.ds.a` RENAME TO b",
			qc:   NewQueryContext(WithQueryType("ALTER_TABLE")),
			want: wantStatement{renamed: []Rename{{Old: "proj.ds.a", New: "proj.ds.b"}}},
		},
		{
			name: "view reads tables from text",
			sql:  "CREATE OR REPLACE VIEW ds.v AS SELECT * FROM `proj.ds.events` JOIN ds.anon_tmp USING (id)",
			qc: NewQueryContext(
				WithQueryType("CREATE_VIEW"),
				WithReferencedTables(TableRef{Schema: "proj.ds", Name: "ignored"}),
			),
			want: wantStatement{
				sources: []string{"proj.ds.events"},
				targets: []string{"proj.ds.v"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.sql, tt.qc)
			require.NoError(t, err)
			assertStatement(t, tt.want, got)
		})
	}

	t.Run("view parse failure", func(t *testing.T) {
		_, err := p.Parse("CREATE VIEW v AS SELECT (", NewQueryContext(WithQueryType("CREATE_VIEW")))
		assert.ErrorIs(t, err, ErrParseFailure)
	})
}

func TestIsBigQueryAnonymous(t *testing.T) {
	tests := []struct {
		ref  TableRef
		want bool
	}{
		{ref: TableRef{Schema: "proj.ds", Name: "anon123xyz"}, want: true},
		{ref: TableRef{Schema: "proj.ds", Name: "ANON_result"}, want: true},
		{ref: TableRef{Schema: "proj._script3f2a", Name: "result"}, want: true},
		{ref: TableRef{Schema: "_session", Name: "tmp"}, want: true},
		{ref: TableRef{Schema: "proj.ds", Name: "_staging_orders"}, want: false},
		{ref: TableRef{Schema: "proj._internal", Name: "orders"}, want: false},
		{ref: TableRef{Schema: "proj.ds", Name: "events"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, isBigQueryAnonymous(tt.ref))
		})
	}
}

func TestSnowflakeParser(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		qc   *QueryContext
		want wantStatement
	}{
		{
			name: "dollar identifiers survive",
			sql:  "insert into stage$1 select $1, $2 from raw$events",
			want: wantStatement{
				sources: []string{"db1.sc1.raw$events"},
				targets: []string{"db1.sc1.stage$1"},
			},
		},
		{
			name: "merge using a cte",
			sql: `WITH u AS (SELECT id, v FROM sc1.updates_raw)
				MERGE INTO sc1.target t USING u ON t.id = u.id
				WHEN MATCHED THEN UPDATE SET t.v = u.v`,
			want: wantStatement{
				sources: []string{"db1.sc1.updates_raw"},
				targets: []string{"db1.sc1.target"},
			},
		},
		{
			name: "merge subquery reads a cte",
			sql: `WITH u AS (SELECT id, v FROM sc1.updates_raw)
				MERGE INTO sc1.target t USING (SELECT * FROM u) s ON t.id = s.id
				WHEN MATCHED THEN UPDATE SET t.v = s.v`,
			want: wantStatement{
				sources: []string{"db1.sc1.updates_raw"},
				targets: []string{"db1.sc1.target"},
			},
		},
		{
			name: "merge with table source",
			sql: `MERGE INTO sc1.target t USING sc1.updates u ON t.id = u.id
				WHEN MATCHED THEN UPDATE SET t.v = u.v
				WHEN NOT MATCHED THEN INSERT (id, v) VALUES (u.id, u.v)`,
			want: wantStatement{
				sources: []string{"db1.sc1.updates"},
				targets: []string{"db1.sc1.target"},
			},
		},
		{
			name: "merge with subquery source",
			sql: `merge into target using (
					with x as (select * from a) select x.id, b.v from x join b on x.id = b.id
				) src on target.id = src.id
				when matched then delete`,
			want: wantStatement{
				sources: []string{"db1.sc1.a", "db1.sc1.b"},
				targets: []string{"db1.sc1.target"},
			},
		},
		{
			name: "structured metadata",
			sql:  "call some_proc()",
			qc: NewQueryContext(
				WithQueryType("INSERT"),
				WithReferencedTables(TableRef{Schema: "DB1.SC1", Name: "SRC"}),
				WithDestinationTable(&TableRef{Schema: "DB1.SC1", Name: "DST"}),
			),
			want: wantStatement{
				sources: []string{"db1.sc1.src"},
				targets: []string{"db1.sc1.dst"},
			},
		},
		{
			name: "ddl ignores structured metadata",
			sql:  "DROP TABLE old_t",
			qc: NewQueryContext(
				WithQueryType("DROP"),
				WithDestinationTable(&TableRef{Schema: "DB1.SC1", Name: "WRONG"}),
			),
			want: wantStatement{dropped: []string{"db1.sc1.old_t"}},
		},
		{
			name: "rename by text prefix",
			sql:  "alter table a rename to b",
			qc:   NewQueryContext(WithReferencedTables(TableRef{Name: "a"})),
			want: wantStatement{renamed: []Rename{{Old: "db1.sc1.a", New: "db1.sc1.b"}}},
		},
	}

	p := mustParser(t, DialectSnowflake)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.sql, tt.qc)
			require.NoError(t, err)
			assertStatement(t, tt.want, got)
		})
	}

	t.Run("merge without target", func(t *testing.T) {
		_, err := p.Parse("merge using s on 1 = 1 when matched then delete", nil)
		assert.ErrorIs(t, err, ErrUnsupportedConstruct)
	})
}

func TestParseAll(t *testing.T) {
	p := mustParser(t, DialectGeneric)
	queries := []Query{
		{SQL: "insert into t select * from s"},
		{SQL: "select (from where"},
		{SQL: "drop table t", Context: NewQueryContext(WithQueryType("DROP"))},
	}

	got := ParseAll(p, queries, testutil.NewTestLogger(t))
	require.Len(t, got, 2)
	assert.Equal(t, []string{"db1.sc1.s"}, got[0].Sources.Sorted())
	assert.Equal(t, []string{"db1.sc1.t"}, got[1].Dropped.Sorted())

	assert.Empty(t, ParseAll(p, nil, nil))
}

func TestParsedStatement_AddRenameDedupes(t *testing.T) {
	ps := NewParsedStatement()
	ps.AddRename("a", "b")
	ps.AddRename("c", "d")
	ps.AddRename("a", "b")

	assert.Equal(t, []Rename{{"a", "b"}, {"c", "d"}}, ps.Renamed)
	assert.False(t, ps.Empty())
	assert.True(t, NewParsedStatement().Empty())
}
