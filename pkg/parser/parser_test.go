package parser_test

import (
	"fmt"
	"testing"

	"github.com/leapstack-labs/leaplineage/pkg/dialect"
	"github.com/leapstack-labs/leaplineage/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseQuery(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	stmt, err := parser.ParseQuery(sql, nil)
	require.NoError(t, err)
	require.NotNil(t, stmt.Body)
	return stmt
}

// ---------- Script Tests ----------

func TestParseScript(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		kinds []string
	}{
		{
			name:  "single select",
			sql:   "select 1",
			kinds: []string{"*parser.SelectStmt"},
		},
		{
			name:  "empty statements skipped",
			sql:   ";; select 1;;; select 2;",
			kinds: []string{"*parser.SelectStmt", "*parser.SelectStmt"},
		},
		{
			name:  "mixed statements",
			sql:   "use warehouse w; insert into t select a from s; drop table s",
			kinds: []string{"*parser.OtherStmt", "*parser.InsertStmt", "*parser.DropStmt"},
		},
		{
			name:  "semicolon inside parens does not split other statements",
			sql:   "grant select on (x; y) to r; select 1",
			kinds: []string{"*parser.OtherStmt", "*parser.SelectStmt"},
		},
		{
			name:  "empty script",
			sql:   "  -- nothing here\n",
			kinds: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := parser.ParseScript(tt.sql, nil)
			require.NoError(t, err)
			require.Len(t, stmts, len(tt.kinds))
			for i, stmt := range stmts {
				assert.Equal(t, tt.kinds[i], typeName(stmt))
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *parser.SelectStmt:
		return "*parser.SelectStmt"
	case *parser.InsertStmt:
		return "*parser.InsertStmt"
	case *parser.DropStmt:
		return "*parser.DropStmt"
	case *parser.OtherStmt:
		return "*parser.OtherStmt"
	default:
		return "other"
	}
}

func TestParseStatementErrors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantMsg string
	}{
		{name: "empty", sql: ";", wantMsg: "no statement found"},
		{name: "two statements", sql: "select 1; select 2", wantMsg: "expected a single statement"},
		{name: "dangling operator", sql: "select a + from t", wantMsg: "unexpected token"},
		{name: "unclosed paren", sql: "select (a from t", wantMsg: "parse error"},
		{name: "trailing garbage", sql: "select a from t )", wantMsg: "after end of statement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseStatement(tt.sql, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.ParseStatement("select a\nfrom t where", nil)
	require.Error(t, err)

	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Pos.Line)

	_, err = parser.ParseStatement(";", nil)
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Pos.IsValid())
	assert.Equal(t, "parse error: no statement found", err.Error())
}

func TestWithAheadOfDML(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{name: "insert", sql: "with a as (select 1 as x) insert into t select x from a", want: "*parser.InsertStmt"},
		{name: "create table", sql: "with a as (select 1 as x) create table t as select x from a", want: "*parser.CreateTableStmt"},
		{name: "create view", sql: "with a as (select 1 as x) create view v as select x from a", want: "*parser.CreateViewStmt"},
		{name: "update", sql: "with a as (select 1 as x) update t set y = 1 where y in (select x from a)", want: "*parser.UpdateStmt"},
		{name: "select", sql: "with a as (select 1 as x) select x from a", want: "*parser.SelectStmt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.ParseStatement(tt.sql, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fmt.Sprintf("%T", stmt))

			var with *parser.WithClause
			switch s := stmt.(type) {
			case *parser.InsertStmt:
				with = s.With
			case *parser.CreateTableStmt:
				with = s.With
			case *parser.CreateViewStmt:
				with = s.With
			case *parser.UpdateStmt:
				with = s.With
			case *parser.SelectStmt:
				with = s.With
			}
			require.NotNil(t, with)
			require.Len(t, with.CTEs, 1)
			assert.Equal(t, "a", with.CTEs[0].Name)
		})
	}
}

func TestParseQueryRejectsDML(t *testing.T) {
	_, err := parser.ParseQuery("drop table t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a query, found DROP TABLE")
}

// ---------- Query Tests ----------

func TestSelectCore(t *testing.T) {
	stmt := parseQuery(t, `
		select distinct a, t.b as bee, count(*) c, t.*
		from sch.tbl t
		where a > 1 and b is not null
		group by a, b
		having count(*) > 2
		qualify row_number() over (partition by a order by b desc) = 1
		order by a nulls last
		limit 10 offset 5`)

	core := stmt.Body.Left
	require.NotNil(t, core)
	assert.True(t, core.Distinct)
	require.Len(t, core.Columns, 4)
	assert.Equal(t, &parser.ColumnRef{Column: "a"}, core.Columns[0].Expr)
	assert.Equal(t, "bee", core.Columns[1].Alias)
	assert.Equal(t, &parser.ColumnRef{Table: "t", Column: "b"}, core.Columns[1].Expr)
	assert.Equal(t, "c", core.Columns[2].Alias)
	assert.Equal(t, "t", core.Columns[3].TableStar)

	tbl, ok := core.From.Source.(*parser.TableName)
	require.True(t, ok)
	assert.Equal(t, "sch", tbl.Schema)
	assert.Equal(t, "tbl", tbl.Name)
	assert.Equal(t, "t", tbl.Alias)

	assert.NotNil(t, core.Where)
	assert.Len(t, core.GroupBy, 2)
	assert.NotNil(t, core.Having)
	assert.NotNil(t, core.Qualify)
	require.Len(t, core.OrderBy, 1)
	require.NotNil(t, core.OrderBy[0].NullsFirst)
	assert.False(t, *core.OrderBy[0].NullsFirst)
	assert.NotNil(t, core.Limit)
	assert.NotNil(t, core.Offset)
}

func TestWithClause(t *testing.T) {
	stmt := parseQuery(t, `
		with recursive a (x) as (select 1),
		b as materialized (select x from a)
		select * from b`)

	require.NotNil(t, stmt.With)
	assert.True(t, stmt.With.Recursive)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "a", stmt.With.CTEs[0].Name)
	assert.Equal(t, []string{"x"}, stmt.With.CTEs[0].Columns)
	assert.Equal(t, "b", stmt.With.CTEs[1].Name)
	assert.True(t, stmt.Body.Left.Columns[0].Star)
}

func TestSetOperations(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		op   parser.SetOpType
	}{
		{name: "union", sql: "select a from x union select a from y", op: parser.SetOpUnion},
		{name: "union all", sql: "select a from x union all select a from y", op: parser.SetOpUnionAll},
		{name: "union distinct by name", sql: "select a from x union distinct by name select a from y", op: parser.SetOpUnion},
		{name: "intersect", sql: "select a from x intersect distinct select a from y", op: parser.SetOpIntersect},
		{name: "except", sql: "select a from x except select a from y", op: parser.SetOpExcept},
		{name: "parenthesized", sql: "(select a from x) union all (select a from y)", op: parser.SetOpUnionAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := parseQuery(t, tt.sql)
			assert.Equal(t, tt.op, stmt.Body.Op)
			require.NotNil(t, stmt.Body.Right)
		})
	}
}

func TestStarModifiers(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		d       string
		exclude []string
	}{
		{name: "bigquery except", sql: "select * except (a, b) from t", d: dialect.BigQuery, exclude: []string{"a", "b"}},
		{name: "snowflake exclude list", sql: "select * exclude (a) from t", d: dialect.Snowflake, exclude: []string{"a"}},
		{name: "snowflake exclude single", sql: "select * exclude a from t", d: dialect.Snowflake, exclude: []string{"a"}},
		{name: "replace skipped", sql: "select * replace (a + 1 as a) from t", d: dialect.BigQuery, exclude: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.ParseQuery(tt.sql, dialect.MustGet(tt.d))
			require.NoError(t, err)
			item := stmt.Body.Left.Columns[0]
			assert.True(t, item.Star)
			assert.Equal(t, tt.exclude, item.Exclude)
		})
	}
}

// ---------- FROM Tests ----------

func TestJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantType parser.JoinType
		natural  bool
		using    []string
		hasOn    bool
	}{
		{name: "inner", sql: "select * from a join b on a.id = b.id", wantType: parser.JoinInner, hasOn: true},
		{name: "left outer", sql: "select * from a left outer join b on a.id = b.id", wantType: parser.JoinLeft, hasOn: true},
		{name: "right", sql: "select * from a right join b using (id)", wantType: parser.JoinRight, using: []string{"id"}},
		{name: "full", sql: "select * from a full join b on true", wantType: parser.JoinFull, hasOn: true},
		{name: "cross", sql: "select * from a cross join b", wantType: parser.JoinCross},
		{name: "comma", sql: "select * from a, b", wantType: parser.JoinComma},
		{name: "natural", sql: "select * from a natural join b", wantType: parser.JoinInner, natural: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := parseQuery(t, tt.sql)
			from := stmt.Body.Left.From
			require.Len(t, from.Joins, 1)
			join := from.Joins[0]
			assert.Equal(t, tt.wantType, join.Type)
			assert.Equal(t, tt.natural, join.Natural)
			assert.Equal(t, tt.using, join.Using)
			assert.Equal(t, tt.hasOn, join.Condition != nil)
		})
	}
}

func TestQualifiedTableNames(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		d       string
		catalog string
		schema  string
		table   string
	}{
		{name: "one part", sql: "select 1 from t", d: dialect.Generic, table: "t"},
		{name: "two parts", sql: "select 1 from s.t", d: dialect.Generic, schema: "s", table: "t"},
		{name: "three parts", sql: "select 1 from d.s.t", d: dialect.Generic, catalog: "d", schema: "s", table: "t"},
		{name: "quoted parts", sql: `select 1 from "My DB"."Sch"."T"`, d: dialect.Snowflake, catalog: "My DB", schema: "Sch", table: "T"},
		{name: "bigquery single quoted path", sql: "select 1 from `proj.ds.tbl`", d: dialect.BigQuery, catalog: "proj", schema: "ds", table: "tbl"},
		{name: "bigquery dashed project", sql: "select 1 from `my-proj`.ds.tbl", d: dialect.BigQuery, catalog: "my-proj", schema: "ds", table: "tbl"},
		{name: "default schema", sql: "select 1 from db..t", d: dialect.Generic, catalog: "db", table: "t"},
		{name: "keyword after dot", sql: "select 1 from s.values", d: dialect.Generic, schema: "s", table: "values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.ParseQuery(tt.sql, dialect.MustGet(tt.d))
			require.NoError(t, err)
			tbl, ok := stmt.Body.Left.From.Source.(*parser.TableName)
			require.True(t, ok)
			assert.Equal(t, tt.catalog, tbl.Catalog)
			assert.Equal(t, tt.schema, tbl.Schema)
			assert.Equal(t, tt.table, tbl.Name)
		})
	}
}

func TestDerivedTablesAndFunctions(t *testing.T) {
	stmt := parseQuery(t, `
		select *
		from (select a from x) as sub
		join lateral flatten(input => sub.a) f on true
		left join ((y join z on y.id = z.id)) on true`)

	from := stmt.Body.Left.From
	derived, ok := from.Source.(*parser.DerivedTable)
	require.True(t, ok)
	assert.Equal(t, "sub", derived.Alias)

	fn, ok := from.Joins[0].Right.(*parser.TableFunc)
	require.True(t, ok)
	assert.Equal(t, "FLATTEN", fn.Name)
	assert.Equal(t, "f", fn.Alias)

	nested, ok := from.Joins[1].Right.(*parser.DerivedTable)
	require.True(t, ok)
	require.Len(t, nested.Select.Body.Left.From.Joins, 1)
}

func TestTimeTravelSkipped(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		d    string
	}{
		{name: "bigquery system time", sql: "select a from t for system_time as of timestamp '2024-01-01' x", d: dialect.BigQuery},
		{name: "snowflake at", sql: "select a from t at(offset => -60) x", d: dialect.Snowflake},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.ParseQuery(tt.sql, dialect.MustGet(tt.d))
			require.NoError(t, err)
			tbl := stmt.Body.Left.From.Source.(*parser.TableName)
			assert.Equal(t, "t", tbl.Name)
			assert.Equal(t, "x", tbl.Alias)
		})
	}
}

// ---------- Expression Tests ----------

func TestExpressions(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		d    string
	}{
		{name: "case", sql: "select case when a = 1 then 'x' when a = 2 then 'y' else 'z' end", d: dialect.Generic},
		{name: "simple case", sql: "select case a when 1 then b end", d: dialect.Generic},
		{name: "casts", sql: "select cast(a as varchar(10)), a::int, try_cast(b as number(10, 2))", d: dialect.Snowflake},
		{name: "safe cast", sql: "select safe_cast(a as int64), cast(b as array<string>)", d: dialect.BigQuery},
		{name: "in list and subquery", sql: "select a from t where a in (1, 2) and b not in (select b from u)", d: dialect.Generic},
		{name: "in unnest", sql: "select a from t where 'x' in unnest(tags)", d: dialect.BigQuery},
		{name: "between", sql: "select a from t where a not between 1 and 5 and b = 2", d: dialect.Generic},
		{name: "like and ilike", sql: "select a from t where a like 'x%' or b not ilike any ('y%', 'z%')", d: dialect.Snowflake},
		{name: "exists", sql: "select a from t where not exists (select 1 from u where u.id = t.id)", d: dialect.Generic},
		{name: "is distinct from", sql: "select a is not distinct from b", d: dialect.Generic},
		{name: "window frame", sql: "select sum(a) over (partition by b order by c rows between unbounded preceding and current row)", d: dialect.Generic},
		{name: "named window", sql: "select sum(a) over w from t window w as (partition by b)", d: dialect.Generic},
		{name: "within group", sql: "select listagg(a, ',') within group (order by b) from t", d: dialect.Snowflake},
		{name: "filter", sql: "select count(*) filter (where a > 1) from t", d: dialect.Generic},
		{name: "ignore nulls", sql: "select last_value(a ignore nulls) over (order by b), lag(a) ignore nulls over (order by b) from t", d: dialect.Snowflake},
		{name: "array agg order limit", sql: "select array_agg(a order by b limit 3) from t", d: dialect.BigQuery},
		{name: "extract and interval", sql: "select extract(year from d), d + interval 1 day, date_add(d, interval '2' month)", d: dialect.BigQuery},
		{name: "typed literals", sql: "select date '2024-01-01', timestamp '2024-01-01 00:00:00'", d: dialect.Generic},
		{name: "semi structured", sql: "select v:a.b::string, v['c'][0], arr[offset(1)] from t", d: dialect.Snowflake},
		{name: "struct and array", sql: "select struct(a as x, b as y), array<int64>[1, 2], [1, 2]", d: dialect.BigQuery},
		{name: "qualified function", sql: "select safe.parse_date('%Y', s), udf.lib.fn(a) from t", d: dialect.BigQuery},
		{name: "keywords as functions", sql: "select left(a, 2), right(a, 1), first(a) from t", d: dialect.Generic},
		{name: "trim spec", sql: "select trim(both 'x' from a) from t", d: dialect.Generic},
		{name: "parameters", sql: "select a from t where b = ? and c = @p and d = :q", d: dialect.Generic},
		{name: "at time zone", sql: "select ts at time zone 'UTC' from t", d: dialect.Generic},
		{name: "tuples", sql: "select a from t where (a, b) in ((1, 2), (3, 4))", d: dialect.Generic},
		{name: "rlike", sql: "select a from t where a rlike '^x'", d: dialect.Snowflake},
		{name: "hash comment", sql: "select a # trailing\nfrom t", d: dialect.BigQuery},
		{name: "double quoted string", sql: `select "x" as s from t`, d: dialect.BigQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseQuery(tt.sql, dialect.MustGet(tt.d))
			require.NoError(t, err)
		})
	}
}

func TestOperatorPrecedence(t *testing.T) {
	stmt := parseQuery(t, "select a + b * c = d or e and f")
	expr := stmt.Body.Left.Columns[0].Expr

	or, ok := expr.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, parser.TOKEN_OR, or.Op)

	eq, ok := or.Left.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, parser.TOKEN_EQ, eq.Op)

	plus, ok := eq.Left.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, parser.TOKEN_PLUS, plus.Op)

	mul, ok := plus.Right.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, parser.TOKEN_STAR, mul.Op)

	and, ok := or.Right.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, parser.TOKEN_AND, and.Op)
}

func TestDatePartArgumentsAreLiterals(t *testing.T) {
	stmt, err := parser.ParseQuery("select datediff(day, a, b) from t", dialect.MustGet(dialect.Snowflake))
	require.NoError(t, err)

	refs := parser.ColumnRefs(stmt.Body.Left.Columns[0].Expr)
	var names []string
	for _, r := range refs {
		names = append(names, r.Column)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestColumnRefsSkipSubqueries(t *testing.T) {
	stmt := parseQuery(t, "select a + (select max(b) from u) from t")
	expr := stmt.Body.Left.Columns[0].Expr

	refs := parser.ColumnRefs(expr)
	require.Len(t, refs, 1)
	assert.Equal(t, "a", refs[0].Column)

	subs := parser.Subqueries(expr)
	require.Len(t, subs, 1)
}
