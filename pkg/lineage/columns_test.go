package lineage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/dialect"
)

func catalogOf(tables map[string][]string) *Catalog {
	c := NewCatalog()
	for table, cols := range tables {
		for _, col := range cols {
			c.AddColumn(table, col)
		}
	}
	return c
}

func TestColumnLineageResolver(t *testing.T) {
	tests := []struct {
		name    string
		catalog map[string][]string
		sql     string
		want    map[string][]string
	}{
		{
			name:    "direct and aliased columns",
			catalog: map[string][]string{"raw.orders": {"id", "amount"}},
			sql:     "select id, amount as total from raw.orders",
			want: map[string][]string{
				"id":    {"raw.orders.id"},
				"total": {"raw.orders.amount"},
			},
		},
		{
			name: "ctes in order with join keys",
			catalog: map[string][]string{
				"orders":    {"id", "customer_id"},
				"customers": {"id", "name"},
			},
			sql: `with o as (select id, customer_id from orders),
				c as (select id as customer_id, name from customers)
				select o.id, c.name, o.customer_id
				from o join c on o.customer_id = c.customer_id`,
			want: map[string][]string{
				"id":          {"orders.id"},
				"name":        {"customers.name"},
				"customer_id": {"customers.id", "orders.customer_id"},
			},
		},
		{
			name:    "star with exclusions",
			catalog: map[string][]string{"users": {"id", "secret", "email"}},
			sql:     "select * exclude (secret) from users",
			want: map[string][]string{
				"email": {"users.email"},
				"id":    {"users.id"},
			},
		},
		{
			name: "qualified star through alias",
			catalog: map[string][]string{
				"db.s.a": {"x", "y"},
				"db.s.b": {"z"},
			},
			sql: "select a1.*, b.z from db.s.a a1 join db.s.b b on a1.x = b.z",
			want: map[string][]string{
				"x": {"db.s.a.x", "db.s.b.z"},
				"y": {"db.s.a.y"},
				"z": {"db.s.a.x", "db.s.b.z"},
			},
		},
		{
			name: "join keys follow the on pairs, not column names",
			catalog: map[string][]string{
				"db.sc.orders":    {"id", "customer_id"},
				"db.sc.customers": {"id", "name"},
			},
			sql: "select o.id, c.name, o.customer_id from db.sc.orders o join db.sc.customers c on o.customer_id = c.id",
			want: map[string][]string{
				"id":          {"db.sc.orders.id"},
				"name":        {"db.sc.customers.name"},
				"customer_id": {"db.sc.customers.id", "db.sc.orders.customer_id"},
			},
		},
		{
			name: "compound on condition",
			catalog: map[string][]string{
				"a": {"k1", "k2", "v"},
				"b": {"ref1", "ref2", "w"},
			},
			sql: "select a.k1, a.k2, b.w from a join b on (a.k1 = b.ref1 and a.k2 = b.ref2) and b.w > 0",
			want: map[string][]string{
				"k1": {"a.k1", "b.ref1"},
				"k2": {"a.k2", "b.ref2"},
				"w":  {"b.w"},
			},
		},
		{
			name: "using pairs the joined relation",
			catalog: map[string][]string{
				"a": {"id", "v"},
				"b": {"id", "w"},
			},
			sql: "select a.id, b.w from a join b using (id)",
			want: map[string][]string{
				"id": {"a.id", "b.id"},
				"w":  {"b.w"},
			},
		},
		{
			name:    "derived table",
			catalog: map[string][]string{"orders": {"amount", "region"}},
			sql:     "select t.total, t.region from (select sum(amount) as total, region from orders group by region) t",
			want: map[string][]string{
				"total":  {"orders.amount"},
				"region": {"orders.region"},
			},
		},
		{
			name:    "expression takes alias",
			catalog: map[string][]string{"orders": {"price", "qty"}},
			sql:     "select price * qty as revenue, upper(cast(qty as string)) from orders",
			want: map[string][]string{
				"revenue": {"orders.price", "orders.qty"},
				"qty":     {"orders.qty"},
			},
		},
		{
			name:    "ctes ahead of insert",
			catalog: map[string][]string{"src": {"id", "v"}},
			sql:     "with a as (select id, v as value from src) insert into t select id, value from a",
			want: map[string][]string{
				"id":    {"src.id"},
				"value": {"src.v"},
			},
		},
		{
			name:    "union feeds by position",
			catalog: map[string][]string{"a": {"id"}, "b": {"code"}},
			sql:     "select id from a union all select code from b",
			want: map[string][]string{
				"id": {"a.id", "b.code"},
			},
		},
		{
			name:    "ambiguous unqualified column matches every source",
			catalog: map[string][]string{"a": {"id", "name"}, "b": {"id", "name"}},
			sql:     "select name from a join b on a.id = b.id",
			want: map[string][]string{
				"name": {"a.name", "b.name"},
			},
		},
		{
			name:    "cte column list renames outputs",
			catalog: map[string][]string{"src": {"a", "b"}},
			sql:     "with r (x, y) as (select a, b from src) select x, y as why from r",
			want: map[string][]string{
				"x":   {"src.a"},
				"why": {"src.b"},
			},
		},
		{
			name:    "scalar subquery",
			catalog: map[string][]string{"t": {"id"}, "limits": {"cap"}},
			sql:     "select id, (select max(cap) from limits) as cap from t",
			want: map[string][]string{
				"id":  {"t.id"},
				"cap": {"limits.cap"},
			},
		},
		{
			name:    "unknown catalog falls back to the single source",
			catalog: nil,
			sql:     "select a, b as c from raw.t",
			want: map[string][]string{
				"a": {"raw.t.a"},
				"c": {"raw.t.b"},
			},
		},
		{
			name:    "no traceable columns",
			catalog: map[string][]string{"t": {"id"}},
			sql:     "select 1 as one, current_date as today",
			want:    map[string][]string{},
		},
		{
			name:    "niladic functions are not columns",
			catalog: map[string][]string{"t": {"id"}},
			sql:     "select id, current_timestamp as loaded_at, current_user from t",
			want:    map[string][]string{"id": {"t.id"}},
		},
		{
			name:    "create table as",
			catalog: map[string][]string{"t": {"id"}},
			sql:     "create table m as select id from t",
			want:    map[string][]string{"id": {"t.id"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewColumnLineageResolver(nil, catalogOf(tt.catalog))

			deps, err := r.Resolve("m", tt.sql)
			require.NoError(t, err)
			require.NotNil(t, deps)
			assert.Equal(t, tt.want, deps.Columns())
		})
	}
}

func TestColumnLineageResolver_KeysAreRelationQualified(t *testing.T) {
	r := NewColumnLineageResolver(dialect.MustGet(dialect.Snowflake), catalogOf(map[string][]string{"src": {"a"}}))

	deps, err := r.Resolve("Analytics.Model", "SELECT A FROM SRC")
	require.NoError(t, err)
	require.Contains(t, deps, "analytics.model.a")
	assert.True(t, deps["analytics.model.a"].Has("src.a"))
}

func TestColumnLineageResolver_DoesNotMutateCatalog(t *testing.T) {
	catalog := catalogOf(map[string][]string{"src": {"a"}})
	r := NewColumnLineageResolver(nil, catalog)

	_, err := r.Resolve("m", "with c as (select a from src) select a from c")
	require.NoError(t, err)

	assert.Len(t, catalog.SourceToColumn, 1)
	assert.NotContains(t, catalog.SourceToColumn, "c")
}

func TestColumnLineageResolver_Errors(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		cause error
	}{
		{name: "malformed", sql: "select a from (", cause: ErrParseFailure},
		{name: "no query", sql: "drop table x", cause: ErrUnsupportedConstruct},
		{name: "several statements", sql: "select 1; select 2", cause: ErrParseFailure},
	}

	r := NewColumnLineageResolver(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, err := r.Resolve("broken", tt.sql)
			assert.Nil(t, deps)

			var modelErr *ModelError
			require.True(t, errors.As(err, &modelErr))
			assert.Equal(t, "broken", modelErr.Model)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestCatalog_ColumnsFallsBackToTrailingName(t *testing.T) {
	c := catalogOf(map[string][]string{"orders": {"ID"}})

	assert.True(t, c.Columns("db.schema.orders").Has("id"))
	assert.True(t, c.ColumnToSource["id"].Has("orders"))
	assert.Nil(t, c.Columns("missing"))
}
