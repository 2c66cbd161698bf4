package lineage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/dialect"
	"github.com/leapstack-labs/leaplineage/pkg/parser"
)

// StringSet is a set of strings.
type StringSet map[string]struct{}

// NewStringSet creates a set holding values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v.
func (s StringSet) Add(v string) {
	s[v] = struct{}{}
}

// Has reports whether v is present.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the values in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Catalog records the columns of the relations a model can read. Keys are
// lower case.
type Catalog struct {
	ColumnToSource map[string]StringSet // column name -> relations having it
	SourceToColumn map[string]StringSet // relation -> its column names
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		ColumnToSource: make(map[string]StringSet),
		SourceToColumn: make(map[string]StringSet),
	}
}

// AddColumn registers column as a column of relation.
func (c *Catalog) AddColumn(relation, column string) {
	relation, column = strings.ToLower(relation), strings.ToLower(column)
	if c.SourceToColumn[relation] == nil {
		c.SourceToColumn[relation] = make(StringSet)
	}
	c.SourceToColumn[relation].Add(column)
	if c.ColumnToSource[column] == nil {
		c.ColumnToSource[column] = make(StringSet)
	}
	c.ColumnToSource[column].Add(relation)
}

// Columns returns the known columns of relation. A qualified relation that
// is not registered falls back to its trailing name.
func (c *Catalog) Columns(relation string) StringSet {
	relation = strings.ToLower(relation)
	if cols, ok := c.SourceToColumn[relation]; ok {
		return cols
	}
	if i := strings.LastIndex(relation, "."); i >= 0 {
		return c.SourceToColumn[relation[i+1:]]
	}
	return nil
}

func (c *Catalog) clone() *Catalog {
	out := NewCatalog()
	for relation, cols := range c.SourceToColumn {
		for col := range cols {
			out.AddColumn(relation, col)
		}
	}
	return out
}

// ColumnDependency maps "<relation>.<column>" to its origin columns.
type ColumnDependency map[string]StringSet

// Columns renders the dependency as {column: [origin, ...]} with the
// relation prefix dropped from the keys and the origins sorted.
func (d ColumnDependency) Columns() map[string][]string {
	out := make(map[string][]string, len(d))
	for target, origins := range d {
		out[trailingSegment(target)] = origins.Sorted()
	}
	return out
}

// ColumnLineageResolver traces the output columns of compiled model SQL
// back to upstream columns.
type ColumnLineageResolver struct {
	dialect *dialect.Dialect
	catalog *Catalog
}

// NewColumnLineageResolver creates a resolver over catalog. A nil dialect
// selects the generic dialect; a nil catalog is empty.
func NewColumnLineageResolver(d *dialect.Dialect, catalog *Catalog) *ColumnLineageResolver {
	if d == nil {
		d = dialect.Default()
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &ColumnLineageResolver{dialect: d, catalog: catalog}
}

// Resolve returns the origins of each output column of model. Errors are
// *ModelError and concern this model only. A model with no traceable
// columns yields an empty, non-nil dependency.
func (r *ColumnLineageResolver) Resolve(model, sql string) (ColumnDependency, error) {
	stmt, err := parser.ParseStatement(sql, r.dialect)
	if err != nil {
		return nil, &ModelError{Model: model, Err: parseFailure(err)}
	}
	query, err := modelQuery(stmt)
	if err != nil {
		return nil, &ModelError{Model: model, Err: err}
	}

	relation := strings.ToLower(model)
	m := &modelResolver{
		dialect:      r.dialect,
		catalog:      r.catalog.clone(),
		parents:      make(map[string]StringSet),
		intermediate: make(StringSet),
	}
	outputs := m.processQuery(relation, query)

	deps := make(ColumnDependency)
	for _, col := range outputs {
		target := relation + "." + col
		origins := m.origins(target, relation)
		if len(origins) > 0 {
			deps[target] = origins
		}
	}
	return deps, nil
}

// modelQuery extracts the query that defines the model's columns.
func modelQuery(stmt parser.Statement) (*parser.SelectStmt, error) {
	var query *parser.SelectStmt
	switch s := stmt.(type) {
	case *parser.SelectStmt:
		query = s
	case *parser.CreateTableStmt:
		query = s.Query.WithCTEs(s.With)
	case *parser.CreateViewStmt:
		query = s.Query.WithCTEs(s.With)
	case *parser.InsertStmt:
		query = s.Query.WithCTEs(s.With)
	}
	if query == nil {
		return nil, unsupported("%T does not define columns", stmt)
	}
	return query, nil
}

// querySource is a relation visible in one FROM clause.
type querySource struct {
	name  string
	alias string
}

// modelResolver holds the per-model dependency graph. Nodes are
// "<relation>.<column>"; parents maps a node to the nodes it derives from.
type modelResolver struct {
	dialect      *dialect.Dialect
	catalog      *Catalog
	parents      map[string]StringSet
	intermediate StringSet // CTE, derived table and synthetic relations
	synthetic    int
}

func (m *modelResolver) addEdge(src, dst string) {
	if m.parents[dst] == nil {
		m.parents[dst] = make(StringSet)
	}
	m.parents[dst].Add(src)
}

func (m *modelResolver) newSynthetic() string {
	m.synthetic++
	name := fmt.Sprintf("__subquery_%d", m.synthetic)
	m.intermediate.Add(name)
	return name
}

// processQuery resolves a query whose output is relation and returns the
// output column names. CTEs are resolved first, in order.
func (m *modelResolver) processQuery(relation string, q *parser.SelectStmt) []string {
	if q == nil {
		return nil
	}
	if q.With != nil {
		for _, cte := range q.With.CTEs {
			name := m.dialect.NormalizeName(cte.Name)
			m.intermediate.Add(name)
			if len(cte.Columns) == 0 {
				m.processQuery(name, cte.Select)
				continue
			}
			// name (a, b) AS (...) renames the outputs positionally.
			inner := m.newSynthetic()
			for i, col := range m.processQuery(inner, cte.Select) {
				if i >= len(cte.Columns) {
					break
				}
				target := m.dialect.NormalizeName(cte.Columns[i])
				m.addEdge(inner+"."+col, name+"."+target)
				m.catalog.AddColumn(name, target)
			}
		}
	}
	return m.processBody(relation, q.Body)
}

// processBody resolves a select body. The right side of a set operation
// feeds the left side's output columns by position.
func (m *modelResolver) processBody(relation string, body *parser.SelectBody) []string {
	if body == nil {
		return nil
	}

	var outputs []string
	switch {
	case body.Left != nil:
		outputs = m.processCore(relation, body.Left)
	case body.Nested != nil:
		outputs = m.processQuery(relation, body.Nested)
	}

	if body.Right != nil {
		right := m.newSynthetic()
		for i, col := range m.processBody(right, body.Right) {
			if i < len(outputs) {
				m.addEdge(right+"."+col, relation+"."+outputs[i])
			}
		}
	}
	return outputs
}

// processCore resolves one SELECT: its sources, its select list and its
// join keys. Output columns are registered in the catalog so later CTEs can
// find them.
func (m *modelResolver) processCore(relation string, core *parser.SelectCore) []string {
	sources := m.collectSources(core.From)
	joinPairs := m.joinPairs(core.From, sources)

	var outputs []string
	seen := make(StringSet)
	emit := func(target string, expanded []string) {
		target = m.dialect.NormalizeName(target)
		node := relation + "." + target
		for _, src := range expanded {
			m.addEdge(src, node)
			for partner := range joinPairs[src] {
				m.addEdge(partner, node)
			}
		}
		if !seen.Has(target) {
			seen.Add(target)
			outputs = append(outputs, target)
			m.catalog.AddColumn(relation, target)
		}
	}

	for _, item := range core.Columns {
		switch {
		case item.Star || item.TableStar != "":
			for _, col := range m.expandStar(item.TableStar, item.Exclude, sources) {
				emit(trailingSegment(col), []string{col})
			}
		default:
			expanded := m.expandExpr(item.Expr, sources)
			target := item.Alias
			if target == "" {
				if len(expanded) == 0 {
					continue
				}
				target = trailingSegment(expanded[0])
			}
			emit(target, expanded)
		}
	}
	return outputs
}

// collectSources lists the relations of a FROM clause. Derived tables are
// resolved first into relations of their own.
func (m *modelResolver) collectSources(from *parser.FromClause) []querySource {
	if from == nil {
		return nil
	}
	refs := []parser.TableRef{from.Source}
	for _, join := range from.Joins {
		refs = append(refs, join.Right)
	}

	var sources []querySource
	for _, ref := range refs {
		switch t := ref.(type) {
		case *parser.TableName:
			sources = append(sources, querySource{
				name:  m.dialect.NormalizeName(t.Qualified()),
				alias: m.dialect.NormalizeName(t.Alias),
			})
		case *parser.DerivedTable:
			name := m.newSynthetic()
			m.processQuery(name, t.Select)
			sources = append(sources, querySource{name: name, alias: m.dialect.NormalizeName(t.Alias)})
		case *parser.TableFunc:
			sources = append(sources, querySource{name: m.newSynthetic(), alias: m.dialect.NormalizeName(t.Alias)})
		}
	}
	return sources
}

// joinPairs links the columns compared for equality in join conditions,
// in both directions. USING (c) pairs the joined relation's c with c of the
// relations before it.
func (m *modelResolver) joinPairs(from *parser.FromClause, sources []querySource) map[string]StringSet {
	pairs := make(map[string]StringSet)
	link := func(left, right []string) {
		for _, l := range left {
			for _, r := range right {
				if l == r {
					continue
				}
				if pairs[l] == nil {
					pairs[l] = make(StringSet)
				}
				if pairs[r] == nil {
					pairs[r] = make(StringSet)
				}
				pairs[l].Add(r)
				pairs[r].Add(l)
			}
		}
	}
	if from == nil {
		return pairs
	}

	for i, join := range from.Joins {
		for _, eq := range equalities(join.Condition) {
			link(m.expandRefs(eq.Left, sources), m.expandRefs(eq.Right, sources))
		}
		if i+1 >= len(sources) {
			continue
		}
		right := sources[i+1]
		for _, name := range join.Using {
			col := m.dialect.NormalizeName(name)
			link(m.expandUnqualified(col, sources[:i+1]), []string{right.name + "." + col})
		}
	}
	return pairs
}

// equalities returns the a = b comparisons of a join condition, looking
// through AND and parentheses.
func equalities(expr parser.Expr) []*parser.BinaryExpr {
	switch e := expr.(type) {
	case *parser.BinaryExpr:
		switch e.Op {
		case parser.TOKEN_AND:
			return append(equalities(e.Left), equalities(e.Right)...)
		case parser.TOKEN_EQ:
			return []*parser.BinaryExpr{e}
		}
	case *parser.ParenExpr:
		if len(e.Exprs) == 1 {
			return equalities(e.Exprs[0])
		}
	}
	return nil
}

// expandRefs qualifies the column references of expr.
func (m *modelResolver) expandRefs(expr parser.Expr, sources []querySource) []string {
	var cols []string
	for _, ref := range parser.ColumnRefs(expr) {
		cols = append(cols, m.expandRef(ref, sources)...)
	}
	return dedupe(cols)
}

// expandExpr returns the qualified columns expr reads, in first-seen order.
// Subqueries inside expr are resolved as relations of their own.
func (m *modelResolver) expandExpr(expr parser.Expr, sources []querySource) []string {
	var cols []string
	for _, ref := range parser.ColumnRefs(expr) {
		cols = append(cols, m.expandRef(ref, sources)...)
	}
	for _, sub := range parser.Subqueries(expr) {
		name := m.newSynthetic()
		for _, col := range m.processQuery(name, sub) {
			cols = append(cols, name+"."+col)
		}
	}
	return dedupe(cols)
}

// expandRef qualifies a column reference against sources. Qualified
// references match a source by alias or name; unqualified ones match every
// source known to have the column, or the only source unless the name is a
// niladic function like CURRENT_DATE.
func (m *modelResolver) expandRef(ref *parser.ColumnRef, sources []querySource) []string {
	col := m.dialect.NormalizeName(ref.Column)
	if ref.Table == "" {
		return m.expandUnqualified(col, sources)
	}

	qualifier := m.dialect.NormalizeName(ref.Table)
	if src, ok := findSource(sources, qualifier); ok {
		return []string{src.name + "." + col}
	}
	// alias.struct_col.field or struct_col.field
	head, rest, _ := strings.Cut(qualifier, ".")
	if src, ok := findSource(sources, head); ok && rest != "" {
		field, _, _ := strings.Cut(rest, ".")
		return []string{src.name + "." + field}
	}
	return m.expandUnqualified(head, sources)
}

func (m *modelResolver) expandUnqualified(col string, sources []querySource) []string {
	var out []string
	for _, src := range sources {
		if m.catalog.Columns(src.name).Has(col) {
			out = append(out, src.name+"."+col)
		}
	}
	if len(out) == 0 && len(sources) == 1 && !m.dialect.IsGenerator(col) {
		out = append(out, sources[0].name+"."+col)
	}
	return out
}

// expandStar expands * or qualifier.* into known columns, minus exclude.
func (m *modelResolver) expandStar(qualifier string, exclude []string, sources []querySource) []string {
	skip := make(StringSet)
	for _, name := range exclude {
		skip.Add(m.dialect.NormalizeName(name))
	}

	selected := sources
	if qualifier != "" {
		src, ok := findSource(sources, m.dialect.NormalizeName(qualifier))
		if !ok {
			return nil
		}
		selected = []querySource{src}
	}

	var out []string
	for _, src := range selected {
		for _, col := range m.catalog.Columns(src.name).Sorted() {
			if !skip.Has(col) {
				out = append(out, src.name+"."+col)
			}
		}
	}
	return out
}

// origins returns the first node of every simple path reaching target from
// a base-table column: the ancestors of target with no parents of their
// own, excluding intermediate relations and the model itself.
func (m *modelResolver) origins(target, model string) StringSet {
	out := make(StringSet)
	visited := NewStringSet(target)
	stack := []string{target}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parents := m.parents[node]
		if len(parents) == 0 && node != target {
			relation := relationOf(node)
			if relation != model && !m.intermediate.Has(relation) {
				out.Add(node)
			}
			continue
		}
		for parent := range parents {
			if !visited.Has(parent) {
				visited.Add(parent)
				stack = append(stack, parent)
			}
		}
	}
	return out
}

func findSource(sources []querySource, qualifier string) (querySource, bool) {
	for _, src := range sources {
		if src.alias == qualifier {
			return src, true
		}
	}
	for _, src := range sources {
		if src.name == qualifier || (src.alias == "" && trailingSegment(src.name) == qualifier) {
			return src, true
		}
	}
	return querySource{}, false
}

func trailingSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func relationOf(node string) string {
	if i := strings.LastIndex(node, "."); i >= 0 {
		return node[:i]
	}
	return ""
}

func dedupe(values []string) []string {
	seen := make(StringSet, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen.Has(v) {
			seen.Add(v)
			out = append(out, v)
		}
	}
	return out
}
