package parser

// Statement represents a SQL statement.
type Statement interface {
	stmtNode()
}

// Expr represents an expression in SQL.
type Expr interface {
	exprNode()
}

// TableRef represents a table reference in a FROM clause.
type TableRef interface {
	tableRefNode()
}

// ---------- Query Statements ----------

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) stmtNode() {}

// WithCTEs returns q with the CTEs of outer ahead of its own. q is not
// modified.
func (q *SelectStmt) WithCTEs(outer *WithClause) *SelectStmt {
	if q == nil || outer == nil {
		return q
	}
	with := &WithClause{Recursive: outer.Recursive}
	with.CTEs = append(with.CTEs, outer.CTEs...)
	if q.With != nil {
		with.Recursive = with.Recursive || q.With.Recursive
		with.CTEs = append(with.CTEs, q.With.CTEs...)
	}
	return &SelectStmt{With: with, Body: q.Body}
}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE represents a Common Table Expression.
type CTE struct {
	Name    string
	Columns []string // optional column list: name (a, b) AS (...)
	Select  *SelectStmt
}

// SelectBody represents the body of a SELECT with possible set operations.
// Exactly one of Left and Nested is set; Nested holds a parenthesized query.
type SelectBody struct {
	Left   *SelectCore
	Nested *SelectStmt
	Op     SetOpType
	All    bool
	Right  *SelectBody
}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpType constants for set operations in queries.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectCore represents the core SELECT clause.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	Qualify  Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool     // SELECT *
	TableStar string   // SELECT t.*
	Exclude   []string // * EXCEPT (a, b) / * EXCLUDE (a, b)
	Expr      Expr
	Alias     string
}

// OrderByItem represents an item in ORDER BY clause.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool // nil means default
}

// ---------- FROM Clause ----------

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// JoinType represents the type of join as its SQL keyword.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON clause (mutually exclusive with Using)
	Using     []string // USING (col1, col2)
}

// TableName represents a possibly qualified table name.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
	Pos     Position
}

func (*TableName) tableRefNode() {}

// Qualified returns the dotted catalog.schema.name form.
func (t *TableName) Qualified() string {
	s := t.Name
	if t.Schema != "" {
		s = t.Schema + "." + s
	}
	if t.Catalog != "" {
		s = t.Catalog + "." + s
	}
	return s
}

// DerivedTable represents a subquery in the FROM clause.
type DerivedTable struct {
	Select  *SelectStmt
	Alias   string
	Lateral bool
}

func (*DerivedTable) tableRefNode() {}

// TableFunc represents a table-valued function such as UNNEST(x) or
// TABLE(FLATTEN(input => col)).
type TableFunc struct {
	Name  string
	Args  []Expr
	Alias string
}

func (*TableFunc) tableRefNode() {}

// ---------- DML and DDL Statements ----------

// InsertStmt represents INSERT [OVERWRITE] [INTO] table [(cols)] query.
type InsertStmt struct {
	With      *WithClause // WITH ... INSERT
	Table     *TableName
	Columns   []string
	Query     *SelectStmt // nil for VALUES
	Overwrite bool
	Multi     bool // INSERT ALL / INSERT FIRST
}

func (*InsertStmt) stmtNode() {}

// CreateTableStmt represents CREATE TABLE with an optional source.
type CreateTableStmt struct {
	With        *WithClause
	Table       *TableName
	Query       *SelectStmt
	Like        *TableName
	Clone       *TableName
	OrReplace   bool
	IfNotExists bool
	Temporary   bool
}

func (*CreateTableStmt) stmtNode() {}

// CreateViewStmt represents CREATE [MATERIALIZED] VIEW name AS query.
type CreateViewStmt struct {
	With         *WithClause
	View         *TableName
	Query        *SelectStmt
	OrReplace    bool
	Materialized bool
}

func (*CreateViewStmt) stmtNode() {}

// DropStmt represents DROP TABLE|VIEW name[, name].
type DropStmt struct {
	Kind     string // TABLE, VIEW, MATERIALIZED VIEW, EXTERNAL TABLE
	Tables   []*TableName
	IfExists bool
}

func (*DropStmt) stmtNode() {}

// RenamePair is a single old -> new table rename.
type RenamePair struct {
	From *TableName
	To   *TableName
}

// RenameStmt represents ALTER TABLE a RENAME TO b or RENAME TABLE a TO b.
type RenameStmt struct {
	Pairs []RenamePair
}

func (*RenameStmt) stmtNode() {}

// AlterStmt represents any ALTER statement that does not rename a table.
type AlterStmt struct {
	Kind  string
	Table *TableName
}

func (*AlterStmt) stmtNode() {}

// Assignment is a SET column = value pair in UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// UpdateStmt represents UPDATE table SET ... [FROM ...] [WHERE ...].
type UpdateStmt struct {
	With  *WithClause
	Table *TableName
	Set   []Assignment
	From  *FromClause
	Where Expr
}

func (*UpdateStmt) stmtNode() {}

// MergeStmt holds the raw tokens of a MERGE statement. MERGE is not parsed
// structurally; dialects that support it walk the token stream themselves.
type MergeStmt struct {
	With   *WithClause // parsed CTEs of WITH ... MERGE; not part of Tokens
	Tokens []Token
	Text   string
}

func (*MergeStmt) stmtNode() {}

// OtherStmt represents a statement with no lineage meaning (SET, USE,
// GRANT, DELETE, CREATE SCHEMA, ...).
type OtherStmt struct {
	Keyword string
}

func (*OtherStmt) stmtNode() {}

// ---------- Expressions ----------

// ColumnRef represents a column reference (possibly qualified).
type ColumnRef struct {
	Table  string // optional table/alias qualifier
	Column string
}

func (*ColumnRef) exprNode() {}

// LiteralType classifies literals.
type LiteralType int

// Literal types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal represents a literal value.
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary operation.
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall represents a function call, including aggregate and window
// functions.
type FuncCall struct {
	Name     string
	Distinct bool
	Star     bool // COUNT(*)
	Args     []Expr
	OrderBy  []OrderByItem // ARRAY_AGG(x ORDER BY y), WITHIN GROUP (ORDER BY y)
	Filter   Expr
	Window   *WindowSpec
}

func (*FuncCall) exprNode() {}

// WindowSpec represents an OVER clause.
type WindowSpec struct {
	Name        string
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameType is ROWS, RANGE or GROUPS.
type FrameType string

// Frame types.
const (
	FrameRows   FrameType = "ROWS"
	FrameRange  FrameType = "RANGE"
	FrameGroups FrameType = "GROUPS"
)

// FrameSpec is a window frame.
type FrameSpec struct {
	Type  FrameType
	Start Expr // nil for UNBOUNDED / CURRENT ROW
	End   Expr
}

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN ... THEN ... arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type) and expr::type.
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr represents expr [NOT] IN (values | subquery).
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) exprNode() {}

// BetweenExpr represents expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsNullExpr represents expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) exprNode() {}

// IsBoolExpr represents expr IS [NOT] TRUE|FALSE.
type IsBoolExpr struct {
	Expr  Expr
	Not   bool
	Value bool
}

func (*IsBoolExpr) exprNode() {}

// LikeExpr represents expr [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Op      TokenType
	Pattern Expr
}

func (*LikeExpr) exprNode() {}

// ParenExpr represents a parenthesized expression or tuple.
type ParenExpr struct {
	Exprs []Expr
}

func (*ParenExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ExistsExpr represents [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}

// StarExpr represents * or t.* inside an expression, e.g. COUNT(t.*).
type StarExpr struct {
	Table string
}

func (*StarExpr) exprNode() {}

// IndexExpr represents subscript or path access: expr[idx], expr:field.
type IndexExpr struct {
	Expr  Expr
	Index Expr
}

func (*IndexExpr) exprNode() {}

// ArrayExpr represents an array literal [a, b].
type ArrayExpr struct {
	Elements []Expr
}

func (*ArrayExpr) exprNode() {}
