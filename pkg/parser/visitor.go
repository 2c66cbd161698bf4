package parser

// Inspect traverses the AST rooted at node in depth-first order. It calls
// fn(node) for every node; if fn returns false, the children of that node
// are skipped. Nil nodes are never passed to fn.
func Inspect(node any, fn func(any) bool) {
	if isNilNode(node) || !fn(node) {
		return
	}

	switch n := node.(type) {
	// statements
	case *SelectStmt:
		if n.With != nil {
			Inspect(n.With, fn)
		}
		if n.Body != nil {
			Inspect(n.Body, fn)
		}
	case *WithClause:
		for _, cte := range n.CTEs {
			Inspect(cte, fn)
		}
	case *CTE:
		if n.Select != nil {
			Inspect(n.Select, fn)
		}
	case *SelectBody:
		if n.Left != nil {
			Inspect(n.Left, fn)
		}
		if n.Nested != nil {
			Inspect(n.Nested, fn)
		}
		if n.Right != nil {
			Inspect(n.Right, fn)
		}
	case *SelectCore:
		for _, item := range n.Columns {
			inspectExpr(item.Expr, fn)
		}
		if n.From != nil {
			Inspect(n.From, fn)
		}
		inspectExpr(n.Where, fn)
		inspectExprs(n.GroupBy, fn)
		inspectExpr(n.Having, fn)
		inspectExpr(n.Qualify, fn)
		inspectOrderBy(n.OrderBy, fn)
		inspectExpr(n.Limit, fn)
		inspectExpr(n.Offset, fn)
	case *InsertStmt:
		if n.With != nil {
			Inspect(n.With, fn)
		}
		if n.Table != nil {
			Inspect(n.Table, fn)
		}
		if n.Query != nil {
			Inspect(n.Query, fn)
		}
	case *CreateTableStmt:
		if n.With != nil {
			Inspect(n.With, fn)
		}
		for _, t := range []*TableName{n.Table, n.Like, n.Clone} {
			if t != nil {
				Inspect(t, fn)
			}
		}
		if n.Query != nil {
			Inspect(n.Query, fn)
		}
	case *CreateViewStmt:
		if n.With != nil {
			Inspect(n.With, fn)
		}
		if n.View != nil {
			Inspect(n.View, fn)
		}
		if n.Query != nil {
			Inspect(n.Query, fn)
		}
	case *DropStmt:
		for _, t := range n.Tables {
			Inspect(t, fn)
		}
	case *RenameStmt:
		for _, pair := range n.Pairs {
			Inspect(pair.From, fn)
			Inspect(pair.To, fn)
		}
	case *AlterStmt:
		if n.Table != nil {
			Inspect(n.Table, fn)
		}
	case *UpdateStmt:
		if n.With != nil {
			Inspect(n.With, fn)
		}
		if n.Table != nil {
			Inspect(n.Table, fn)
		}
		for _, a := range n.Set {
			inspectExpr(a.Value, fn)
		}
		if n.From != nil {
			Inspect(n.From, fn)
		}
		inspectExpr(n.Where, fn)

	// FROM clause
	case *FromClause:
		if n.Source != nil {
			Inspect(n.Source, fn)
		}
		for _, join := range n.Joins {
			Inspect(join, fn)
		}
	case *Join:
		if n.Right != nil {
			Inspect(n.Right, fn)
		}
		inspectExpr(n.Condition, fn)
	case *DerivedTable:
		if n.Select != nil {
			Inspect(n.Select, fn)
		}
	case *TableFunc:
		inspectExprs(n.Args, fn)

	// expressions
	case *BinaryExpr:
		inspectExpr(n.Left, fn)
		inspectExpr(n.Right, fn)
	case *UnaryExpr:
		inspectExpr(n.Expr, fn)
	case *FuncCall:
		inspectExprs(n.Args, fn)
		inspectOrderBy(n.OrderBy, fn)
		inspectExpr(n.Filter, fn)
		if n.Window != nil {
			Inspect(n.Window, fn)
		}
	case *WindowSpec:
		inspectExprs(n.PartitionBy, fn)
		inspectOrderBy(n.OrderBy, fn)
		if n.Frame != nil {
			inspectExpr(n.Frame.Start, fn)
			inspectExpr(n.Frame.End, fn)
		}
	case *CaseExpr:
		inspectExpr(n.Operand, fn)
		for _, w := range n.Whens {
			inspectExpr(w.Condition, fn)
			inspectExpr(w.Result, fn)
		}
		inspectExpr(n.Else, fn)
	case *CastExpr:
		inspectExpr(n.Expr, fn)
	case *InExpr:
		inspectExpr(n.Expr, fn)
		inspectExprs(n.Values, fn)
		if n.Query != nil {
			Inspect(n.Query, fn)
		}
	case *BetweenExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Low, fn)
		inspectExpr(n.High, fn)
	case *IsNullExpr:
		inspectExpr(n.Expr, fn)
	case *IsBoolExpr:
		inspectExpr(n.Expr, fn)
	case *LikeExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Pattern, fn)
	case *ParenExpr:
		inspectExprs(n.Exprs, fn)
	case *SubqueryExpr:
		if n.Select != nil {
			Inspect(n.Select, fn)
		}
	case *ExistsExpr:
		if n.Select != nil {
			Inspect(n.Select, fn)
		}
	case *IndexExpr:
		inspectExpr(n.Expr, fn)
		inspectExpr(n.Index, fn)
	case *ArrayExpr:
		inspectExprs(n.Elements, fn)
	}
}

func inspectExpr(e Expr, fn func(any) bool) {
	if e != nil {
		Inspect(e, fn)
	}
}

func inspectExprs(exprs []Expr, fn func(any) bool) {
	for _, e := range exprs {
		inspectExpr(e, fn)
	}
}

func inspectOrderBy(items []OrderByItem, fn func(any) bool) {
	for _, item := range items {
		inspectExpr(item.Expr, fn)
	}
}

// isNilNode guards against typed nil pointers stored in interfaces.
func isNilNode(node any) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *SelectStmt:
		return n == nil
	case *SelectBody:
		return n == nil
	case *SelectCore:
		return n == nil
	case *TableName:
		return n == nil
	case *FromClause:
		return n == nil
	case *ColumnRef:
		return n == nil
	case *FuncCall:
		return n == nil
	case *WindowSpec:
		return n == nil
	}
	return false
}

// ColumnRefs returns the column references in expr, in source order. Scalar
// subqueries, EXISTS and IN (subquery) bodies are not descended into since
// their columns belong to another scope.
func ColumnRefs(expr Expr) []*ColumnRef {
	var refs []*ColumnRef
	inspectExpr(expr, func(n any) bool {
		switch n := n.(type) {
		case *ColumnRef:
			refs = append(refs, n)
		case *SelectStmt:
			return false
		}
		return true
	})
	return refs
}

// Subqueries returns the queries nested directly inside expr: scalar
// subqueries, EXISTS bodies and IN (subquery) lists.
func Subqueries(expr Expr) []*SelectStmt {
	var out []*SelectStmt
	inspectExpr(expr, func(n any) bool {
		if s, ok := n.(*SelectStmt); ok {
			out = append(out, s)
			return false
		}
		return true
	})
	return out
}
