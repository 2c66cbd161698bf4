package parser

import (
	"fmt"
	"strings"
)

// TableUsage summarizes how a statement touches tables.
type TableUsage struct {
	Read         []*TableName // tables read by any query in the statement
	Write        []*TableName // tables created or written
	Drop         []*TableName // tables dropped
	Rename       []RenamePair // tables renamed
	Intermediate []string     // CTE names defined anywhere in the statement
}

// Tables reports the tables a statement reads, writes, drops and renames.
// CTE references are reported in Read like any other table; callers remove
// them using Intermediate. MERGE and multi-table INSERT return
// ErrUnsupportedStatement.
func Tables(stmt Statement) (*TableUsage, error) {
	u := &TableUsage{}

	switch s := stmt.(type) {
	case *SelectStmt:
		u.collectQuery(s)
	case *InsertStmt:
		if s.Multi {
			return nil, fmt.Errorf("%w: INSERT ALL/FIRST", ErrUnsupportedStatement)
		}
		u.Write = append(u.Write, s.Table)
		u.collectWith(s.With)
		u.collectQuery(s.Query)
	case *CreateTableStmt:
		u.Write = append(u.Write, s.Table)
		u.collectWith(s.With)
		u.collectQuery(s.Query)
		if s.Like != nil {
			u.Read = append(u.Read, s.Like)
		}
		if s.Clone != nil {
			u.Read = append(u.Read, s.Clone)
		}
	case *CreateViewStmt:
		u.Write = append(u.Write, s.View)
		u.collectWith(s.With)
		u.collectQuery(s.Query)
	case *DropStmt:
		u.Drop = append(u.Drop, s.Tables...)
	case *RenameStmt:
		u.Rename = append(u.Rename, s.Pairs...)
	case *UpdateStmt:
		u.Write = append(u.Write, s.Table)
		u.collectWith(s.With)
		if s.From != nil {
			u.collect(s.From)
		}
		for _, a := range s.Set {
			u.collectExpr(a.Value)
		}
		u.collectExpr(s.Where)
	case *MergeStmt:
		return nil, fmt.Errorf("%w: MERGE", ErrUnsupportedStatement)
	case *AlterStmt, *OtherStmt:
		// no lineage
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStatement, stmt)
	}

	return u, nil
}

func (u *TableUsage) collectQuery(q *SelectStmt) {
	if q != nil {
		u.collect(q)
	}
}

func (u *TableUsage) collectWith(w *WithClause) {
	if w != nil {
		u.collect(w)
	}
}

func (u *TableUsage) collectExpr(e Expr) {
	if e != nil {
		u.collect(e)
	}
}

// collect gathers every table name and CTE name below node.
func (u *TableUsage) collect(node any) {
	Inspect(node, func(n any) bool {
		switch n := n.(type) {
		case *CTE:
			u.Intermediate = append(u.Intermediate, n.Name)
		case *TableName:
			u.Read = append(u.Read, n)
		}
		return true
	})
}

// IsIntermediate reports whether t names a CTE defined in the statement.
// Only unqualified names can refer to a CTE.
func (u *TableUsage) IsIntermediate(t *TableName) bool {
	if t == nil || t.Schema != "" || t.Catalog != "" {
		return false
	}
	for _, name := range u.Intermediate {
		if strings.EqualFold(name, t.Name) {
			return true
		}
	}
	return false
}
