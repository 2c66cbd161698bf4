package lineage

import (
	"errors"
	"log/slog"

	"github.com/leapstack-labs/leaplineage/pkg/dialect"
	"github.com/leapstack-labs/leaplineage/pkg/parser"
)

// textParser derives table lineage from SQL text. It backs the generic
// dialect and the text fallbacks of the warehouse dialects.
type textParser struct {
	name     Dialect
	sql      *dialect.Dialect
	resolver *TableResolver
	logger   *slog.Logger

	// special handles statements the generic table analysis cannot. It
	// reports false to fall through to parser.Tables.
	special func(stmt parser.Statement, ps *ParsedStatement, qc *QueryContext) (bool, error)
}

func newTextParser(d Dialect, profile Profile, unescape func(string) string, logger *slog.Logger) *textParser {
	return &textParser{
		name:     d,
		sql:      d.SQL(),
		resolver: NewTableResolver(profile, unescape),
		logger:   logger,
	}
}

func newGenericParser(profile Profile, logger *slog.Logger) *textParser {
	return newTextParser(DialectGeneric, profile, nil, logger)
}

// Parse implements StatementParser.
func (p *textParser) Parse(sql string, qc *QueryContext) (*ParsedStatement, error) {
	ps, err := p.parseText(sql, qc)
	if err != nil {
		return nil, &StatementError{Dialect: p.name, SQL: sql, Err: err}
	}
	return ps, nil
}

// parseText parses every statement in sql and merges their tables.
func (p *textParser) parseText(sql string, qc *QueryContext) (*ParsedStatement, error) {
	stmts, err := parser.ParseScript(sql, p.sql)
	if err != nil {
		return nil, parseFailure(err)
	}

	ps := NewParsedStatement()
	for _, stmt := range stmts {
		if p.special != nil {
			handled, err := p.special(stmt, ps, qc)
			if err != nil {
				return nil, err
			}
			if handled {
				continue
			}
		}
		if err := p.addStatement(stmt, ps, qc); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// addStatement resolves the tables of one parsed statement into ps. Tables
// defined by a CTE in the same statement are not upstream tables and are
// removed from the read set before resolution.
func (p *textParser) addStatement(stmt parser.Statement, ps *ParsedStatement, qc *QueryContext) error {
	usage, err := parser.Tables(stmt)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedStatement) {
			return unsupported("%v", err)
		}
		return err
	}

	var reads []*TableRef
	for _, t := range usage.Read {
		if usage.IsIntermediate(t) {
			continue
		}
		reads = append(reads, tableRefFromName(t))
	}

	p.resolver.resolveAll(ps.Sources, reads, qc)
	p.resolver.resolveAll(ps.Targets, tableRefs(usage.Write), qc)
	p.resolver.resolveAll(ps.Dropped, tableRefs(usage.Drop), qc)
	for _, pair := range usage.Rename {
		p.addRename(ps, tableRefFromName(pair.From), tableRefFromName(pair.To), qc)
	}
	return nil
}

// addRename records a rename when both sides resolve.
func (p *textParser) addRename(ps *ParsedStatement, from, to *TableRef, qc *QueryContext) {
	oldName, ok := p.resolver.Resolve(from, qc.QueriedDatabase(), qc.QueriedSchema())
	if !ok {
		return
	}
	newName, ok := p.resolver.Resolve(to, qc.QueriedDatabase(), qc.QueriedSchema())
	if !ok {
		return
	}
	ps.AddRename(oldName, newName)
}

func tableRefs(names []*parser.TableName) []*TableRef {
	refs := make([]*TableRef, 0, len(names))
	for _, t := range names {
		refs = append(refs, tableRefFromName(t))
	}
	return refs
}
