package lineage

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/parser"
)

// snowflakeDollar replaces '$' before parsing so names like table$1 and
// positional columns like $1 lex as plain identifiers.
const snowflakeDollar = "__dollar__"

// Statement kinds that never use the structured metadata.
var snowflakeTextOnly = []string{"DROP", "RENAME", "ALTER"}

type snowflakeParser struct {
	text     *textParser
	resolver *TableResolver
	logger   *slog.Logger
}

func newSnowflakeParser(profile Profile, logger *slog.Logger) *snowflakeParser {
	unescape := func(s string) string {
		return strings.ReplaceAll(s, snowflakeDollar, "$")
	}
	p := &snowflakeParser{
		text:   newTextParser(DialectSnowflake, profile, unescape, logger),
		logger: logger,
	}
	p.resolver = p.text.resolver
	p.text.special = p.special
	return p
}

// Parse implements StatementParser.
func (p *snowflakeParser) Parse(sql string, qc *QueryContext) (*ParsedStatement, error) {
	ps, err := p.parse(sql, qc)
	if err != nil {
		return nil, &StatementError{Dialect: DialectSnowflake, SQL: sql, Err: err}
	}
	return ps, nil
}

func (p *snowflakeParser) parse(sql string, qc *QueryContext) (*ParsedStatement, error) {
	if !p.textOnly(sql, qc) && qc.hasStructuredTables() {
		ps := NewParsedStatement()
		refs := qc.ReferencedTables()
		reads := make([]*TableRef, 0, len(refs))
		for i := range refs {
			reads = append(reads, &refs[i])
		}
		p.resolver.resolveAll(ps.Sources, reads, qc)
		p.resolver.resolveAll(ps.Targets, []*TableRef{qc.DestinationTable()}, qc)
		return ps, nil
	}

	return p.text.parseText(strings.ReplaceAll(sql, "$", snowflakeDollar), qc)
}

// textOnly reports whether the statement is DDL whose metadata is not
// trustworthy, judged by its query type or its leading keyword.
func (p *snowflakeParser) textOnly(sql string, qc *QueryContext) bool {
	queryType := qc.QueryType()
	text := strings.ToUpper(strings.TrimSpace(sql))
	for _, prefix := range snowflakeTextOnly {
		if strings.HasPrefix(queryType, prefix) || strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func (p *snowflakeParser) special(stmt parser.Statement, ps *ParsedStatement, qc *QueryContext) (bool, error) {
	merge, ok := stmt.(*parser.MergeStmt)
	if !ok {
		return false, nil
	}
	return true, p.mergeTables(merge, ps, qc)
}

type mergeState int

const (
	mergeNone mergeState = iota
	mergeInto
	mergeUsing
)

// mergeTables walks the top level of MERGE INTO target USING source. Tables
// seen in the INTO state are targets; tables seen in the USING state,
// including those read by a USING subquery, are sources.
func (p *snowflakeParser) mergeTables(m *parser.MergeStmt, ps *ParsedStatement, qc *QueryContext) error {
	toks := m.Tokens
	if len(toks) == 0 {
		return unsupported("empty MERGE")
	}
	base := toks[0].Pos.Offset

	var targets, sources []*TableRef
	state := mergeNone
	for i := 0; i < len(toks); i++ {
		switch toks[i].Type {
		case parser.TOKEN_INTO:
			state = mergeInto
			continue
		case parser.TOKEN_USING:
			state = mergeUsing
			continue
		case parser.TOKEN_ON, parser.TOKEN_WHEN:
			state = mergeNone
			continue
		}

		switch {
		case state == mergeNone:
			if toks[i].Type == parser.TOKEN_LPAREN {
				i = closingParen(toks, i)
			}
		case toks[i].Type == parser.TOKEN_IDENT:
			ref, next := mergeTableName(toks, i)
			if state == mergeInto {
				targets = append(targets, ref)
			} else {
				sources = append(sources, ref)
			}
			state = mergeNone
			i = next - 1
		case state == mergeUsing && toks[i].Type == parser.TOKEN_LPAREN:
			end := closingParen(toks, i)
			if end >= len(toks) || i+1 >= end {
				return unsupported("unterminated MERGE USING subquery")
			}
			sub := m.Text[toks[i+1].Pos.Offset-base : toks[end].Pos.Offset-base]
			if err := p.mergeSubquery(sub, m.With, ps, qc); err != nil {
				return err
			}
			state = mergeNone
			i = end
		}
	}

	if len(targets) == 0 {
		return unsupported("MERGE without INTO target")
	}
	if m.With != nil {
		// WITH ... MERGE: a USING name may be a CTE, whose reads are the
		// real sources.
		usage, err := parser.Tables(&parser.SelectStmt{With: m.With})
		if err != nil {
			return err
		}
		sources = withoutCTEs(sources, usage)
		for _, t := range usage.Read {
			if !usage.IsIntermediate(t) {
				sources = append(sources, tableRefFromName(t))
			}
		}
	}
	p.resolver.resolveAll(ps.Targets, targets, qc)
	p.resolver.resolveAll(ps.Sources, sources, qc)
	return nil
}

// withoutCTEs drops unqualified refs naming a CTE of usage.
func withoutCTEs(refs []*TableRef, usage *parser.TableUsage) []*TableRef {
	out := refs[:0]
	for _, ref := range refs {
		if ref.Schema == "" && usage.IsIntermediate(&parser.TableName{Name: ref.Name}) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// mergeSubquery adds the reads of a USING (...) subquery. CTEs of a
// leading WITH stay visible inside it.
func (p *snowflakeParser) mergeSubquery(sql string, with *parser.WithClause, ps *ParsedStatement, qc *QueryContext) error {
	query, err := parser.ParseQuery(sql, p.text.sql)
	if err != nil {
		return parseFailure(err)
	}
	return p.text.addStatement(query.WithCTEs(with), ps, qc)
}

// mergeTableName reads ident ("." ident)* starting at i and returns the
// reference and the index after it.
func mergeTableName(toks []parser.Token, i int) (*TableRef, int) {
	parts := []string{toks[i].Literal}
	i++
	for i+1 < len(toks) && toks[i].Type == parser.TOKEN_DOT && toks[i+1].Type == parser.TOKEN_IDENT {
		parts = append(parts, toks[i+1].Literal)
		i += 2
	}
	ref := ParseTableRef(strings.Join(parts, "."))
	return &ref, i
}

// closingParen returns the index of the RPAREN matching toks[open], or
// len(toks) when unbalanced.
func closingParen(toks []parser.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Type {
		case parser.TOKEN_LPAREN:
			depth++
		case parser.TOKEN_RPAREN:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks)
}
