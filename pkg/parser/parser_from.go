package parser

import (
	"strings"
)

// FROM clause parsing: table references, derived tables, table functions, JOINs.
//
// Grammar:
//
//	from_clause   → table_ref (join)*
//	table_ref     → table_name | derived_table | table_func | LATERAL (derived_table | table_func)
//	table_name    → name_part ("." name_part)* [time_travel] [[AS] identifier ["(" ident_list ")"]]
//	derived_table → "(" query ")" [[AS] identifier]
//	table_func    → identifier "(" args ")" [[AS] identifier]
//	join          → join_type JOIN table_ref [ON expr | USING "(" ident_list ")"] | "," table_ref
//	join_type     → [NATURAL] ([INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS)

func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{}
	from.Source = p.parseTableRef()

	for {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	return from
}

func (p *Parser) parseTableRef() TableRef {
	if p.match(TOKEN_LATERAL) {
		if p.check(TOKEN_LPAREN) {
			derived := p.parseDerivedTable()
			if dt, ok := derived.(*DerivedTable); ok {
				dt.Lateral = true
			}
			return derived
		}
		return p.parseTableFunc()
	}

	if p.check(TOKEN_LPAREN) {
		return p.parseDerivedTable()
	}

	// TABLE(...) and other table-valued functions
	if (p.check(TOKEN_IDENT) || p.check(TOKEN_TABLE)) && p.checkPeek(TOKEN_LPAREN) {
		return p.parseTableFunc()
	}

	return p.parseTableName(true)
}

// parseQualifiedName parses name_part ("." name_part)* into a TableName.
// BigQuery writes `project.dataset.table` as one quoted identifier, so dots
// inside quoted parts are split as well.
func (p *Parser) parseQualifiedName() *TableName {
	table := &TableName{Pos: p.token.Pos}

	if !p.check(TOKEN_IDENT) {
		p.addError("expected table name, found " + p.describe(p.token))
		return table
	}

	var parts []string
	appendPart := func(tok Token) {
		if tok.Quoted && strings.Contains(tok.Literal, ".") {
			parts = append(parts, strings.Split(tok.Literal, ".")...)
			return
		}
		parts = append(parts, tok.Literal)
	}

	appendPart(p.token)
	p.nextToken()

	for p.check(TOKEN_DOT) {
		p.nextToken()
		switch {
		case p.check(TOKEN_DOT):
			// catalog..table (default schema)
			parts = append(parts, "")
		case p.isNameToken(p.token):
			appendPart(p.token)
			p.nextToken()
		default:
			p.addError("expected name after '.'")
			return table
		}
	}

	switch n := len(parts); {
	case n == 1:
		table.Name = parts[0]
	case n == 2:
		table.Schema = parts[0]
		table.Name = parts[1]
	default:
		table.Catalog = strings.Join(parts[:n-2], ".")
		table.Schema = parts[n-2]
		table.Name = parts[n-1]
	}

	return table
}

// parseTableName parses a table name with an optional alias.
func (p *Parser) parseTableName(allowAlias bool) *TableName {
	table := p.parseQualifiedName()
	p.skipTimeTravel()

	if allowAlias {
		table.Alias = p.parseTableAlias()
	}

	return table
}

// skipTimeTravel skips BigQuery FOR SYSTEM_TIME AS OF and Snowflake
// AT(...)/BEFORE(...) clauses, which do not change lineage.
func (p *Parser) skipTimeTravel() {
	switch {
	case p.checkWord("FOR") && isWord(p.peek, "SYSTEM_TIME"):
		p.nextToken()
		p.nextToken()
		p.expect(TOKEN_AS)
		p.matchWord("OF")
		p.parseExpressionWithPrecedence(PrecedenceAddition)
	case (p.checkWord("AT") || p.checkWord("BEFORE")) && p.checkPeek(TOKEN_LPAREN):
		p.nextToken()
		p.skipBalanced()
	}
}

// parseTableAlias parses [AS] alias ["(" column_list ")"].
func (p *Parser) parseTableAlias() string {
	if !p.check(TOKEN_AS) && !(p.check(TOKEN_IDENT) && !p.isSoftClauseWord(p.token)) {
		return ""
	}
	alias := p.parseAlias()
	if alias != "" && p.check(TOKEN_LPAREN) && p.checkPeek(TOKEN_IDENT) &&
		(p.checkPeek2(TOKEN_COMMA) || p.checkPeek2(TOKEN_RPAREN)) {
		p.parseIdentList()
	}
	return alias
}

func (p *Parser) parseDerivedTable() TableRef {
	p.expect(TOKEN_LPAREN)

	// ((select ...)) and (table_ref join ...) both occur in the wild;
	// only subqueries carry lineage structure.
	if !p.startsQuery() {
		inner := p.parseFromClause()
		p.expect(TOKEN_RPAREN)
		if len(inner.Joins) == 0 {
			return inner.Source
		}
		return &DerivedTable{Select: fromOnlyQuery(inner), Alias: p.parseTableAlias()}
	}

	derived := &DerivedTable{}
	derived.Select = p.parseQuery()
	p.expect(TOKEN_RPAREN)
	derived.Alias = p.parseTableAlias()

	return derived
}

// fromOnlyQuery wraps a parenthesized join tree as SELECT * FROM <joins>.
func fromOnlyQuery(from *FromClause) *SelectStmt {
	return &SelectStmt{Body: &SelectBody{Left: &SelectCore{
		Columns: []SelectItem{{Star: true}},
		From:    from,
	}}}
}

func (p *Parser) parseTableFunc() TableRef {
	fn := &TableFunc{Name: strings.ToUpper(p.token.Literal)}
	if p.check(TOKEN_TABLE) {
		fn.Name = "TABLE"
	}
	p.nextToken()

	p.expect(TOKEN_LPAREN)
	if !p.check(TOKEN_RPAREN) {
		args := &FuncCall{}
		p.parseFuncArgs(args)
		fn.Args = args.Args
	}
	p.expect(TOKEN_RPAREN)

	fn.Alias = p.parseTableAlias()
	// UNNEST(...) [AS x] WITH OFFSET [AS off]
	if p.check(TOKEN_WITH) && p.checkPeek(TOKEN_OFFSET) {
		p.nextToken()
		p.nextToken()
		p.parseTableAlias()
	}

	return fn
}

// parseJoin parses a JOIN clause. Returns nil if no join follows.
func (p *Parser) parseJoin() *Join {
	join := &Join{}

	if p.match(TOKEN_COMMA) {
		join.Type = JoinComma
		join.Right = p.parseTableRef()
		return join
	}

	if p.match(TOKEN_NATURAL) {
		join.Natural = true
	}

	switch p.token.Type {
	case TOKEN_JOIN:
		join.Type = JoinInner
	case TOKEN_INNER:
		join.Type = JoinInner
		p.nextToken()
	case TOKEN_LEFT:
		join.Type = JoinLeft
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_RIGHT:
		join.Type = JoinRight
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_FULL:
		join.Type = JoinFull
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_CROSS:
		join.Type = JoinCross
		p.nextToken()
	default:
		if join.Natural {
			p.addError("expected JOIN after NATURAL")
		}
		return nil
	}

	if !p.expect(TOKEN_JOIN) {
		return nil
	}

	join.Right = p.parseTableRef()
	p.parseJoinCondition(join)
	return join
}

// parseJoinCondition handles ON/USING.
func (p *Parser) parseJoinCondition(join *Join) {
	switch {
	case p.match(TOKEN_ON):
		join.Condition = p.parseExpression()
	case p.check(TOKEN_USING):
		p.nextToken()
		join.Using = p.parseIdentList()
	}
}
