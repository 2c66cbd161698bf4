package parser

import "github.com/leapstack-labs/leaplineage/pkg/dialect"

// Query parsing: WITH clause, CTEs, SELECT body, SELECT list, ORDER BY.
//
// Grammar:
//
//	query         → [WITH [RECURSIVE] cte_list] select_body
//	cte_list      → cte ("," cte)*
//	cte           → identifier ["(" ident_list ")"] AS "(" query ")"
//	select_body   → select_term [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_term   → select_core | "(" query ")"
//	select_item   → "*" [star_modifier] | table "." "*" [star_modifier] | expr [[AS] identifier]
//	star_modifier → (EXCEPT|EXCLUDE) "(" ident_list ")" | REPLACE "(" ... ")"
//	order_item    → expr [ASC|DESC] [NULLS FIRST|LAST]

// parseStatement dispatches on the leading keyword.
func (p *Parser) parseStatement() Statement {
	switch p.token.Type {
	case TOKEN_SELECT:
		return p.parseQuery()
	case TOKEN_WITH:
		return p.parseWithStatement()
	case TOKEN_LPAREN:
		if p.startsQuery() {
			return p.parseQuery()
		}
	case TOKEN_INSERT:
		return p.parseInsert()
	case TOKEN_CREATE:
		return p.parseCreate()
	case TOKEN_DROP:
		return p.parseDrop()
	case TOKEN_ALTER:
		return p.parseAlter()
	case TOKEN_RENAME:
		return p.parseRename()
	case TOKEN_UPDATE:
		return p.parseUpdate()
	case TOKEN_MERGE:
		return p.parseMerge()
	}

	keyword := p.token.Literal
	if p.token.Type != TOKEN_IDENT {
		keyword = p.token.Type.String()
	}
	p.skipToStatementEnd()
	return &OtherStmt{Keyword: keyword}
}

// startsQuery reports whether a query starts at the current token,
// possibly wrapped in any number of parentheses. Parenthesized join trees
// and column lists need more lookahead than the parser buffers, so the
// input is re-scanned from the current offset.
func (p *Parser) startsQuery() bool {
	switch p.token.Type {
	case TOKEN_SELECT, TOKEN_WITH:
		return true
	case TOKEN_LPAREN:
	default:
		return false
	}
	start := p.token.Pos.Offset
	if start < 0 || start >= len(p.input) {
		return false
	}
	l := NewLexer(p.input[start:], p.dialect)
	for {
		switch l.NextToken().Type {
		case TOKEN_LPAREN:
			continue
		case TOKEN_SELECT, TOKEN_WITH:
			return true
		default:
			return false
		}
	}
}

// parseWithStatement parses WITH followed by a query or by INSERT, CREATE,
// UPDATE or MERGE. The CTEs are attached to the statement that follows.
func (p *Parser) parseWithStatement() Statement {
	with := p.parseWithClause()

	switch p.token.Type {
	case TOKEN_INSERT:
		stmt := p.parseInsert()
		if s, ok := stmt.(*InsertStmt); ok {
			s.With = with
		}
		return stmt
	case TOKEN_CREATE:
		stmt := p.parseCreate()
		switch s := stmt.(type) {
		case *CreateTableStmt:
			s.With = with
		case *CreateViewStmt:
			s.With = with
		}
		return stmt
	case TOKEN_UPDATE:
		stmt := p.parseUpdate()
		if s, ok := stmt.(*UpdateStmt); ok {
			s.With = with
		}
		return stmt
	case TOKEN_MERGE:
		stmt := p.parseMerge()
		if s, ok := stmt.(*MergeStmt); ok {
			s.With = with
		}
		return stmt
	}

	return &SelectStmt{With: with, Body: p.parseSelectBody()}
}

// parseQuery parses a complete query with optional WITH clause.
func (p *Parser) parseQuery() *SelectStmt {
	stmt := &SelectStmt{}

	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
	}

	stmt.Body = p.parseSelectBody()
	return stmt
}

func (p *Parser) parseWithClause() *WithClause {
	p.expect(TOKEN_WITH)
	with := &WithClause{}

	if p.match(TOKEN_RECURSIVE) {
		with.Recursive = true
	}

	for {
		with.CTEs = append(with.CTEs, p.parseCTE())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return with
}

func (p *Parser) parseCTE() *CTE {
	cte := &CTE{}

	if !p.check(TOKEN_IDENT) {
		p.addError("expected CTE name")
		return cte
	}
	cte.Name = p.token.Literal
	p.nextToken()

	if p.check(TOKEN_LPAREN) {
		cte.Columns = p.parseIdentList()
	}

	p.expect(TOKEN_AS)
	p.matchWord("MATERIALIZED")

	p.expect(TOKEN_LPAREN)
	cte.Select = p.parseQuery()
	p.expect(TOKEN_RPAREN)

	return cte
}

func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{}

	if p.check(TOKEN_LPAREN) {
		p.nextToken()
		body.Nested = p.parseQuery()
		p.expect(TOKEN_RPAREN)
	} else {
		body.Left = p.parseSelectCore()
	}

	switch p.token.Type {
	case TOKEN_UNION:
		p.nextToken()
		if p.match(TOKEN_ALL) {
			body.Op = SetOpUnionAll
			body.All = true
		} else {
			body.Op = SetOpUnion
			p.match(TOKEN_DISTINCT)
		}
		p.parseSetOpByName()
	case TOKEN_INTERSECT:
		p.nextToken()
		body.Op = SetOpIntersect
		p.match(TOKEN_ALL)
		p.match(TOKEN_DISTINCT)
	case TOKEN_EXCEPT:
		p.nextToken()
		body.Op = SetOpExcept
		p.match(TOKEN_ALL)
		p.match(TOKEN_DISTINCT)
	default:
		return body
	}

	body.Right = p.parseSelectBody()
	return body
}

// parseSetOpByName consumes UNION [ALL] BY NAME.
func (p *Parser) parseSetOpByName() {
	if p.check(TOKEN_BY) && isWord(p.peek, "NAME") {
		p.nextToken()
		p.nextToken()
	}
}

func (p *Parser) parseSelectCore() *SelectCore {
	p.expect(TOKEN_SELECT)
	core := &SelectCore{}

	if p.match(TOKEN_DISTINCT) {
		core.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}
	// BigQuery SELECT AS STRUCT / AS VALUE
	if p.check(TOKEN_AS) && (isWord(p.peek, "STRUCT") || isWord(p.peek, "VALUE")) {
		p.nextToken()
		p.nextToken()
	}
	// TOP n (Snowflake)
	if p.checkWord("TOP") && p.checkPeek(TOKEN_NUMBER) {
		p.nextToken()
		p.nextToken()
	}

	core.Columns = p.parseSelectList()

	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}

	p.parseClauses(core)
	return core
}

// parseClauses parses the optional trailing clauses in any order the
// supported dialects allow.
func (p *Parser) parseClauses(core *SelectCore) {
	for {
		switch {
		case p.match(TOKEN_WHERE):
			core.Where = p.parseExpression()
		case p.check(TOKEN_GROUP):
			p.nextToken()
			p.expect(TOKEN_BY)
			if p.match(TOKEN_ALL) {
				continue
			}
			core.GroupBy = p.parseGroupByList()
		case p.match(TOKEN_HAVING):
			core.Having = p.parseExpression()
		case p.check(dialect.TokenQualify):
			p.nextToken()
			core.Qualify = p.parseExpression()
		case p.match(TOKEN_WINDOW):
			p.parseWindowDefs()
		case p.check(TOKEN_ORDER):
			p.nextToken()
			p.expect(TOKEN_BY)
			core.OrderBy = p.parseOrderByList()
		case p.match(TOKEN_LIMIT):
			core.Limit = p.parseExpression()
			if p.match(TOKEN_COMMA) {
				core.Offset = core.Limit
				core.Limit = p.parseExpression()
			}
		case p.match(TOKEN_OFFSET):
			core.Offset = p.parseExpression()
			if !p.match(TOKEN_ROWS) {
				p.match(TOKEN_ROW)
			}
		case p.checkWord("FETCH"):
			p.parseFetch(core)
		default:
			return
		}
		if len(p.errors) > 0 {
			return
		}
	}
}

// parseGroupByList handles plain expressions plus ROLLUP/CUBE/GROUPING SETS,
// which all reduce to their inner expressions.
func (p *Parser) parseGroupByList() []Expr {
	var exprs []Expr
	for {
		if (p.checkWord("ROLLUP") || p.checkWord("CUBE")) && p.checkPeek(TOKEN_LPAREN) {
			p.nextToken()
			p.nextToken()
			exprs = append(exprs, p.parseExpressionList()...)
			p.expect(TOKEN_RPAREN)
		} else if p.checkWord("GROUPING") && isWord(p.peek, "SETS") {
			p.nextToken()
			p.nextToken()
			p.expect(TOKEN_LPAREN)
			exprs = append(exprs, p.parseExpressionList()...)
			p.expect(TOKEN_RPAREN)
		} else {
			exprs = append(exprs, p.parseExpression())
		}
		if !p.match(TOKEN_COMMA) {
			return exprs
		}
	}
}

// parseWindowDefs parses WINDOW w AS (...), ... and discards the definitions;
// OVER w references keep only the name.
func (p *Parser) parseWindowDefs() {
	for {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected window name")
			return
		}
		p.nextToken()
		p.expect(TOKEN_AS)
		p.parseWindowSpec()
		if !p.match(TOKEN_COMMA) {
			return
		}
	}
}

// parseFetch parses FETCH FIRST|NEXT n ROWS ONLY.
func (p *Parser) parseFetch(core *SelectCore) {
	p.nextToken() // FETCH
	if !p.match(TOKEN_FIRST) {
		p.matchWord("NEXT")
	}
	if !p.check(TOKEN_ROWS) && !p.check(TOKEN_ROW) {
		core.Limit = p.parseExpression()
	}
	if !p.match(TOKEN_ROWS) {
		p.match(TOKEN_ROW)
	}
	p.matchWord("ONLY")
}

func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem

	for {
		items = append(items, p.parseSelectItem())
		if !p.match(TOKEN_COMMA) {
			break
		}
		// trailing comma before FROM (BigQuery, Snowflake)
		if p.check(TOKEN_FROM) {
			break
		}
	}

	return items
}

func (p *Parser) parseSelectItem() SelectItem {
	item := SelectItem{}

	if p.check(TOKEN_STAR) {
		item.Star = true
		p.nextToken()
		item.Exclude = p.parseStarModifiers()
		return item
	}

	// table.* using 3-token lookahead
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_STAR) {
		item.TableStar = p.token.Literal
		p.nextToken()
		p.nextToken()
		p.nextToken()
		item.Exclude = p.parseStarModifiers()
		return item
	}

	item.Expr = p.parseExpression()

	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) || p.check(TOKEN_STRING) || p.isNameToken(p.token) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS")
		}
	} else if p.check(TOKEN_IDENT) && !p.isSoftClauseWord(p.token) {
		item.Alias = p.token.Literal
		p.nextToken()
	}

	return item
}

// parseStarModifiers parses EXCEPT/EXCLUDE column lists and skips REPLACE
// and RENAME modifiers, which do not change which columns flow through.
func (p *Parser) parseStarModifiers() []string {
	var excluded []string
	for {
		switch {
		case (p.check(TOKEN_EXCEPT) || p.checkWord("EXCLUDE")) && p.checkPeek(TOKEN_LPAREN):
			p.nextToken()
			excluded = append(excluded, p.parseIdentList()...)
		case p.checkWord("EXCLUDE") && p.checkPeek(TOKEN_IDENT):
			p.nextToken()
			excluded = append(excluded, p.token.Literal)
			p.nextToken()
		case (p.checkWord("REPLACE") || p.check(TOKEN_RENAME)) && p.checkPeek(TOKEN_LPAREN):
			p.nextToken()
			p.skipBalanced()
		default:
			return excluded
		}
	}
}

// parseIdentList parses "(" ident ("," ident)* ")".
func (p *Parser) parseIdentList() []string {
	p.expect(TOKEN_LPAREN)
	var names []string
	for {
		if !p.isNameToken(p.token) {
			p.addError("expected identifier")
			break
		}
		names = append(names, p.token.Literal)
		p.nextToken()
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return names
}

func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		items = append(items, p.parseOrderByItem())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

func (p *Parser) parseOrderByItem() OrderByItem {
	item := OrderByItem{}
	item.Expr = p.parseExpression()

	if p.match(TOKEN_ASC) {
		item.Desc = false
	} else if p.match(TOKEN_DESC) {
		item.Desc = true
	}

	if p.match(TOKEN_NULLS) {
		if p.match(TOKEN_FIRST) {
			b := true
			item.NullsFirst = &b
		} else if p.match(TOKEN_LAST) {
			b := false
			item.NullsFirst = &b
		}
	}

	return item
}

func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		exprs = append(exprs, p.parseExpression())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return exprs
}
