package parser

import "strings"

// DML and DDL parsing: INSERT, CREATE TABLE/VIEW, DROP, ALTER, RENAME, UPDATE, MERGE.
//
// Grammar:
//
//	insert   → INSERT [OVERWRITE] [INTO] [TABLE] table_name ["(" ident_list ")"] (query | VALUES ...)
//	         | INSERT (ALL|FIRST) ...
//	create   → CREATE [OR REPLACE] [modifiers] TABLE [IF NOT EXISTS] table_name
//	             ["(" defs ")"] [options] [AS query | LIKE table_name | CLONE table_name]
//	         | CREATE [OR REPLACE] [modifiers] [MATERIALIZED] VIEW [IF NOT EXISTS] table_name
//	             ["(" cols ")"] [options] AS query
//	drop     → DROP [MATERIALIZED|EXTERNAL] (TABLE|VIEW) [IF EXISTS] table_name ("," table_name)*
//	alter    → ALTER kind [IF EXISTS] table_name (RENAME TO table_name | ...)
//	rename   → RENAME TABLE table_name TO table_name ("," table_name TO table_name)*
//	update   → UPDATE table_name [[AS] alias] SET assignment ("," assignment)* [FROM from_clause] [WHERE expr]
//	merge    → MERGE ... (kept as raw tokens)

// createModifiers may appear between CREATE [OR REPLACE] and the object kind.
var createModifiers = map[string]bool{
	"TEMP": true, "TEMPORARY": true, "TRANSIENT": true, "VOLATILE": true,
	"LOCAL": true, "GLOBAL": true, "SECURE": true, "SNAPSHOT": true,
	"EXTERNAL": true, "UNLOGGED": true, "DYNAMIC": true, "ICEBERG": true,
}

func (p *Parser) parseInsert() Statement {
	p.expect(TOKEN_INSERT)
	stmt := &InsertStmt{}

	if p.check(TOKEN_ALL) || p.check(TOKEN_FIRST) {
		stmt.Multi = true
		p.skipToStatementEnd()
		return stmt
	}

	if p.matchWord("OVERWRITE") {
		stmt.Overwrite = true
	}
	p.match(TOKEN_INTO)
	p.match(TOKEN_TABLE)

	stmt.Table = p.parseTableName(false)

	// PARTITION (...) in Hive-style inserts
	if p.check(TOKEN_PARTITION) && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.skipBalanced()
	}

	if p.check(TOKEN_LPAREN) && !p.startsQuery() {
		stmt.Columns = p.parseIdentList()
	}
	// INSERT ... BY NAME SELECT
	if p.check(TOKEN_BY) && isWord(p.peek, "NAME") {
		p.nextToken()
		p.nextToken()
	}

	switch {
	case p.startsQuery():
		stmt.Query = p.parseQuery()
	case p.check(TOKEN_VALUES), p.checkWord("DEFAULT"):
		p.skipToStatementEnd()
	default:
		p.addError("expected query or VALUES in INSERT, found " + p.describe(p.token))
	}

	return stmt
}

func (p *Parser) parseCreate() Statement {
	p.expect(TOKEN_CREATE)

	orReplace := false
	if p.check(TOKEN_OR) && isWord(p.peek, "REPLACE") {
		p.nextToken()
		p.nextToken()
		orReplace = true
	}

	temporary := false
	for p.check(TOKEN_IDENT) && !p.token.Quoted && createModifiers[strings.ToUpper(p.token.Literal)] {
		switch strings.ToUpper(p.token.Literal) {
		case "TEMP", "TEMPORARY", "VOLATILE":
			temporary = true
		}
		p.nextToken()
	}

	switch {
	case p.match(TOKEN_TABLE):
		return p.parseCreateTable(orReplace, temporary)
	case p.match(TOKEN_VIEW):
		return p.parseCreateView(orReplace, false)
	case p.checkWord("MATERIALIZED") && p.checkPeek(TOKEN_VIEW):
		p.nextToken()
		p.nextToken()
		return p.parseCreateView(orReplace, true)
	}

	keyword := "CREATE " + strings.ToUpper(p.token.Literal)
	p.skipToStatementEnd()
	return &OtherStmt{Keyword: keyword}
}

// matchIfNotExists consumes IF NOT EXISTS.
func (p *Parser) matchIfNotExists() bool {
	if p.checkWord("IF") && p.checkPeek(TOKEN_NOT) && p.checkPeek2(TOKEN_EXISTS) {
		p.nextToken()
		p.nextToken()
		p.nextToken()
		return true
	}
	return false
}

// matchIfExists consumes IF EXISTS.
func (p *Parser) matchIfExists() bool {
	if p.checkWord("IF") && p.checkPeek(TOKEN_EXISTS) {
		p.nextToken()
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) parseCreateTable(orReplace, temporary bool) Statement {
	stmt := &CreateTableStmt{OrReplace: orReplace, Temporary: temporary}
	stmt.IfNotExists = p.matchIfNotExists()
	stmt.Table = p.parseTableName(false)

	if p.check(TOKEN_LPAREN) {
		if p.startsQuery() {
			stmt.Query = p.parseQuery()
			return stmt
		}
		p.skipBalanced()
	}

	for {
		switch {
		case p.check(TOKEN_EOF), p.check(TOKEN_SEMICOLON):
			return stmt
		case p.match(TOKEN_AS):
			stmt.Query = p.parseQuery()
			return stmt
		case p.match(TOKEN_LIKE):
			stmt.Like = p.parseTableName(false)
		case p.matchWord("CLONE"), p.matchWord("COPY"):
			stmt.Clone = p.parseTableName(false)
		case p.check(TOKEN_LPAREN):
			p.skipBalanced()
		default:
			p.nextToken()
		}
		if len(p.errors) > 0 {
			return stmt
		}
	}
}

func (p *Parser) parseCreateView(orReplace, materialized bool) Statement {
	stmt := &CreateViewStmt{OrReplace: orReplace, Materialized: materialized}
	p.matchIfNotExists()
	stmt.View = p.parseTableName(false)

	for !p.check(TOKEN_AS) {
		switch {
		case p.check(TOKEN_EOF), p.check(TOKEN_SEMICOLON):
			p.addError("expected AS in CREATE VIEW")
			return stmt
		case p.check(TOKEN_LPAREN):
			p.skipBalanced()
		default:
			p.nextToken()
		}
		if len(p.errors) > 0 {
			return stmt
		}
	}
	p.expect(TOKEN_AS)
	stmt.Query = p.parseQuery()
	return stmt
}

func (p *Parser) parseDrop() Statement {
	p.expect(TOKEN_DROP)

	var kind string
	switch {
	case p.match(TOKEN_TABLE):
		kind = "TABLE"
	case p.match(TOKEN_VIEW):
		kind = "VIEW"
	case (p.checkWord("MATERIALIZED") || p.checkWord("SECURE")) && p.checkPeek(TOKEN_VIEW):
		kind = strings.ToUpper(p.token.Literal) + " VIEW"
		p.nextToken()
		p.nextToken()
	case (p.checkWord("EXTERNAL") || p.checkWord("SNAPSHOT") || p.checkWord("DYNAMIC")) && p.checkPeek(TOKEN_TABLE):
		kind = strings.ToUpper(p.token.Literal) + " TABLE"
		p.nextToken()
		p.nextToken()
	default:
		keyword := "DROP " + strings.ToUpper(p.token.Literal)
		p.skipToStatementEnd()
		return &OtherStmt{Keyword: keyword}
	}

	stmt := &DropStmt{Kind: kind}
	stmt.IfExists = p.matchIfExists()
	for {
		stmt.Tables = append(stmt.Tables, p.parseTableName(false))
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	// CASCADE, RESTRICT, PURGE
	for p.check(TOKEN_IDENT) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseAlter() Statement {
	p.expect(TOKEN_ALTER)

	var kind string
	switch {
	case p.match(TOKEN_TABLE):
		kind = "TABLE"
	case p.match(TOKEN_VIEW):
		kind = "VIEW"
	case p.checkWord("MATERIALIZED") && p.checkPeek(TOKEN_VIEW):
		p.nextToken()
		p.nextToken()
		kind = "MATERIALIZED VIEW"
	default:
		kind = strings.ToUpper(p.token.Literal)
		p.skipToStatementEnd()
		return &AlterStmt{Kind: kind}
	}

	p.matchIfExists()
	table := p.parseTableName(false)

	if p.check(TOKEN_RENAME) && isWord(p.peek, "TO") {
		p.nextToken()
		p.nextToken()
		to := p.parseTableName(false)
		p.skipToStatementEnd()
		return &RenameStmt{Pairs: []RenamePair{{From: table, To: to}}}
	}

	p.skipToStatementEnd()
	return &AlterStmt{Kind: kind, Table: table}
}

func (p *Parser) parseRename() Statement {
	p.expect(TOKEN_RENAME)
	if !p.match(TOKEN_TABLE) {
		p.skipToStatementEnd()
		return &OtherStmt{Keyword: "RENAME"}
	}

	stmt := &RenameStmt{}
	for {
		from := p.parseTableName(false)
		if !p.matchWord("TO") {
			p.addError("expected TO in RENAME TABLE, found " + p.describe(p.token))
			return stmt
		}
		to := p.parseTableName(false)
		stmt.Pairs = append(stmt.Pairs, RenamePair{From: from, To: to})
		if !p.match(TOKEN_COMMA) {
			return stmt
		}
	}
}

func (p *Parser) parseUpdate() Statement {
	p.expect(TOKEN_UPDATE)
	stmt := &UpdateStmt{}
	stmt.Table = p.parseTableName(true)

	p.expect(TOKEN_SET)
	for {
		stmt.Set = append(stmt.Set, p.parseAssignment())
		if len(p.errors) > 0 || !p.match(TOKEN_COMMA) {
			break
		}
	}

	if p.match(TOKEN_FROM) {
		stmt.From = p.parseFromClause()
	}
	if p.match(TOKEN_WHERE) {
		stmt.Where = p.parseExpression()
	}
	return stmt
}

// parseAssignment parses [qualifier.]column = expr or (a, b) = expr.
func (p *Parser) parseAssignment() Assignment {
	var a Assignment
	if p.check(TOKEN_LPAREN) {
		a.Column = strings.Join(p.parseIdentList(), ", ")
	} else {
		for p.isNameToken(p.token) {
			a.Column = p.token.Literal
			p.nextToken()
			if !p.match(TOKEN_DOT) {
				break
			}
		}
	}
	p.expect(TOKEN_EQ)
	a.Value = p.parseExpression()
	return a
}

// parseMerge keeps the MERGE statement as raw tokens and source text.
func (p *Parser) parseMerge() Statement {
	start := p.token.Pos.Offset
	toks := p.skipToStatementEnd()
	end := p.token.Pos.Offset
	if end > len(p.input) {
		end = len(p.input)
	}
	return &MergeStmt{Tokens: toks, Text: p.input[start:end]}
}
