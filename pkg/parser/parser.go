// Package parser provides a dialect-aware SQL parser that recovers just
// enough structure for lineage: table references in every statement kind and
// the select lists, sources and join conditions of queries.
//
// # Usage
//
//	stmts, err := parser.ParseScript("insert into t select a from s; drop table s", d)
//	if err != nil {
//	    // handle error
//	}
//	usage, err := parser.Tables(stmts[0])
//
// # Grammar Overview
//
// The parser is recursive descent with Pratt-style expression parsing:
//
//	script        → statement (";" statement)* [";"]
//	statement     → query | insert | create | drop | alter | rename | update | merge | other
//	query         → [WITH cte_list] select_body
//	select_body   → (select_core | "(" query ")") [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_core   → SELECT [DISTINCT|ALL] select_list [FROM from_clause]
//	                [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	                [QUALIFY expr] [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//
// See each file for the grammar of that section. Statements with no lineage
// meaning are skipped up to the next top-level semicolon and reported as
// OtherStmt.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/dialect"
	"github.com/leapstack-labs/leaplineage/pkg/token"
)

// Parser parses SQL into an AST.
type Parser struct {
	input   string
	lexer   *Lexer
	token   Token // current token
	peek    Token // lookahead token
	peek2   Token // second lookahead token
	errors  []error
	dialect *dialect.Dialect
}

// NewParser creates a new parser for the given SQL input. A nil dialect
// selects the generic dialect.
func NewParser(sql string, d *dialect.Dialect) *Parser {
	if d == nil {
		d = dialect.Default()
	}
	p := &Parser{
		input:   sql,
		lexer:   NewLexer(sql, d),
		dialect: d,
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// ParseScript parses every statement in sql. Empty statements between
// semicolons are skipped. The first error aborts the whole script.
func ParseScript(sql string, d *dialect.Dialect) ([]Statement, error) {
	p := NewParser(sql, d)
	var stmts []Statement

	for {
		for p.match(TOKEN_SEMICOLON) {
		}
		if p.check(TOKEN_EOF) {
			break
		}

		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return nil, p.errors[0]
		}
		if !p.check(TOKEN_SEMICOLON) && !p.check(TOKEN_EOF) {
			p.addError(fmt.Sprintf("unexpected token %s after end of statement", p.describe(p.token)))
			return nil, p.errors[0]
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

// ParseStatement parses exactly one statement.
func ParseStatement(sql string, d *dialect.Dialect) (Statement, error) {
	stmts, err := ParseScript(sql, d)
	if err != nil {
		return nil, err
	}
	switch len(stmts) {
	case 0:
		return nil, &ParseError{Message: ErrEmptyStatement}
	case 1:
		return stmts[0], nil
	default:
		return nil, &ParseError{Message: fmt.Sprintf(ErrMultipleStatements, len(stmts))}
	}
}

// ParseQuery parses a single query (SELECT or WITH ... SELECT).
func ParseQuery(sql string, d *dialect.Dialect) (*SelectStmt, error) {
	stmt, err := ParseStatement(sql, d)
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf(ErrNotAQuery, statementKind(stmt))}
	}
	return sel, nil
}

// Dialect returns the parser's dialect.
func (p *Parser) Dialect() *dialect.Dialect {
	return p.dialect
}

// ---------- Token Helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

func (p *Parser) checkPeek2(t TokenType) bool {
	return p.peek2.Type == t
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// checkWord reports whether the current token is an unquoted identifier
// spelling the given soft keyword (REPLACE, TEMPORARY, CLONE, ...).
func (p *Parser) checkWord(word string) bool {
	return isWord(p.token, word)
}

// matchWord consumes the current token if it spells the given soft keyword.
func (p *Parser) matchWord(word string) bool {
	if p.checkWord(word) {
		p.nextToken()
		return true
	}
	return false
}

func isWord(tok Token, word string) bool {
	return tok.Type == TOKEN_IDENT && !tok.Quoted && strings.EqualFold(tok.Literal, word)
}

func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

func (p *Parser) describe(tok Token) string {
	if tok.Type == TOKEN_IDENT || tok.Type == TOKEN_ILLEGAL {
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	}
	return tok.Type.String()
}

// ---------- Keyword Helpers ----------

// isKeyword returns true if the token is a reserved keyword that can't be
// used as an alias.
func (p *Parser) isKeyword(tok Token) bool {
	if tok.Type == TOKEN_IDENT {
		return false
	}
	return token.IsKeyword(tok.Type) || token.IsDynamic(tok.Type)
}

// isNameToken reports whether tok can be used as a name segment after a dot.
// Keywords are accepted there because t.values or s.table are unambiguous.
func (p *Parser) isNameToken(tok Token) bool {
	return tok.Type == TOKEN_IDENT || token.IsKeyword(tok.Type) || token.IsDynamic(tok.Type)
}

func (p *Parser) isJoinKeyword(tok Token) bool {
	switch tok.Type {
	case TOKEN_JOIN, TOKEN_LEFT, TOKEN_RIGHT, TOKEN_INNER, TOKEN_OUTER,
		TOKEN_FULL, TOKEN_CROSS, TOKEN_ON, TOKEN_LATERAL, TOKEN_NATURAL, TOKEN_USING:
		return true
	}
	return false
}

// parseAlias parses [AS] alias. Bare aliases must be plain identifiers that
// are not soft clause words.
func (p *Parser) parseAlias() string {
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) || p.check(TOKEN_STRING) {
			alias := p.token.Literal
			p.nextToken()
			return alias
		}
		p.addError("expected alias after AS")
		return ""
	}
	if p.check(TOKEN_IDENT) && !p.isSoftClauseWord(p.token) {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	return ""
}

// isSoftClauseWord reports identifiers that begin a trailing clause in some
// dialect and therefore cannot be bare aliases.
func (p *Parser) isSoftClauseWord(tok Token) bool {
	if tok.Quoted {
		return false
	}
	switch strings.ToUpper(tok.Literal) {
	case "FETCH", "SAMPLE", "TABLESAMPLE", "PIVOT", "UNPIVOT", "MATCH_RECOGNIZE",
		"CONNECT", "START", "FOR", "RETURNING", "CLUSTER", "OPTIONS", "AT", "BEFORE", "CHANGES":
		return true
	}
	return false
}

// skipToStatementEnd consumes tokens up to the next top-level semicolon or
// EOF and returns them.
func (p *Parser) skipToStatementEnd() []Token {
	var toks []Token
	depth := 0
	for !p.check(TOKEN_EOF) {
		if depth == 0 && p.check(TOKEN_SEMICOLON) {
			break
		}
		switch p.token.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth > 0 {
				depth--
			}
		}
		toks = append(toks, p.token)
		p.nextToken()
	}
	return toks
}

// skipBalanced consumes a parenthesized group starting at the current LPAREN.
func (p *Parser) skipBalanced() {
	if !p.check(TOKEN_LPAREN) {
		return
	}
	depth := 0
	for !p.check(TOKEN_EOF) {
		switch p.token.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		}
		p.nextToken()
	}
	p.addError("unbalanced parentheses")
}

func statementKind(stmt Statement) string {
	switch s := stmt.(type) {
	case *SelectStmt:
		return "SELECT"
	case *InsertStmt:
		return "INSERT"
	case *CreateTableStmt:
		return "CREATE TABLE"
	case *CreateViewStmt:
		return "CREATE VIEW"
	case *DropStmt:
		return "DROP " + s.Kind
	case *RenameStmt:
		return "RENAME"
	case *AlterStmt:
		return "ALTER " + s.Kind
	case *UpdateStmt:
		return "UPDATE"
	case *MergeStmt:
		return "MERGE"
	case *OtherStmt:
		return s.Keyword
	default:
		return fmt.Sprintf("%T", stmt)
	}
}
