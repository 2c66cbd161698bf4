package parser

import "strings"

// Special expression parsing: CASE, CAST, EXISTS, parenthesized expressions, subqueries.
//
// Grammar:
//
//	case_expr     → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	cast_expr     → (CAST|TRY_CAST|SAFE_CAST) "(" expr AS type_name ")"
//	exists_expr   → [NOT] EXISTS "(" query ")"
//	paren_expr    → "(" expr ("," expr)* ")" | "(" query ")"
//	type_name     → name+ ["(" args ")"] ["<" ... ">"] ["[" "]"]

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	caseExpr := &CaseExpr{}

	// Simple CASE: CASE expr WHEN ...
	if !p.check(TOKEN_WHEN) {
		caseExpr.Operand = p.parseExpression()
	}

	for p.match(TOKEN_WHEN) {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}

	if p.match(TOKEN_ELSE) {
		caseExpr.Else = p.parseExpression()
	}

	p.expect(TOKEN_END)
	return caseExpr
}

// parseCastExpr parses a CAST expression.
func (p *Parser) parseCastExpr() Expr {
	p.expect(TOKEN_CAST)
	return p.parseCastBody()
}

// parseCastBody parses "(" expr AS type_name [FORMAT string] ")".
func (p *Parser) parseCastBody() Expr {
	p.expect(TOKEN_LPAREN)

	cast := &CastExpr{}
	cast.Expr = p.parseExpression()

	p.expect(TOKEN_AS)
	cast.TypeName = p.parseTypeName()
	if p.checkWord("FORMAT") {
		p.nextToken()
		p.parsePrimary()
	}

	p.expect(TOKEN_RPAREN)
	return cast
}

// typeNameWords continue a multi-word type name.
var typeNameWords = map[string]bool{
	"PRECISION": true, "VARYING": true, "UNSIGNED": true,
}

// parseTypeName parses a type name with optional parameters and returns its
// canonical text.
func (p *Parser) parseTypeName() string {
	if !p.isNameToken(p.token) {
		p.addError("expected type name, found " + p.describe(p.token))
		return ""
	}

	var b strings.Builder
	base := strings.ToUpper(p.token.Literal)
	b.WriteString(base)
	p.nextToken()

	for p.check(TOKEN_IDENT) && typeNameWords[strings.ToUpper(p.token.Literal)] {
		b.WriteString(" " + strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	// TIMESTAMP WITH[OUT] [LOCAL] TIME ZONE
	if (p.check(TOKEN_WITH) || p.checkWord("WITHOUT")) && (isWord(p.peek, "TIME") || isWord(p.peek, "LOCAL")) {
		for !p.check(TOKEN_EOF) && !p.checkWord("ZONE") {
			p.nextToken()
		}
		p.nextToken()
	}

	// VARCHAR(255), DECIMAL(10, 2)
	if p.match(TOKEN_LPAREN) {
		b.WriteString("(")
		for i := 0; !p.check(TOKEN_RPAREN) && !p.check(TOKEN_EOF); i++ {
			if i > 0 {
				p.expect(TOKEN_COMMA)
				b.WriteString(", ")
			}
			b.WriteString(p.token.Literal)
			p.nextToken()
		}
		p.expect(TOKEN_RPAREN)
		b.WriteString(")")
	}

	// ARRAY<STRING>, STRUCT<a INT64>
	if p.check(TOKEN_LT) && (base == "ARRAY" || base == "STRUCT" || base == "MAP" || base == "RANGE") {
		start := p.token.Pos.Offset
		p.skipAngleBrackets()
		if end := p.token.Pos.Offset; end > start && end <= len(p.input) {
			b.WriteString(strings.TrimSpace(p.input[start:end]))
		}
	}

	// INT[]
	for p.check(TOKEN_LBRACKET) && p.checkPeek(TOKEN_RBRACKET) {
		p.nextToken()
		p.nextToken()
		b.WriteString("[]")
	}

	return b.String()
}

// parseParenExpr parses a parenthesized expression, tuple or subquery.
func (p *Parser) parseParenExpr() Expr {
	p.expect(TOKEN_LPAREN)

	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		subquery := &SubqueryExpr{Select: p.parseQuery()}
		p.expect(TOKEN_RPAREN)
		return subquery
	}
	return p.finishParenExpr(p.parseExpression())
}

// finishParenExpr parses the rest of a tuple after its first element.
func (p *Parser) finishParenExpr(first Expr) Expr {
	paren := &ParenExpr{Exprs: []Expr{first}}
	for p.match(TOKEN_COMMA) {
		paren.Exprs = append(paren.Exprs, p.parseExpression())
	}
	p.expect(TOKEN_RPAREN)
	return paren
}

// parseExistsExpr parses an EXISTS expression.
func (p *Parser) parseExistsExpr(not bool) Expr {
	p.expect(TOKEN_EXISTS)

	p.expect(TOKEN_LPAREN)
	exists := &ExistsExpr{Not: not, Select: p.parseQuery()}
	p.expect(TOKEN_RPAREN)

	return exists
}
