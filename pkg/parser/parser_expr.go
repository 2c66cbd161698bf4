package parser

import "github.com/leapstack-labs/leaplineage/pkg/dialect"

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	PrecedenceNone       = 0
//	PrecedenceOr         = 1
//	PrecedenceAnd        = 2
//	PrecedenceNot        = 3
//	PrecedenceComparison = 4  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE, RLIKE)
//	PrecedenceAddition   = 5  (+, -, ||)
//	PrecedenceMultiply   = 6  (*, /, %)
//	PrecedenceUnary      = 7  (-, +)
//	PrecedencePostfix    = 8  (::, [], :path, .field)
//
// Postfix operators bind tighter than everything else and are applied
// directly after a primary expression in parsePostfixExpr.

// Operator precedence levels.
const (
	PrecedenceNone = iota
	PrecedenceOr
	PrecedenceAnd
	PrecedenceNot
	PrecedenceComparison
	PrecedenceAddition
	PrecedenceMultiply
	PrecedenceUnary
	PrecedencePostfix
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(PrecedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		prec := p.infixPrecedence()
		if prec < minPrecedence {
			break
		}

		left = p.parseInfixExpr(left, prec)
		if left == nil || len(p.errors) > 0 {
			break
		}
	}

	return left
}

// parsePrefixExpr parses unary operators and primary expressions.
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		if p.checkPeek(TOKEN_EXISTS) {
			p.nextToken()
			return p.parseExistsExpr(true)
		}
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceNot)
		return &UnaryExpr{Op: TOKEN_NOT, Expr: expr}

	case TOKEN_MINUS:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceUnary)
		return &UnaryExpr{Op: TOKEN_MINUS, Expr: expr}

	case TOKEN_PLUS:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceUnary)
		return &UnaryExpr{Op: TOKEN_PLUS, Expr: expr}

	default:
		return p.parsePostfixExpr(p.parsePrimary())
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or PrecedenceNone if it is not one.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return PrecedenceComparison
	case TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, dialect.TokenIlike:
		return PrecedenceComparison
	case TOKEN_NOT:
		// NOT IN, NOT LIKE, ... only; a bare NOT cannot follow an operand
		switch p.peek.Type {
		case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, dialect.TokenIlike:
			return PrecedenceComparison
		}
		if isRegexpWord(p.peek) {
			return PrecedenceComparison
		}
		return PrecedenceNone
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD:
		return PrecedenceMultiply
	}
	if isRegexpWord(p.token) {
		return PrecedenceComparison
	}
	return PrecedenceNone
}

func isRegexpWord(tok Token) bool {
	return isWord(tok, "RLIKE") || isWord(tok, "REGEXP")
}

// parseInfixExpr parses an infix expression given the left operand.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		return p.parseNotInfixExpr(left)

	case TOKEN_IS:
		return p.parseIsExpr(left)

	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, false)

	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, false)

	case TOKEN_LIKE, dialect.TokenIlike:
		op := p.token.Type
		p.nextToken()
		return p.parseLikeExpr(left, false, op)
	}

	if isRegexpWord(p.token) {
		p.nextToken()
		return p.parseLikeExpr(left, false, TOKEN_LIKE)
	}

	op := p.token
	p.nextToken()

	// LIKE ANY (...) / = ANY (subquery) style quantifiers
	if p.check(TOKEN_ALL) || p.checkWord("ANY") || p.checkWord("SOME") {
		if p.checkPeek(TOKEN_LPAREN) {
			p.nextToken()
		}
	}

	right := p.parseExpressionWithPrecedence(prec + 1)
	return &BinaryExpr{Left: left, Op: op.Type, Right: right}
}

// parseNotInfixExpr handles NOT as an infix modifier (NOT IN, NOT BETWEEN, NOT LIKE).
func (p *Parser) parseNotInfixExpr(left Expr) Expr {
	p.nextToken() // consume NOT

	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, true)

	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, true)

	case TOKEN_LIKE, dialect.TokenIlike:
		op := p.token.Type
		p.nextToken()
		return p.parseLikeExpr(left, true, op)
	}

	if isRegexpWord(p.token) {
		p.nextToken()
		return p.parseLikeExpr(left, true, TOKEN_LIKE)
	}

	p.addError("expected IN, BETWEEN, LIKE, or ILIKE after NOT")
	return left
}

// parseIsExpr parses IS [NOT] NULL|TRUE|FALSE and IS [NOT] DISTINCT FROM.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // consume IS

	isNot := p.match(TOKEN_NOT)

	switch p.token.Type {
	case TOKEN_NULL:
		p.nextToken()
		return &IsNullExpr{Expr: left, Not: isNot}

	case TOKEN_TRUE:
		p.nextToken()
		return &IsBoolExpr{Expr: left, Not: isNot, Value: true}

	case TOKEN_FALSE:
		p.nextToken()
		return &IsBoolExpr{Expr: left, Not: isNot, Value: false}

	case TOKEN_DISTINCT:
		p.nextToken()
		p.expect(TOKEN_FROM)
		op := TOKEN_NE
		if isNot {
			op = TOKEN_EQ
		}
		right := p.parseExpressionWithPrecedence(PrecedenceAddition)
		return &BinaryExpr{Left: left, Op: op, Right: right}

	default:
		p.addError("expected NULL, TRUE, FALSE or DISTINCT FROM after IS")
		return left
	}
}

// parseInExpr parses the right side of IN. BigQuery's x IN UNNEST(arr) has
// no parentheses and is kept as a single-value list.
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	in := &InExpr{Expr: left, Not: not}

	if !p.check(TOKEN_LPAREN) {
		in.Values = []Expr{p.parseExpressionWithPrecedence(PrecedenceAddition)}
		return in
	}

	p.nextToken()
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		in.Query = p.parseQuery()
	} else if !p.check(TOKEN_RPAREN) {
		in.Values = p.parseExpressionList()
	}
	p.expect(TOKEN_RPAREN)
	return in
}

// parseBetweenExpr parses a BETWEEN expression.
func (p *Parser) parseBetweenExpr(left Expr, not bool) Expr {
	between := &BetweenExpr{Expr: left, Not: not}
	// bounds stop before AND
	between.Low = p.parseExpressionWithPrecedence(PrecedenceAddition)
	p.expect(TOKEN_AND)
	between.High = p.parseExpressionWithPrecedence(PrecedenceAddition)
	return between
}

// parseLikeExpr parses a LIKE/ILIKE pattern, including LIKE ANY (...).
func (p *Parser) parseLikeExpr(left Expr, not bool, op TokenType) Expr {
	like := &LikeExpr{Expr: left, Not: not, Op: op}
	if (p.check(TOKEN_ALL) || p.checkWord("ANY") || p.checkWord("SOME")) && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
	}
	like.Pattern = p.parseExpressionWithPrecedence(PrecedenceAddition)
	if p.checkWord("ESCAPE") {
		p.nextToken()
		p.parsePrimary()
	}
	return like
}

// parsePostfixExpr applies ::type casts, subscripts, semi-structured path
// access and field access to a primary expression.
func (p *Parser) parsePostfixExpr(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	for {
		switch {
		case p.check(TOKEN_DCOLON):
			p.nextToken()
			expr = &CastExpr{Expr: expr, TypeName: p.parseTypeName()}

		case p.check(TOKEN_LBRACKET):
			p.nextToken()
			index := p.parseExpression()
			p.expect(TOKEN_RBRACKET)
			expr = &IndexExpr{Expr: expr, Index: index}

		case p.check(TOKEN_COLON) && (p.isNameToken(p.peek) || p.checkPeek(TOKEN_STRING)):
			p.nextToken()
			expr = &IndexExpr{Expr: expr, Index: &Literal{Type: LiteralString, Value: p.token.Literal}}
			p.nextToken()

		case p.check(TOKEN_DOT) && p.isNameToken(p.peek) && isPathBase(expr):
			p.nextToken()
			expr = &IndexExpr{Expr: expr, Index: &Literal{Type: LiteralString, Value: p.token.Literal}}
			p.nextToken()

		case p.checkWord("COLLATE") && p.checkPeek(TOKEN_STRING):
			p.nextToken()
			p.nextToken()

		case p.checkWord("AT") && isWord(p.peek, "TIME") && isWord(p.peek2, "ZONE"):
			p.nextToken()
			p.nextToken()
			p.nextToken()
			zone := p.parsePrimary()
			expr = &FuncCall{Name: "TIMEZONE", Args: []Expr{expr, zone}}

		default:
			return expr
		}
	}
}

// isPathBase reports whether a trailing .field is field access on expr
// rather than part of a qualified column name.
func isPathBase(expr Expr) bool {
	switch expr.(type) {
	case *IndexExpr, *FuncCall, *ParenExpr, *CastExpr:
		return true
	}
	return false
}
