package parser

import (
	"fmt"
	"strings"
)

// Primary expression parsing: literals, column refs, function calls.
//
// Grammar:
//
//	primary       → literal | column_ref | func_call | paren_expr | case_expr | cast_expr
//	              | exists_expr | array_expr | interval | typed_literal | parameter
//	literal       → NUMBER | STRING | TRUE | FALSE | NULL
//	column_ref    → [qualifier "."]* column
//	func_call     → name ("." name)* "(" [DISTINCT] [func_args | "*"] ")"
//	                [WITHIN GROUP "(" ORDER BY order_list ")"] [FILTER "(" WHERE expr ")"]
//	                [IGNORE|RESPECT NULLS] [OVER window_spec]
//	func_args     → arg ((","|FROM|FOR|USING|AS type) arg)* [ORDER BY order_list] [LIMIT expr]
//	arg           → [identifier "=>"] expr

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		// adjacent string literals concatenate
		for p.check(TOKEN_STRING) {
			lit.Value += p.token.Literal
			p.nextToken()
		}
		return lit

	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "true"}

	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "false"}

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "null"}

	case TOKEN_CASE:
		return p.parseCaseExpr()

	case TOKEN_CAST:
		return p.parseCastExpr()

	case TOKEN_EXISTS:
		return p.parseExistsExpr(false)

	case TOKEN_IDENT:
		return p.parseIdentifierExpr()

	case TOKEN_LPAREN:
		return p.parseParenExpr()

	case TOKEN_LBRACKET:
		return p.parseArrayExpr()

	case TOKEN_STAR:
		p.nextToken()
		return &StarExpr{}

	case TOKEN_COLON:
		// :name bind parameter
		if p.checkPeek(TOKEN_IDENT) {
			p.nextToken()
			lit := &Literal{Type: LiteralString, Value: ":" + p.token.Literal}
			p.nextToken()
			return lit
		}

	case TOKEN_ILLEGAL:
		if param := p.parseParameter(); param != nil {
			return param
		}
	}

	// Non-reserved keywords double as function and column names.
	if p.isKeyword(p.token) && (p.checkPeek(TOKEN_LPAREN) || isSoftKeyword(p.token.Type)) {
		return p.parseIdentifierExpr()
	}

	p.addError(fmt.Sprintf("unexpected token in expression: %s", p.describe(p.token)))
	return nil
}

// isSoftKeyword reports keyword tokens that may be used as bare column names.
func isSoftKeyword(t TokenType) bool {
	switch t {
	case TOKEN_FIRST, TOKEN_LAST, TOKEN_ROW, TOKEN_ROWS, TOKEN_RANGE, TOKEN_GROUPS,
		TOKEN_FILTER, TOKEN_PRECEDING, TOKEN_FOLLOWING, TOKEN_UNBOUNDED, TOKEN_NULLS,
		TOKEN_OFFSET, TOKEN_VIEW, TOKEN_CURRENT, TOKEN_RENAME, TOKEN_WINDOW, TOKEN_WITHIN:
		return true
	}
	return false
}

// parseParameter parses ?, @name, @@name and $1 style placeholders.
func (p *Parser) parseParameter() Expr {
	switch p.token.Literal {
	case "?":
		p.nextToken()
		return &Literal{Type: LiteralString, Value: "?"}
	case "@", "$":
		prefix := p.token.Literal
		p.nextToken()
		if p.check(TOKEN_ILLEGAL) && p.token.Literal == "@" {
			prefix += "@"
			p.nextToken()
		}
		if p.check(TOKEN_IDENT) || p.check(TOKEN_NUMBER) {
			lit := &Literal{Type: LiteralString, Value: prefix + p.token.Literal}
			p.nextToken()
			return lit
		}
	}
	return nil
}

// typedLiteralPrefixes are type names that may prefix a string literal,
// e.g. DATE '2024-01-01'.
var typedLiteralPrefixes = map[string]bool{
	"DATE": true, "TIME": true, "TIMESTAMP": true, "DATETIME": true,
	"TIMESTAMP_NTZ": true, "TIMESTAMP_LTZ": true, "TIMESTAMP_TZ": true,
	"NUMERIC": true, "BIGNUMERIC": true, "DECIMAL": true, "JSON": true,
	"BYTES": true,
}

// parseIdentifierExpr parses an identifier which could be a column ref,
// qualified name, function call, typed literal or INTERVAL.
func (p *Parser) parseIdentifierExpr() Expr {
	first := p.token
	name := first.Literal
	upper := strings.ToUpper(name)

	if !first.Quoted {
		switch {
		case p.checkPeek(TOKEN_STRING) && typedLiteralPrefixes[upper]:
			p.nextToken()
			lit := &Literal{Type: LiteralString, Value: p.token.Literal}
			p.nextToken()
			return lit
		case upper == "INTERVAL" && !p.checkPeek(TOKEN_LPAREN) && !p.checkPeek(TOKEN_DOT):
			return p.parseIntervalExpr()
		case (upper == "ARRAY" || upper == "STRUCT") && (p.checkPeek(TOKEN_LT) || p.checkPeek(TOKEN_LBRACKET)):
			return p.parseTypedConstructor(upper)
		}
	}

	p.nextToken()

	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(name)
	}

	if p.check(TOKEN_DOT) {
		return p.parseQualifiedColumnRef(name)
	}

	return &ColumnRef{Column: name}
}

// parseQualifiedColumnRef parses a.b[.c...] as a column reference whose
// qualifier is everything before the last part, a t.* star, or a
// qualified function call such as SAFE.PARSE_DATE(...).
func (p *Parser) parseQualifiedColumnRef(firstPart string) Expr {
	parts := []string{firstPart}

	for p.check(TOKEN_DOT) {
		if p.checkPeek(TOKEN_STAR) {
			p.nextToken()
			p.nextToken()
			return &StarExpr{Table: strings.Join(parts, ".")}
		}
		if !p.isNameToken(p.peek) {
			break
		}
		p.nextToken()
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(strings.Join(parts, "."))
	}

	n := len(parts)
	return &ColumnRef{Table: strings.Join(parts[:n-1], "."), Column: parts[n-1]}
}

// keywordArgFuncs lists functions whose bare identifier arguments in
// keywordArgs are date parts or trim specs rather than columns.
var keywordArgFuncs = map[string]bool{
	"EXTRACT": true, "DATE_PART": true, "DATEADD": true, "DATEDIFF": true,
	"DATE_ADD": true, "DATE_SUB": true, "DATE_DIFF": true, "DATE_TRUNC": true,
	"DATETIME_ADD": true, "DATETIME_SUB": true, "DATETIME_DIFF": true, "DATETIME_TRUNC": true,
	"TIMESTAMP_ADD": true, "TIMESTAMP_SUB": true, "TIMESTAMP_DIFF": true, "TIMESTAMP_TRUNC": true,
	"TIMESTAMPADD": true, "TIMESTAMPDIFF": true, "TIME_ADD": true, "TIME_SUB": true,
	"TIME_DIFF": true, "TIME_TRUNC": true, "TIME_SLICE": true, "LAST_DAY": true, "TRIM": true,
}

var keywordArgs = map[string]bool{
	"YEAR": true, "YEARS": true, "YY": true, "YYYY": true, "QUARTER": true, "QUARTERS": true,
	"MONTH": true, "MONTHS": true, "MM": true, "WEEK": true, "WEEKS": true, "WK": true,
	"ISOWEEK": true, "ISOYEAR": true, "DAY": true, "DAYS": true, "DD": true,
	"DAYOFWEEK": true, "DAYOFYEAR": true, "DOW": true, "DOY": true,
	"HOUR": true, "HOURS": true, "HH": true, "MINUTE": true, "MINUTES": true, "MI": true,
	"SECOND": true, "SECONDS": true, "SS": true, "MILLISECOND": true, "MILLISECONDS": true, "MS": true,
	"MICROSECOND": true, "MICROSECONDS": true, "US": true, "NANOSECOND": true, "NANOSECONDS": true, "NS": true,
	"EPOCH": true, "EPOCH_SECOND": true, "EPOCH_MILLISECOND": true, "DATE": true, "TIME": true,
	"BOTH": true, "LEADING": true, "TRAILING": true,
}

// parseFuncCall parses a function call after its name.
func (p *Parser) parseFuncCall(name string) Expr {
	upper := strings.ToUpper(name)
	if upper == "TRY_CAST" || upper == "SAFE_CAST" {
		return p.parseCastBody()
	}

	fn := &FuncCall{Name: upper}

	p.expect(TOKEN_LPAREN)
	if p.check(TOKEN_STAR) && p.checkPeek(TOKEN_RPAREN) {
		fn.Star = true
		p.nextToken()
	} else if !p.check(TOKEN_RPAREN) {
		p.parseFuncArgs(fn)
	}
	p.expect(TOKEN_RPAREN)

	if keywordArgFuncs[upper] {
		for i, arg := range fn.Args {
			if ref, ok := arg.(*ColumnRef); ok && ref.Table == "" && keywordArgs[strings.ToUpper(ref.Column)] {
				fn.Args[i] = &Literal{Type: LiteralString, Value: strings.ToUpper(ref.Column)}
			}
		}
	}

	p.parseFuncSuffix(fn)
	return fn
}

// parseFuncArgs parses the argument list of a function call into fn. The
// opening and closing parentheses are handled by the caller.
func (p *Parser) parseFuncArgs(fn *FuncCall) {
	if p.match(TOKEN_DISTINCT) {
		fn.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	for {
		// named argument: name => expr
		if p.isNameToken(p.token) && p.checkPeek(TOKEN_ARROW) {
			p.nextToken()
			p.nextToken()
		}

		if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
			// ARRAY(SELECT ...)
			fn.Args = append(fn.Args, &SubqueryExpr{Select: p.parseQuery()})
		} else {
			fn.Args = append(fn.Args, p.parseExpression())
		}
		if len(p.errors) > 0 {
			return
		}

		switch {
		case p.match(TOKEN_COMMA), p.match(TOKEN_FROM), p.matchWord("FOR"), p.match(TOKEN_USING):
			continue
		case p.match(TOKEN_AS):
			// STRUCT(a AS x), CONVERT-style type arguments
			p.parseTypeName()
		case (p.checkWord("IGNORE") || p.checkWord("RESPECT")) && p.checkPeek(TOKEN_NULLS):
			p.nextToken()
			p.nextToken()
		case p.match(TOKEN_HAVING):
			// ANY_VALUE(x HAVING MAX y)
			p.nextToken()
			p.parseExpression()
		case p.check(TOKEN_STRING), p.check(TOKEN_NUMBER), p.check(TOKEN_IDENT) && !p.isSoftClauseWord(p.token):
			// TRIM(BOTH 'x' FROM y)
			continue
		}
		if p.match(TOKEN_COMMA) {
			continue
		}

		if p.check(TOKEN_ORDER) {
			p.nextToken()
			p.expect(TOKEN_BY)
			fn.OrderBy = p.parseOrderByList()
		}
		if p.match(TOKEN_LIMIT) {
			p.parseExpression()
		}
		return
	}
}

// parseFuncSuffix parses WITHIN GROUP, FILTER, IGNORE/RESPECT NULLS and OVER
// after the closing parenthesis of a function call.
func (p *Parser) parseFuncSuffix(fn *FuncCall) {
	if p.check(TOKEN_WITHIN) && p.checkPeek(TOKEN_GROUP) {
		p.nextToken()
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		p.expect(TOKEN_ORDER)
		p.expect(TOKEN_BY)
		fn.OrderBy = append(fn.OrderBy, p.parseOrderByList()...)
		p.expect(TOKEN_RPAREN)
	}

	if p.check(TOKEN_FILTER) && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.nextToken()
		p.expect(TOKEN_WHERE)
		fn.Filter = p.parseExpression()
		p.expect(TOKEN_RPAREN)
	}

	if (p.checkWord("IGNORE") || p.checkWord("RESPECT")) && p.checkPeek(TOKEN_NULLS) {
		p.nextToken()
		p.nextToken()
	}

	if p.match(TOKEN_OVER) {
		fn.Window = p.parseWindowSpec()
	}
}

// parseIntervalExpr parses INTERVAL value [unit [TO unit]]. The value
// expression is kept since it may reference columns.
func (p *Parser) parseIntervalExpr() Expr {
	p.nextToken() // INTERVAL
	value := p.parsePrimary()
	if p.check(TOKEN_IDENT) && keywordArgs[strings.ToUpper(p.token.Literal)] {
		p.nextToken()
		if p.checkWord("TO") && p.peek.Type == TOKEN_IDENT {
			p.nextToken()
			p.nextToken()
		}
	}
	return &FuncCall{Name: "INTERVAL", Args: []Expr{value}}
}

// parseTypedConstructor parses ARRAY<T>[...], ARRAY[...], STRUCT<...>(...).
func (p *Parser) parseTypedConstructor(kind string) Expr {
	p.nextToken() // ARRAY or STRUCT
	if p.check(TOKEN_LT) {
		p.skipAngleBrackets()
	}
	switch {
	case p.check(TOKEN_LBRACKET):
		return p.parseArrayExpr()
	case p.check(TOKEN_LPAREN):
		return p.parseFuncCall(kind)
	}
	return &ColumnRef{Column: kind}
}

// skipAngleBrackets consumes a balanced <...> type parameter list.
func (p *Parser) skipAngleBrackets() {
	depth := 0
	for !p.check(TOKEN_EOF) {
		switch p.token.Type {
		case TOKEN_LT:
			depth++
		case TOKEN_GT:
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		}
		p.nextToken()
	}
	p.addError("unbalanced angle brackets in type")
}

// parseArrayExpr parses [a, b, ...].
func (p *Parser) parseArrayExpr() Expr {
	p.expect(TOKEN_LBRACKET)
	arr := &ArrayExpr{}
	if !p.check(TOKEN_RBRACKET) {
		arr.Elements = p.parseExpressionList()
	}
	p.expect(TOKEN_RBRACKET)
	return arr
}
