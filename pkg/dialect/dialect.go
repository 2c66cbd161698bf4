// Package dialect describes the warehouse SQL dialects the lexer and the
// statement parsers understand.
//
// A Dialect is pure data: identifier quoting, comment styles, the extra
// keywords it adds on top of the core token set, and the niladic functions
// that look like bare column names. Dialects are built with NewDialect and
// registered by name; see builtin.go for the generic, BigQuery and
// Snowflake definitions.
package dialect

import (
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/token"
)

// QuotePair is an opening and closing identifier quote character.
type QuotePair struct {
	Open  byte
	Close byte
}

// Shared dialect keywords, registered once so dialects can reuse them.
var (
	TokenQualify = token.Register("QUALIFY")
	TokenIlike   = token.Register("ILIKE")
)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name string

	quotes        []QuotePair
	hashComments  bool
	doubleStrings bool
	keywords      map[string]token.TokenType
	generators    map[string]struct{}
}

// QuoteEnd reports whether ch opens a quoted identifier and returns the
// matching closing character.
func (d *Dialect) QuoteEnd(ch byte) (byte, bool) {
	for _, q := range d.quotes {
		if q.Open == ch {
			return q.Close, true
		}
	}
	return 0, false
}

// HashComments reports whether '#' starts a line comment.
func (d *Dialect) HashComments() bool {
	return d.hashComments
}

// DoubleQuotedStrings reports whether "..." is a string literal rather than
// a quoted identifier.
func (d *Dialect) DoubleQuotedStrings() bool {
	return d.doubleStrings
}

// LookupKeyword returns the dialect-specific token for a lowercase word.
func (d *Dialect) LookupKeyword(word string) (token.TokenType, bool) {
	t, ok := d.keywords[word]
	return t, ok
}

// IsGenerator reports whether name is a niladic function such as
// CURRENT_TIMESTAMP that can appear without parentheses.
func (d *Dialect) IsGenerator(name string) bool {
	_, ok := d.generators[strings.ToUpper(name)]
	return ok
}

// NormalizeName folds a name for comparisons. Every dialect folds to lower
// case, including Snowflake which upper-cases unquoted identifiers itself,
// so lineage names compare equal across warehouses.
func (d *Dialect) NormalizeName(name string) string {
	return strings.ToLower(name)
}

// Builder assembles a Dialect.
type Builder struct {
	d *Dialect
}

// NewDialect starts building a dialect with double-quoted identifiers.
func NewDialect(name string) *Builder {
	return &Builder{d: &Dialect{
		Name:       strings.ToLower(name),
		quotes:     []QuotePair{{'"', '"'}},
		keywords:   make(map[string]token.TokenType),
		generators: make(map[string]struct{}),
	}}
}

// Quotes replaces the identifier quote pairs.
func (b *Builder) Quotes(pairs ...QuotePair) *Builder {
	b.d.quotes = pairs
	return b
}

// HashComments enables '#' line comments.
func (b *Builder) HashComments() *Builder {
	b.d.hashComments = true
	return b
}

// DoubleQuotedStrings makes "..." lex as a string literal.
func (b *Builder) DoubleQuotedStrings() *Builder {
	b.d.doubleStrings = true
	return b
}

// AddKeyword maps a word to a token for this dialect only.
func (b *Builder) AddKeyword(word string, t token.TokenType) *Builder {
	b.d.keywords[strings.ToLower(word)] = t
	return b
}

// Generators registers niladic functions.
func (b *Builder) Generators(names ...string) *Builder {
	for _, n := range names {
		b.d.generators[strings.ToUpper(n)] = struct{}{}
	}
	return b
}

// Build returns the configured dialect.
func (b *Builder) Build() *Dialect {
	return b.d
}
