package lineage

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/dialect"
)

// Dialect selects a StatementParser variant.
type Dialect string

// Supported dialects.
const (
	DialectGeneric   Dialect = dialect.Generic
	DialectBigQuery  Dialect = dialect.BigQuery
	DialectSnowflake Dialect = dialect.Snowflake
)

// ParseDialect maps a configuration value to a Dialect. An empty name
// selects the generic dialect.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case "":
		return DialectGeneric, nil
	case DialectGeneric, DialectBigQuery, DialectSnowflake:
		return d, nil
	default:
		return "", &ConfigurationError{
			Field:   "dialect",
			Message: fmt.Sprintf("unknown dialect %q (available: %s, %s, %s)", name, DialectGeneric, DialectBigQuery, DialectSnowflake),
		}
	}
}

// SQL returns the lexer/parser configuration for d.
func (d Dialect) SQL() *dialect.Dialect {
	if sd, ok := dialect.Get(string(d)); ok {
		return sd
	}
	return dialect.Default()
}

// TableSet is a set of resolved table names.
type TableSet map[string]struct{}

// Add inserts name.
func (s TableSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is present.
func (s TableSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names.
func (s TableSet) Len() int {
	return len(s)
}

// Sorted returns the names in lexical order.
func (s TableSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Rename is a resolved old -> new table rename.
type Rename struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ParsedStatement holds the resolved tables one statement touches.
type ParsedStatement struct {
	Sources TableSet
	Targets TableSet
	Dropped TableSet
	Renamed []Rename
}

// NewParsedStatement returns an empty result.
func NewParsedStatement() *ParsedStatement {
	return &ParsedStatement{
		Sources: make(TableSet),
		Targets: make(TableSet),
		Dropped: make(TableSet),
	}
}

// AddRename records a rename once, keeping first-seen order.
func (ps *ParsedStatement) AddRename(oldName, newName string) {
	r := Rename{Old: oldName, New: newName}
	for _, existing := range ps.Renamed {
		if existing == r {
			return
		}
	}
	ps.Renamed = append(ps.Renamed, r)
}

// Empty reports whether the statement contributes nothing.
func (ps *ParsedStatement) Empty() bool {
	return ps.Sources.Len() == 0 && ps.Targets.Len() == 0 &&
		ps.Dropped.Len() == 0 && len(ps.Renamed) == 0
}

// StatementParser turns one SQL statement and its metadata into resolved
// table sets. A failed statement yields a *StatementError and no result.
type StatementParser interface {
	Parse(sql string, qc *QueryContext) (*ParsedStatement, error)
}

type options struct {
	logger *slog.Logger
}

// Option configures NewStatementParser.
type Option func(*options)

// WithLogger sets the logger used for debug output. Defaults to discard.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewStatementParser returns the parser for d. An invalid profile or an
// unknown dialect yields a *ConfigurationError.
func NewStatementParser(d Dialect, profile Profile, opts ...Option) (StatementParser, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	switch d {
	case DialectGeneric, "":
		return newGenericParser(profile, o.logger), nil
	case DialectBigQuery:
		return newBigQueryParser(profile, o.logger), nil
	case DialectSnowflake:
		return newSnowflakeParser(profile, o.logger), nil
	default:
		_, err := ParseDialect(string(d))
		return nil, err
	}
}

// Query is one statement of a batch.
type Query struct {
	SQL     string
	Context *QueryContext
}

// ParseAll parses a batch, skipping statements that fail. Failures are logged
// at debug level and never abort the batch.
func ParseAll(p StatementParser, queries []Query, logger *slog.Logger) []*ParsedStatement {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	results := make([]*ParsedStatement, 0, len(queries))
	failed := 0
	for i, q := range queries {
		ps, err := p.Parse(q.SQL, q.Context)
		if err != nil {
			failed++
			logger.Debug("skipping statement", "index", i, "error", err)
			continue
		}
		results = append(results, ps)
	}

	logger.Info("parsed query batch", "total", len(queries), "parsed", len(results), "failed", failed)
	return results
}
