package lineage

import (
	"log/slog"
	"strings"
)

// BigQuery names its anonymous result tables "anon...". Temporary tables of
// scripts and sessions live in hidden "_script..." and "_session..." datasets.
const bigQueryAnonymousPrefix = "anon"

var bigQueryTempDatasetPrefixes = []string{"_script", "_session"}

// bigQueryParser works from job metadata and only reads SQL text for view
// DDL and ALTER statements, whose metadata does not carry the tables.
type bigQueryParser struct {
	text     *textParser
	resolver *TableResolver
	logger   *slog.Logger
}

func newBigQueryParser(profile Profile, logger *slog.Logger) *bigQueryParser {
	text := newTextParser(DialectBigQuery, profile, nil, logger)
	return &bigQueryParser{text: text, resolver: text.resolver, logger: logger}
}

// Parse implements StatementParser.
func (p *bigQueryParser) Parse(sql string, qc *QueryContext) (*ParsedStatement, error) {
	ps, err := p.parse(sql, qc)
	if err != nil {
		return nil, &StatementError{Dialect: DialectBigQuery, SQL: sql, Err: err}
	}
	return ps, nil
}

func (p *bigQueryParser) parse(sql string, qc *QueryContext) (*ParsedStatement, error) {
	queryType := qc.QueryType()

	switch {
	case strings.HasPrefix(queryType, "DROP"):
		ps := NewParsedStatement()
		if name, ok := p.resolve(qc.DestinationTable(), qc); ok {
			ps.Dropped.Add(name)
		}
		return ps, nil

	case strings.HasPrefix(queryType, "ALTER"):
		parsed, err := p.text.parseText(sql, qc)
		if err != nil {
			return nil, err
		}
		ps := NewParsedStatement()
		ps.Renamed = p.dropAnonymousRenames(parsed.Renamed)
		return ps, nil

	case strings.HasSuffix(queryType, "VIEW"):
		parsed, err := p.text.parseText(sql, qc)
		if err != nil {
			return nil, err
		}
		return p.dropAnonymous(parsed), nil
	}

	ps := NewParsedStatement()
	for _, ref := range qc.ReferencedTables() {
		if name, ok := p.resolve(&ref, qc); ok {
			ps.Sources.Add(name)
		}
	}
	if name, ok := p.resolve(qc.DestinationTable(), qc); ok {
		ps.Targets.Add(name)
	}
	return ps, nil
}

// resolve resolves ref unless it is an anonymous or temporary table.
func (p *bigQueryParser) resolve(ref *TableRef, qc *QueryContext) (string, bool) {
	if ref == nil {
		return "", false
	}
	if isBigQueryAnonymous(*ref) {
		p.logger.Debug("skipping anonymous table", "table", ref.String())
		return "", false
	}
	return p.resolver.Resolve(ref, qc.QueriedDatabase(), qc.QueriedSchema())
}

// dropAnonymous filters text-parsed results. Resolved names are lower case,
// so the prefixes are checked on the trailing segments.
func (p *bigQueryParser) dropAnonymous(ps *ParsedStatement) *ParsedStatement {
	out := NewParsedStatement()
	for _, pair := range []struct{ from, to TableSet }{
		{ps.Sources, out.Sources},
		{ps.Targets, out.Targets},
		{ps.Dropped, out.Dropped},
	} {
		for name := range pair.from {
			if !isBigQueryAnonymous(ParseTableRef(name)) {
				pair.to.Add(name)
			}
		}
	}
	out.Renamed = p.dropAnonymousRenames(ps.Renamed)
	return out
}

func (p *bigQueryParser) dropAnonymousRenames(renames []Rename) []Rename {
	var out []Rename
	for _, r := range renames {
		if isBigQueryAnonymous(ParseTableRef(r.Old)) || isBigQueryAnonymous(ParseTableRef(r.New)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// isBigQueryAnonymous reports whether ref is an anonymous result table or
// lives in a script or session temp dataset.
func isBigQueryAnonymous(ref TableRef) bool {
	if strings.HasPrefix(strings.ToLower(ref.Name), bigQueryAnonymousPrefix) {
		return true
	}
	dataset := strings.ToLower(ref.Schema)
	if i := strings.LastIndex(dataset, "."); i >= 0 {
		dataset = dataset[i+1:]
	}
	for _, prefix := range bigQueryTempDatasetPrefixes {
		if strings.HasPrefix(dataset, prefix) {
			return true
		}
	}
	return false
}
