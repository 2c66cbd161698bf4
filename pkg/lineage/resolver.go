package lineage

import (
	"strings"
)

// Profile is the static warehouse context lineage is scoped to.
type Profile struct {
	Database       string `json:"database_name" koanf:"database_name"`
	Schema         string `json:"schema_name" koanf:"schema_name"`
	FullTableNames bool   `json:"full_table_names" koanf:"full_table_names"`
}

// Validate returns a *ConfigurationError when the profile cannot scope any
// table.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Database) == "" {
		return &ConfigurationError{Field: "database_name", Message: "profile database is required"}
	}
	if strings.Contains(p.Database, ".") {
		return &ConfigurationError{Field: "database_name", Message: "profile database must not be qualified"}
	}
	if strings.Contains(p.Schema, ".") {
		return &ConfigurationError{Field: "schema_name", Message: "profile schema must not be qualified"}
	}
	return nil
}

// TableResolver qualifies raw table references and decides whether they
// belong to the profile's scope.
type TableResolver struct {
	database string
	schema   string
	full     bool
	unescape func(string) string
}

// NewTableResolver creates a resolver for profile. unescape is applied to
// every resolved name last; nil means identity.
func NewTableResolver(profile Profile, unescape func(string) string) *TableResolver {
	if unescape == nil {
		unescape = func(s string) string { return s }
	}
	return &TableResolver{
		database: strings.ToLower(profile.Database),
		schema:   strings.ToLower(profile.Schema),
		full:     profile.FullTableNames,
		unescape: unescape,
	}
}

// Resolve returns the canonical lower-case name of ref, or false when ref is
// nil or outside the profile's scope. A non-empty queried database or
// schema takes precedence over the profile's for qualification.
func (r *TableResolver) Resolve(ref *TableRef, queriedDB, queriedSchema string) (string, bool) {
	if ref == nil || ref.Name == "" {
		return "", false
	}

	db := firstNonEmpty(strings.ToLower(queriedDB), r.database)
	schema := firstNonEmpty(strings.ToLower(queriedSchema), r.schema)
	name := strings.ToLower(ref.Name)
	qualified := strings.ToLower(ref.Schema)

	switch {
	case qualified == "":
		if db != "" && schema != "" {
			qualified = db + "." + schema
		}
	case !strings.Contains(qualified, "."):
		if db != "" {
			qualified = db + "." + qualified
		}
	}

	if !r.inScope(qualified) {
		return "", false
	}

	resolved := name
	if r.full && qualified != "" {
		resolved = qualified + "." + name
	}
	return r.unescape(resolved), true
}

// inScope compares a qualified schema against the profile.
func (r *TableResolver) inScope(qualified string) bool {
	if r.schema != "" {
		return qualified == r.database+"."+r.schema
	}
	db, _, _ := strings.Cut(qualified, ".")
	return qualified != "" && db == r.database
}

// resolveAll resolves each ref and adds the in-scope ones to set.
func (r *TableResolver) resolveAll(set TableSet, refs []*TableRef, qc *QueryContext) {
	for _, ref := range refs {
		if name, ok := r.Resolve(ref, qc.QueriedDatabase(), qc.QueriedSchema()); ok {
			set.Add(name)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
