// Package config provides the shared configuration types for leaplineage.
// This package is decoupled from CLI concerns so library callers can load a
// project's configuration without cobra.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/lineage"
)

// HistoryConfig locates the query-history cache.
type HistoryConfig struct {
	// Path is a JSON file of query strings or query records
	Path string `koanf:"path"`
	// Store is an optional SQLite database holding cached history
	Store string `koanf:"store"`
}

// DbtConfig locates dbt artifacts for column lineage.
type DbtConfig struct {
	Manifest string `koanf:"manifest"`
	Catalog  string `koanf:"catalog"`
	// ProjectDir resolves schema files named by patch_path
	ProjectDir string `koanf:"project_dir"`
}

// Config holds the full leaplineage configuration.
type Config struct {
	Profile         lineage.Profile `koanf:"profile"`
	Dialect         string          `koanf:"dialect"`
	IncludeIsolated bool            `koanf:"include_isolated"`
	History         HistoryConfig   `koanf:"history"`
	Dbt             DbtConfig       `koanf:"dbt"`
	Verbose         bool            `koanf:"verbose"`
	OutputFormat    string          `koanf:"output"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// LineageDialect returns the parsed dialect.
func (c *Config) LineageDialect() (lineage.Dialect, error) {
	return lineage.ParseDialect(c.Dialect)
}

// Validate checks the configuration before any SQL is parsed. Failures are
// *lineage.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Profile.Validate(); err != nil {
		return err
	}
	if _, err := c.LineageDialect(); err != nil {
		return err
	}
	if !isOutputFormat(c.OutputFormat) {
		return &lineage.ConfigurationError{
			Field:   "output",
			Message: fmt.Sprintf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", ")),
		}
	}
	return nil
}

func isOutputFormat(s string) bool {
	for _, f := range OutputFormats {
		if strings.EqualFold(f, s) {
			return true
		}
	}
	return false
}
