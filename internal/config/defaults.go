package config

// Default configuration values.
const (
	DefaultDialect     = "generic"
	DefaultOutput      = "text"
	DefaultHistoryPath = ".leaplineage/history.json"
	DefaultManifest    = "target/manifest.json"
	DefaultCatalog     = "target/catalog.json"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"text", "json", "csv", "dot"}

// Defaults returns the default configuration as a flat koanf key map.
func Defaults() map[string]any {
	return map[string]any{
		"dialect":                  DefaultDialect,
		"include_isolated":         false,
		"profile.full_table_names": true,
		"history.path":             DefaultHistoryPath,
		"dbt.manifest":             DefaultManifest,
		"dbt.catalog":              DefaultCatalog,
		"verbose":                  false,
		"output":                   DefaultOutput,
	}
}

// ApplyDefaults fills unset fields of a Config.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutput
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	if c.Dbt.Manifest == "" {
		c.Dbt.Manifest = DefaultManifest
	}
	if c.Dbt.Catalog == "" {
		c.Dbt.Catalog = DefaultCatalog
	}
}
