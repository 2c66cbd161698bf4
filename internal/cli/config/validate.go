package config

import (
	"fmt"
	"os"
)

// ValidateArtifacts checks that the dbt artifacts exist.
func ValidateArtifacts(c *Config) error {
	for _, path := range []string{c.Dbt.Manifest, c.Dbt.Catalog} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("dbt artifact does not exist: %s\nHint: run `dbt compile` and `dbt docs generate`, or use --manifest/--catalog", path)
		}
	}
	return nil
}
