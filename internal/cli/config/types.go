// Package config provides configuration management for the leaplineage CLI.
//
// The shared configuration types live in internal/config and are re-exported
// here via type aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/leaplineage/internal/config"
)

// Config is an alias for the shared configuration.
type Config = sharedcfg.Config

// HistoryConfig is an alias for the shared history configuration.
type HistoryConfig = sharedcfg.HistoryConfig

// DbtConfig is an alias for the shared dbt configuration.
type DbtConfig = sharedcfg.DbtConfig

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultDialect     = sharedcfg.DefaultDialect
	DefaultOutput      = sharedcfg.DefaultOutput
	DefaultHistoryPath = sharedcfg.DefaultHistoryPath
	EnvPrefix          = "LEAPLINEAGE_"
)
