package lineage

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by StatementError and ModelError.
var (
	// ErrParseFailure means the SQL could not be parsed in the chosen dialect.
	ErrParseFailure = errors.New("parse failure")
	// ErrUnsupportedConstruct means the SQL parsed but uses a shape lineage
	// cannot be derived from, such as a multi-table INSERT.
	ErrUnsupportedConstruct = errors.New("unsupported construct")
)

// ConfigurationError reports a profile or dialect setting that makes every
// resolution meaningless. It is returned before any SQL is parsed.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// StatementError is returned when one statement contributes no lineage.
// Callers processing a batch log it and move on.
type StatementError struct {
	Dialect Dialect
	SQL     string
	Err     error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s statement: %v", e.Dialect, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// ModelError is returned when column lineage for one model cannot be
// resolved.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func parseFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrParseFailure, err)
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedConstruct, fmt.Sprintf(format, args...))
}
