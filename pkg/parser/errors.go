package parser

import (
	"errors"
	"fmt"
)

// ParseError represents a parsing error with position information. Errors
// about the input as a whole carry a zero Pos.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	if !e.Pos.IsValid() {
		return "parse error: " + e.Message
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// ErrUnsupportedStatement is returned by Tables for statements whose table
// usage cannot be derived generically (MERGE, multi-table INSERT).
var ErrUnsupportedStatement = errors.New("unsupported statement")

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrEmptyStatement     = "no statement found"
	ErrMultipleStatements = "expected a single statement, found %d"
	ErrNotAQuery          = "expected a query, found %s"
)
