package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned by the loader when a source file lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrConfig marks a query that references columns the schema cannot serve.
	ErrConfig = errors.New("invalid query configuration")
)

// ConfigError is a programmer error: a query names a column that does not
// exist or cannot be used the way it was asked to.
type ConfigError struct {
	Op     string
	Column string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: column %q: %s", e.Op, e.Column, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func unknownColumn(op, column string) error {
	return &ConfigError{Op: op, Column: column, Reason: "unknown column"}
}

func lookupColumn(op, name string) (Column, error) {
	c, ok := Lookup(name)
	if !ok {
		return Column{}, unknownColumn(op, name)
	}
	return c, nil
}
