package load

import (
	"errors"
	"fmt"
)

// Sentinel errors for introspection failures.
var (
	// ErrNotFound is matched by SchemaNotFoundError and TableNotFoundError.
	ErrNotFound = errors.New("pgproto/load: not found in catalog")
	// ErrSelection is matched by every SelectionError.
	ErrSelection = errors.New("pgproto/load: invalid table selection")
)

// SchemaNotFoundError is returned when a requested schema does not exist.
type SchemaNotFoundError struct {
	Schema string
}

// Error implements the error interface.
func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("pgproto/load: schema %q not found", e.Schema)
}

// Is reports whether the target matches ErrNotFound.
func (e *SchemaNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TableNotFoundError is returned when a requested table does not exist in its schema.
type TableNotFoundError struct {
	Schema string
	Table  string
}

// Error implements the error interface.
func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("pgproto/load: table %q not found in schema %q", e.Table, e.Schema)
}

// Is reports whether the target matches ErrNotFound.
func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SelectionError reports a malformed table selection document.
type SelectionError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("pgproto/load: selection line %d: %s", e.Line, e.Message)
	}
	return "pgproto/load: selection: " + e.Message
}

// Is reports whether the target matches ErrSelection.
func (e *SelectionError) Is(target error) bool {
	return target == ErrSelection
}

// CatalogError wraps a failed catalog query with the object being read.
type CatalogError struct {
	Schema string
	Table  string
	Query  string
	Err    error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("pgproto/load: reading %s of %s.%s: %v", e.Query, e.Schema, e.Table, e.Err)
	}
	return fmt.Sprintf("pgproto/load: reading %s of %s: %v", e.Query, e.Schema, e.Err)
}

// Unwrap returns the underlying error.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a SchemaNotFoundError or TableNotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
