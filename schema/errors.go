package schema

import (
	"errors"
	"strings"
)

// ErrInvalidDescriptor is matched by every descriptor validation Error.
var ErrInvalidDescriptor = errors.New("pgproto/schema: invalid descriptor")

// Error reports a descriptor that violates the model invariants.
type Error struct {
	Schema   string
	Table    string
	Column   string
	Function string
	Message  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("pgproto/schema: ")
	var path []string
	for _, p := range []string{e.Schema, e.Table} {
		if p != "" {
			path = append(path, p)
		}
	}
	if len(path) > 0 {
		b.WriteString(strings.Join(path, "."))
	}
	if e.Column != "" {
		b.WriteString(" column ")
		b.WriteString(e.Column)
	}
	if e.Function != "" {
		b.WriteString(" function ")
		b.WriteString(e.Function)
	}
	if b.Len() > len("pgproto/schema: ") {
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Is reports whether the target matches ErrInvalidDescriptor.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidDescriptor
}

func newError(schemaName, table, msg string) *Error {
	return &Error{Schema: schemaName, Table: table, Message: msg}
}

func newColumnError(schemaName, table, column, msg string) *Error {
	return &Error{Schema: schemaName, Table: table, Column: column, Message: msg}
}
