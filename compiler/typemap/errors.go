package typemap

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry failures.
var (
	// ErrUnmapped is matched by every UnmappedTypeError.
	ErrUnmapped = errors.New("pgproto/typemap: unmapped native type")
	// ErrInconsistent is matched by every ConsistencyError.
	ErrInconsistent = errors.New("pgproto/typemap: inconsistent registry")
)

// UnmappedTypeError is returned when no handler is registered for a native type.
type UnmappedTypeError struct {
	NativeType string
}

// Error implements the error interface.
func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("pgproto/typemap: no handler registered for native type %q", e.NativeType)
}

// Is reports whether the target matches ErrUnmapped.
func (e *UnmappedTypeError) Is(target error) bool {
	return target == ErrUnmapped
}

// ConsistencyError reports an internal registry misconfiguration: a handler
// mixing array and scalar variants without overriding repeated detection, or
// two handlers claiming the same native type.
type ConsistencyError struct {
	NativeTypes []string
	Message     string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("pgproto/typemap: %s [%s]", e.Message, strings.Join(e.NativeTypes, ", "))
}

// Is reports whether the target matches ErrInconsistent.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrInconsistent
}

// IsUnmapped reports whether the error is an UnmappedTypeError.
func IsUnmapped(err error) bool {
	var e *UnmappedTypeError
	return errors.As(err, &e)
}
