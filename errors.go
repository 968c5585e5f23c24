package pgproto

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for request-time failures.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("pgproto: entity not found")

	// ErrRead is matched by every ReadError.
	ErrRead = errors.New("pgproto: read failed")

	// ErrWrite is matched by every WriteError.
	ErrWrite = errors.New("pgproto: write failed")

	// ErrInvalid is matched by every ValidationError.
	ErrInvalid = errors.New("pgproto: invalid request")

	// ErrPermission is matched by every PermissionError.
	ErrPermission = errors.New("pgproto: permission denied")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("pgproto: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("pgproto: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the identifier that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ReadError wraps a failure while executing a query. The cause is kept for
// logging and is never rendered to RPC callers.
type ReadError struct {
	Entity string // Entity type being read
	Op     string // Operation (e.g., "select", "scan")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *ReadError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("pgproto: reading %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("pgproto: reading %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrRead.
func (e *ReadError) Is(target error) bool {
	return target == ErrRead
}

// NewReadError returns a new ReadError.
func NewReadError(entity, op string, err error) *ReadError {
	return &ReadError{Entity: entity, Op: op, Err: err}
}

// IsReadError returns true if the error is a ReadError.
func IsReadError(err error) bool {
	if err == nil {
		return false
	}
	var e *ReadError
	return errors.As(err, &e)
}

// WriteError wraps a failure while executing an insert, update or delete.
type WriteError struct {
	Entity string // Entity type being written
	Op     string // Operation (e.g., "create", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *WriteError) Error() string {
	return fmt.Sprintf("pgproto: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrWrite.
func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}

// NewWriteError returns a new WriteError.
func NewWriteError(entity, op string, err error) *WriteError {
	return &WriteError{Entity: entity, Op: op, Err: err}
}

// IsWriteError returns true if the error is a WriteError.
func IsWriteError(err error) bool {
	if err == nil {
		return false
	}
	var e *WriteError
	return errors.As(err, &e)
}

// ValidationError holds the accumulated messages of a failed request validation.
type ValidationError struct {
	Shape    string   // Request shape (e.g., "CreatePersonRequest")
	Messages []string // Human-readable failure messages
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("pgproto: invalid ")
	if e.Shape != "" {
		b.WriteString(e.Shape)
	} else {
		b.WriteString("request")
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	return b.String()
}

// Is reports whether the target matches ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// NewValidationError returns a new ValidationError.
func NewValidationError(shape string, messages ...string) *ValidationError {
	return &ValidationError{Shape: shape, Messages: messages}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// PermissionError denotes that the caller may not perform the operation at all.
type PermissionError struct {
	Entity string // Entity type
	Op     string // Operation verb
	Reason error  // Decision returned by the policy
}

// Error returns the error string.
func (e *PermissionError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("pgproto: permission denied %s on %s: %v", e.Op, e.Entity, e.Reason)
	}
	return fmt.Sprintf("pgproto: permission denied %s on %s", e.Op, e.Entity)
}

// Unwrap returns the policy decision.
func (e *PermissionError) Unwrap() error {
	return e.Reason
}

// Is reports whether the target matches ErrPermission.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission
}

// NewPermissionError returns a new PermissionError.
func NewPermissionError(entity, op string, reason error) *PermissionError {
	return &PermissionError{Entity: entity, Op: op, Reason: reason}
}

// IsPermissionError returns true if the error is a PermissionError.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	var e *PermissionError
	return errors.As(err, &e)
}
