// Package validate accumulates request validation failures.
//
// Generated validators receive a *Result, record failures with Fail, Failf
// or Check, and the service returns Err to the caller:
//
//	res := validate.New("CreatePersonRequest")
//	res.Check(req.GetEntity().GetName() != "", "name is required")
//	return res.Err()
package validate

import (
	"fmt"
	"slices"

	"github.com/syssam/pgproto"
)

// Result holds the outcome of validating one request shape.
// The zero value is a passing result for an unnamed shape.
type Result struct {
	shape    string
	messages []string
}

// New returns a passing result for the named request shape.
func New(shape string) *Result {
	return &Result{shape: shape}
}

// Shape returns the validated request shape.
func (r *Result) Shape() string { return r.shape }

// Fail records a failure message.
func (r *Result) Fail(msg string) *Result {
	r.messages = append(r.messages, msg)
	return r
}

// Failf records a formatted failure message.
func (r *Result) Failf(format string, args ...any) *Result {
	return r.Fail(fmt.Sprintf(format, args...))
}

// Check records msg when cond is false.
func (r *Result) Check(cond bool, msg string) *Result {
	if !cond {
		r.Fail(msg)
	}
	return r
}

// OK reports whether no failure was recorded.
func (r *Result) OK() bool { return len(r.messages) == 0 }

// Messages returns the recorded failures in order.
func (r *Result) Messages() []string { return slices.Clone(r.messages) }

// Err returns nil when the result passed, and a *pgproto.ValidationError
// carrying every message otherwise.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return pgproto.NewValidationError(r.shape, r.Messages()...)
}
