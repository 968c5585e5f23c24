package sql

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// sqlStateError is implemented by drivers other than lib/pq that expose SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// sqlState returns the SQLSTATE code carried by err, or "".
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var se sqlStateError
	if errors.As(err, &se) {
		return se.SQLState()
	}
	return ""
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return matches(err, pgUniqueViolation, "violates unique constraint")
}

// IsForeignKeyConstraintError reports if the error resulted from a foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return matches(err, pgForeignKeyViolation, "violates foreign key constraint")
}

// IsCheckConstraintError reports if the error resulted from a check constraint violation.
func IsCheckConstraintError(err error) bool {
	return matches(err, pgCheckViolation, "violates check constraint")
}

// IsNotNullConstraintError reports if the error resulted from a not-null constraint violation.
func IsNotNullConstraintError(err error) bool {
	return matches(err, pgNotNullViolation, "violates not-null constraint")
}

func matches(err error, code, text string) bool {
	if err == nil {
		return false
	}
	if c := sqlState(err); c != "" {
		return c == code
	}
	// Fallback to string matching for wrapped driver errors without codes.
	return strings.Contains(err.Error(), text)
}
