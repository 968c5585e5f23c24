package sql

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Record is a single scanned row addressed by column name. Getters convert
// the driver value to the requested type; the first conversion failure is
// latched and reported by Err, after which getters return zero values.
type Record struct {
	columns []string
	index   map[string]int
	values  []any
	err     error
}

// NewRecord returns a record over the given column names and driver values.
func NewRecord(columns []string, values []any) *Record {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Record{columns: columns, index: index, values: values}
}

// Columns returns the column names of the record.
func (r *Record) Columns() []string { return r.columns }

// Err returns the first conversion error, if any.
func (r *Record) Err() error { return r.err }

// Has reports whether the record carries the column.
func (r *Record) Has(column string) bool {
	_, ok := r.index[column]
	return ok
}

// IsNull reports whether the column is absent or holds SQL NULL.
func (r *Record) IsNull(column string) bool {
	i, ok := r.index[column]
	return !ok || r.values[i] == nil
}

// Value returns the raw driver value of the column.
func (r *Record) Value(column string) any {
	if i, ok := r.index[column]; ok {
		return r.values[i]
	}
	return nil
}

func (r *Record) fail(column, want string, v any, cause error) {
	if r.err != nil {
		return
	}
	if cause != nil {
		r.err = fmt.Errorf("dialect/sql: column %q: converting %T to %s: %w", column, v, want, cause)
		return
	}
	r.err = fmt.Errorf("dialect/sql: column %q: cannot convert %T to %s", column, v, want)
}

// get returns the value of column, or nil when a previous error is latched.
func (r *Record) get(column string) (any, bool) {
	if r.err != nil {
		return nil, false
	}
	i, ok := r.index[column]
	if !ok {
		r.err = fmt.Errorf("dialect/sql: column %q not in result", column)
		return nil, false
	}
	return r.values[i], r.values[i] != nil
}

func text(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// Int64 returns the column as int64.
func (r *Record) Int64(column string) int64 {
	v, ok := r.get(column)
	if !ok {
		return 0
	}
	switch v := v.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	if s, ok := text(v); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			r.fail(column, "int64", v, err)
		}
		return n
	}
	r.fail(column, "int64", v, nil)
	return 0
}

// Int32 returns the column as int32.
func (r *Record) Int32(column string) int32 {
	n := r.Int64(column)
	if n < math.MinInt32 || n > math.MaxInt32 {
		r.fail(column, "int32", n, strconv.ErrRange)
		return 0
	}
	return int32(n)
}

// Float64 returns the column as float64.
func (r *Record) Float64(column string) float64 {
	v, ok := r.get(column)
	if !ok {
		return 0
	}
	switch v := v.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	}
	if s, ok := text(v); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			r.fail(column, "float64", v, err)
		}
		return f
	}
	r.fail(column, "float64", v, nil)
	return 0
}

// Float32 returns the column as float32.
func (r *Record) Float32(column string) float32 {
	return float32(r.Float64(column))
}

// Decimal returns a fixed-precision column in its exact decimal text form.
func (r *Record) Decimal(column string) string {
	v, ok := r.get(column)
	if !ok {
		return ""
	}
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if s, ok := text(v); ok {
		return s
	}
	r.fail(column, "decimal", v, nil)
	return ""
}

// Bool returns the column as bool.
func (r *Record) Bool(column string) bool {
	v, ok := r.get(column)
	if !ok {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := text(v); ok {
		b, err := strconv.ParseBool(s)
		if err != nil {
			r.fail(column, "bool", v, err)
		}
		return b
	}
	r.fail(column, "bool", v, nil)
	return false
}

// String returns the column as string.
func (r *Record) String(column string) string {
	v, ok := r.get(column)
	if !ok {
		return ""
	}
	if s, ok := text(v); ok {
		return s
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	r.fail(column, "string", v, nil)
	return ""
}

// Bytes returns the column as a byte slice.
func (r *Record) Bytes(column string) []byte {
	v, ok := r.get(column)
	if !ok {
		return nil
	}
	switch v := v.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	r.fail(column, "[]byte", v, nil)
	return nil
}

// Time returns a timestamp or date column as time.Time.
func (r *Record) Time(column string) time.Time {
	v, ok := r.get(column)
	if !ok {
		return time.Time{}
	}
	if t, ok := v.(time.Time); ok {
		return t
	}
	if s, ok := text(v); ok {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999", time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	r.fail(column, "time.Time", v, nil)
	return time.Time{}
}

// UUID returns a uuid column. Both the 16-byte binary and the text forms are accepted.
func (r *Record) UUID(column string) uuid.UUID {
	v, ok := r.get(column)
	if !ok {
		return uuid.Nil
	}
	if b, ok := v.([]byte); ok && len(b) == 16 {
		id, err := uuid.FromBytes(b)
		if err != nil {
			r.fail(column, "uuid", v, err)
		}
		return id
	}
	if s, ok := text(v); ok {
		id, err := uuid.Parse(s)
		if err != nil {
			r.fail(column, "uuid", v, err)
		}
		return id
	}
	r.fail(column, "uuid", v, nil)
	return uuid.Nil
}

func (r *Record) scanArray(column string, dest sql.Scanner) bool {
	v, ok := r.get(column)
	if !ok {
		return false
	}
	if err := dest.Scan(v); err != nil {
		r.fail(column, fmt.Sprintf("%T", dest), v, err)
		return false
	}
	return true
}

// Int64s returns an integer array column.
func (r *Record) Int64s(column string) []int64 {
	var a pq.Int64Array
	if !r.scanArray(column, &a) {
		return nil
	}
	return a
}

// Int32s returns an int2 or int4 array column.
func (r *Record) Int32s(column string) []int32 {
	var a pq.Int32Array
	if !r.scanArray(column, &a) {
		return nil
	}
	return a
}

// Float64s returns a float8 array column.
func (r *Record) Float64s(column string) []float64 {
	var a pq.Float64Array
	if !r.scanArray(column, &a) {
		return nil
	}
	return a
}

// Float32s returns a float4 array column.
func (r *Record) Float32s(column string) []float32 {
	var a pq.Float32Array
	if !r.scanArray(column, &a) {
		return nil
	}
	return a
}

// Bools returns a boolean array column.
func (r *Record) Bools(column string) []bool {
	var a pq.BoolArray
	if !r.scanArray(column, &a) {
		return nil
	}
	return a
}

// Strings returns a text array column.
func (r *Record) Strings(column string) []string {
	var a pq.StringArray
	if !r.scanArray(column, &a) {
		return nil
	}
	return a
}

// UUIDs returns a uuid array column.
func (r *Record) UUIDs(column string) []uuid.UUID {
	var a pq.StringArray
	if !r.scanArray(column, &a) {
		return nil
	}
	ids := make([]uuid.UUID, len(a))
	for i, s := range a {
		id, err := uuid.Parse(s)
		if err != nil {
			r.fail(column, "[]uuid", s, err)
			return nil
		}
		ids[i] = id
	}
	return ids
}
