// Package wire converts between database values and their protobuf wire
// representations. Generated relation code calls these helpers from the read
// and write expressions of the type mapping registry.
package wire

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"google.golang.org/genproto/googleapis/type/date"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// UUIDBytes returns the 16-byte big-endian form of id: the high 64-bit half
// followed by the low half.
func UUIDBytes(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// UUIDBytesSlice converts each id with UUIDBytes.
func UUIDBytesSlice(ids []uuid.UUID) [][]byte {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = UUIDBytes(id)
	}
	return out
}

// UUIDHalves splits id into its most and least significant 64-bit halves.
func UUIDHalves(id uuid.UUID) (hi, lo uint64) {
	return binary.BigEndian.Uint64(id[:8]), binary.BigEndian.Uint64(id[8:])
}

// UUIDFromHalves joins two 64-bit halves into a UUID.
func UUIDFromHalves(hi, lo uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], hi)
	binary.BigEndian.PutUint64(id[8:], lo)
	return id
}

// UUIDValue is a driver.Valuer binding a 16-byte wire value as a uuid parameter.
type UUIDValue []byte

// UUID returns a bindable value for the 16-byte wire form b. An empty b binds NULL.
func UUID(b []byte) UUIDValue { return UUIDValue(b) }

// Value implements driver.Valuer.
func (u UUIDValue) Value() (driver.Value, error) {
	if len(u) == 0 {
		return nil, nil
	}
	id, err := uuid.FromBytes(u)
	if err != nil {
		return nil, fmt.Errorf("wire: uuid must be 16 bytes, got %d", len(u))
	}
	return id.String(), nil
}

// UUIDArrayValue is a driver.Valuer binding 16-byte wire values as a uuid[] parameter.
type UUIDArrayValue [][]byte

// UUIDs returns a bindable uuid[] value for the given 16-byte wire forms.
// A nil slice binds the empty array.
func UUIDs(bs [][]byte) UUIDArrayValue { return UUIDArrayValue(bs) }

// Value implements driver.Valuer.
func (a UUIDArrayValue) Value() (driver.Value, error) {
	ids := make(pq.StringArray, len(a))
	for i, b := range a {
		id, err := uuid.FromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("wire: uuid element %d must be 16 bytes, got %d", i, len(b))
		}
		ids[i] = id.String()
	}
	return ids.Value()
}

// Date returns the calendar date of t.
func Date(t time.Time) *date.Date {
	return &date.Date{Year: int32(t.Year()), Month: int32(t.Month()), Day: int32(t.Day())}
}

// DateValue is a driver.Valuer binding a wire date as a date parameter.
type DateValue struct {
	d *date.Date
}

// DateOf returns a bindable value for d. A nil date binds NULL.
func DateOf(d *date.Date) DateValue { return DateValue{d: d} }

// Value implements driver.Valuer.
func (v DateValue) Value() (driver.Value, error) {
	if v.d == nil {
		return nil, nil
	}
	if v.d.GetYear() == 0 || v.d.GetMonth() == 0 || v.d.GetDay() == 0 {
		return nil, fmt.Errorf("wire: incomplete date %d-%d-%d", v.d.GetYear(), v.d.GetMonth(), v.d.GetDay())
	}
	return fmt.Sprintf("%04d-%02d-%02d", v.d.GetYear(), v.d.GetMonth(), v.d.GetDay()), nil
}

// Timestamp returns t as a protobuf timestamp, keeping sub-second precision.
func Timestamp(t time.Time) *timestamppb.Timestamp {
	return timestamppb.New(t)
}

// TimestampValue is a driver.Valuer binding a wire timestamp.
type TimestampValue struct {
	ts *timestamppb.Timestamp
}

// TimestampOf returns a bindable value for ts. A nil timestamp binds NULL.
func TimestampOf(ts *timestamppb.Timestamp) TimestampValue { return TimestampValue{ts: ts} }

// Value implements driver.Valuer.
func (v TimestampValue) Value() (driver.Value, error) {
	if v.ts == nil {
		return nil, nil
	}
	if err := v.ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	return v.ts.AsTime(), nil
}

// ArrayValue is a driver.Valuer binding a repeated scalar field as an array
// parameter. Empty repeated fields are nil slices on the wire and bind the
// empty array, never NULL.
type ArrayValue struct {
	v driver.Valuer
}

// Array returns a bindable array value for a repeated scalar field.
func Array(a any) ArrayValue { return ArrayValue{v: pq.Array(a)} }

// Value implements driver.Valuer.
func (a ArrayValue) Value() (driver.Value, error) {
	v, err := a.v.Value()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return emptyArray, nil
	}
	return v, nil
}

const emptyArray = "{}"
