package typemap

import (
	"slices"

	"github.com/dave/jennifer/jen"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Import paths referenced by generated expressions.
const (
	WirePkg = "github.com/syssam/pgproto/wire"
	UUIDPkg = "github.com/google/uuid"
)

// Proto files required by message wire types.
const (
	TimestampProto = "google/protobuf/timestamp.proto"
	DateProto      = "google/type/date.proto"
)

// Func is a Handler assembled from its parts. Nil Write binds the wire
// value unchanged.
type Func struct {
	Natives  []string
	Wire     WireType
	Go       jen.Code
	ReadFn   func(rec, column jen.Code) jen.Code
	WriteFn  func(value jen.Code) jen.Code
	Requires []string
}

// NativeTypes implements Handler.
func (f *Func) NativeTypes() []string { return slices.Clone(f.Natives) }

// WireType implements Handler.
func (f *Func) WireType() WireType { return f.Wire }

// GoType implements Handler.
func (f *Func) GoType() jen.Code { return f.Go }

// Read implements Handler.
func (f *Func) Read(rec, column jen.Code) jen.Code { return f.ReadFn(rec, column) }

// Write implements Handler.
func (f *Func) Write(value jen.Code) jen.Code {
	if f.WriteFn == nil {
		return value
	}
	return f.WriteFn(value)
}

// Imports implements Handler.
func (f *Func) Imports() []string { return slices.Clone(f.Requires) }

// getter returns a Read function calling the named Record method.
func getter(method string) func(rec, column jen.Code) jen.Code {
	return func(rec, column jen.Code) jen.Code {
		return jen.Add(rec).Dot(method).Call(column)
	}
}

// wrapped returns a Read function passing the Record getter result through a wire helper.
func wrapped(helper, method string) func(rec, column jen.Code) jen.Code {
	return func(rec, column jen.Code) jen.Code {
		return jen.Qual(WirePkg, helper).Call(jen.Add(rec).Dot(method).Call(column))
	}
}

// wireCall returns a Write function passing the value through a wire helper.
func wireCall(helper string) func(value jen.Code) jen.Code {
	return func(value jen.Code) jen.Code {
		return jen.Qual(WirePkg, helper).Call(value)
	}
}

func scalar(t descriptorpb.FieldDescriptorProto_Type) WireType { return WireType{Type: t} }

const (
	typeInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
	typeInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeFloat  = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	typeDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
)

var (
	timestampType = WireType{Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, Message: "google.protobuf.Timestamp"}
	dateType      = WireType{Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, Message: "google.type.Date"}
)

// Default returns a registry holding the built-in PostgreSQL handlers.
func Default() *Registry {
	r := New()
	r.MustRegister(
		&Func{Natives: []string{"int2", "int4"}, Wire: scalar(typeInt32), Go: jen.Int32(), ReadFn: getter("Int32")},
		&Func{Natives: []string{"int8"}, Wire: scalar(typeInt64), Go: jen.Int64(), ReadFn: getter("Int64")},
		&Func{Natives: []string{"float4"}, Wire: scalar(typeFloat), Go: jen.Float32(), ReadFn: getter("Float32")},
		&Func{Natives: []string{"float8"}, Wire: scalar(typeDouble), Go: jen.Float64(), ReadFn: getter("Float64")},
		&Func{Natives: []string{"numeric"}, Wire: scalar(typeString), Go: jen.String(), ReadFn: getter("Decimal")},
		&Func{Natives: []string{"bool"}, Wire: scalar(typeBool), Go: jen.Bool(), ReadFn: getter("Bool")},
		&Func{
			Natives: []string{"text", "varchar", "bpchar", "name", "citext", "json", "jsonb"},
			Wire:    scalar(typeString),
			Go:      jen.String(),
			ReadFn:  getter("String"),
		},
		&Func{Natives: []string{"bytea"}, Wire: scalar(typeBytes), Go: jen.Index().Byte(), ReadFn: getter("Bytes")},
		&Func{
			Natives:  []string{"timestamp", "timestamptz"},
			Wire:     timestampType,
			Go:       jen.Qual("time", "Time"),
			ReadFn:   wrapped("Timestamp", "Time"),
			WriteFn:  wireCall("TimestampOf"),
			Requires: []string{TimestampProto},
		},
		&Func{
			Natives:  []string{"date"},
			Wire:     dateType,
			Go:       jen.Qual("time", "Time"),
			ReadFn:   wrapped("Date", "Time"),
			WriteFn:  wireCall("DateOf"),
			Requires: []string{DateProto},
		},
		&Func{
			Natives: []string{"uuid"},
			Wire:    scalar(typeBytes),
			Go:      jen.Qual(UUIDPkg, "UUID"),
			ReadFn:  wrapped("UUIDBytes", "UUID"),
			WriteFn: wireCall("UUID"),
		},
		&Func{Natives: []string{"_int2", "_int4"}, Wire: scalar(typeInt32), Go: jen.Index().Int32(), ReadFn: getter("Int32s"), WriteFn: wireCall("Array")},
		&Func{Natives: []string{"_int8"}, Wire: scalar(typeInt64), Go: jen.Index().Int64(), ReadFn: getter("Int64s"), WriteFn: wireCall("Array")},
		&Func{Natives: []string{"_float4"}, Wire: scalar(typeFloat), Go: jen.Index().Float32(), ReadFn: getter("Float32s"), WriteFn: wireCall("Array")},
		&Func{Natives: []string{"_float8"}, Wire: scalar(typeDouble), Go: jen.Index().Float64(), ReadFn: getter("Float64s"), WriteFn: wireCall("Array")},
		&Func{Natives: []string{"_bool"}, Wire: scalar(typeBool), Go: jen.Index().Bool(), ReadFn: getter("Bools"), WriteFn: wireCall("Array")},
		&Func{Natives: []string{"_text", "_varchar"}, Wire: scalar(typeString), Go: jen.Index().String(), ReadFn: getter("Strings"), WriteFn: wireCall("Array")},
		&Func{
			Natives: []string{"_uuid"},
			Wire:    scalar(typeBytes),
			Go:      jen.Index().Qual(UUIDPkg, "UUID"),
			ReadFn:  wrapped("UUIDBytesSlice", "UUIDs"),
			WriteFn: wireCall("UUIDs"),
		},
	)
	return r
}
