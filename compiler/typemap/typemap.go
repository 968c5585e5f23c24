// Package typemap maps PostgreSQL native types to protobuf wire types and to
// the Go expressions generated code uses to read and bind them.
//
// A Registry is populated by explicit Register calls before generation
// starts and is read-only afterwards, so it may be shared by concurrent
// emitters without locking.
package typemap

import (
	"slices"
	"strings"

	"github.com/dave/jennifer/jen"
	"google.golang.org/protobuf/types/descriptorpb"
)

// WireType is the protobuf field type of a mapped value.
type WireType struct {
	// Type is the protobuf scalar kind, or TYPE_MESSAGE.
	Type descriptorpb.FieldDescriptorProto_Type
	// Message is the fully-qualified message name when Type is TYPE_MESSAGE.
	Message string
}

// Keyword returns the name used for the type in .proto text.
func (w WireType) Keyword() string {
	if w.Type == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE {
		return w.Message
	}
	return strings.ToLower(strings.TrimPrefix(w.Type.String(), "TYPE_"))
}

// TypeName returns the descriptor type_name reference, or "" for scalars.
func (w WireType) TypeName() string {
	if w.Type == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE {
		return "." + w.Message
	}
	return ""
}

// Handler translates one family of native types.
type Handler interface {
	// NativeTypes returns every native type name the handler serves.
	NativeTypes() []string
	// WireType returns the protobuf element type.
	WireType() WireType
	// GoType returns the Go type of the column value used by typed filters.
	GoType() jen.Code
	// Read returns an expression reading the column from a *sql.Record and
	// converting it to the wire representation.
	Read(rec, column jen.Code) jen.Code
	// Write returns an expression converting a wire value into a bindable parameter.
	Write(value jen.Code) jen.Code
	// Imports returns the .proto files the wire type requires.
	Imports() []string
}

// RepeatedOverride is implemented by handlers that decide repeated-ness
// themselves instead of relying on array detection.
type RepeatedOverride interface {
	Repeated() bool
}

// Mapping is the result of a registry lookup.
type Mapping struct {
	Handler
	Repeated bool
}

// Registry is a static registry keyed by native type name.
type Registry struct {
	mappings map[string]Mapping
	order    []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{mappings: make(map[string]Mapping)}
}

// Register adds h for every native type it declares.
func (r *Registry) Register(h Handler) error {
	natives := h.NativeTypes()
	if len(natives) == 0 {
		return &ConsistencyError{Message: "handler declares no native types"}
	}
	repeated, err := repeatedOf(h, natives)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(natives))
	for _, n := range natives {
		_, dup := seen[n]
		if _, ok := r.mappings[n]; ok || dup {
			return &ConsistencyError{NativeTypes: []string{n}, Message: "native type registered twice"}
		}
		seen[n] = struct{}{}
	}
	for _, n := range natives {
		r.mappings[n] = Mapping{Handler: h, Repeated: repeated}
		r.order = append(r.order, n)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(hs ...Handler) *Registry {
	for _, h := range hs {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the mapping of a native type.
func (r *Registry) Lookup(native string) (Mapping, error) {
	m, ok := r.mappings[native]
	if !ok {
		return Mapping{}, &UnmappedTypeError{NativeType: native}
	}
	return m, nil
}

// NativeTypes returns the registered native types in registration order.
func (r *Registry) NativeTypes() []string { return slices.Clone(r.order) }

// IsArray reports whether a native type name denotes an array type, either
// in catalog form (_int4) or in declaration form (int4[]).
func IsArray(native string) bool {
	name := native
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.HasPrefix(name, "_") || strings.HasSuffix(name, "[]")
}

func repeatedOf(h Handler, natives []string) (bool, error) {
	if o, ok := h.(RepeatedOverride); ok {
		return o.Repeated(), nil
	}
	arrays := 0
	for _, n := range natives {
		if IsArray(n) {
			arrays++
		}
	}
	switch arrays {
	case 0:
		return false, nil
	case len(natives):
		return true, nil
	default:
		return false, &ConsistencyError{NativeTypes: slices.Clone(natives), Message: "handler mixes array and scalar variants"}
	}
}
