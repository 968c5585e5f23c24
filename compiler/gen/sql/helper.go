package sql

import (
	"strings"

	"github.com/dave/jennifer/jen"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/syssam/pgproto/compiler/gen"
	"github.com/syssam/pgproto/compiler/typemap"
)

const (
	timestamppbPkg = "google.golang.org/protobuf/types/known/timestamppb"
	datePkg        = "google.golang.org/genproto/googleapis/type/date"
	protoPkg       = "google.golang.org/protobuf/proto"
	protoreflPkg   = "google.golang.org/protobuf/reflect/protoreflect"
	grpcPkg        = "google.golang.org/grpc"
	zapPkg         = "go.uber.org/zap"
)

// wellKnown maps message wire types to their Go packages.
var wellKnown = map[string]jen.Code{
	"google.protobuf.Timestamp": jen.Qual(timestamppbPkg, "Timestamp"),
	"google.type.Date":          jen.Qual(datePkg, "Date"),
}

// wireGoType returns the Go type of a generated message field holding the
// mapped value. Message types outside wellKnown are expected in the
// generated protobuf package.
func wireGoType(h gen.GeneratorHelper, m typemap.Mapping) jen.Code {
	var elem jen.Code
	w := m.WireType()
	switch w.Type {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32:
		elem = jen.Int32()
	case descriptorpb.FieldDescriptorProto_TYPE_INT64:
		elem = jen.Int64()
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		elem = jen.Float32()
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		elem = jen.Float64()
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		elem = jen.Bool()
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		elem = jen.Index().Byte()
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		typ, ok := wellKnown[w.Message]
		if !ok {
			typ = jen.Qual(h.PBPkg(), w.Message[strings.LastIndexByte(w.Message, '.')+1:])
		}
		elem = jen.Op("*").Add(typ)
	default:
		elem = jen.String()
	}
	if m.Repeated {
		return jen.Index().Add(elem)
	}
	return elem
}

// entity returns the generated protobuf message type of the table.
func entity(h gen.GeneratorHelper, t *gen.Type) *jen.Statement {
	return jen.Op("*").Qual(h.PBPkg(), t.Name)
}

// pbType returns a generated protobuf message pointer type.
func pbType(h gen.GeneratorHelper, name string) *jen.Statement {
	return jen.Op("*").Qual(h.PBPkg(), name)
}

// shapeName returns the expression naming a request message in validation errors.
func shapeName(req jen.Code) *jen.Statement {
	return jen.String().Call(jen.Add(req).Dot("ProtoReflect").Call().Dot("Descriptor").Call().Dot("Name").Call())
}

// params returns the signature parameters of a qualifier or function.
func params(h gen.GeneratorHelper, ps []*gen.Param) []jen.Code {
	out := make([]jen.Code, len(ps))
	for i, p := range ps {
		out[i] = jen.Id(p.Arg).Add(wireGoType(h, p.Mapping))
	}
	return out
}

// args returns the bound arguments of a qualifier or function call.
func args(ps []*gen.Param) []jen.Code {
	out := make([]jen.Code, len(ps))
	for i, p := range ps {
		out[i] = p.Mapping.Write(jen.Id(p.Arg))
	}
	return out
}
