package gen

import (
	"slices"

	"google.golang.org/genproto/googleapis/type/date"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/syssam/pgproto/compiler/typemap"
)

// Well-known files imported by generated IDL. Referencing the Go packages
// links their descriptors into protoregistry.GlobalFiles.
var wellKnown = []protoreflect.FileDescriptor{
	timestamppb.File_google_protobuf_timestamp_proto,
	date.File_google_type_date_proto,
}

var (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	message  = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
)

// FileDescriptor builds the IDL file descriptor of the type.
func (t *Type) FileDescriptor() *descriptorpb.FileDescriptorProto {
	pkg := t.ProtoPackage()
	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(t.table.Name() + ".proto"),
		Package: proto.String(pkg),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String(t.PBPackage() + ";pb"),
		},
		Dependency: t.imports(),
	}
	ref := func(name string) string { return "." + pkg + "." + name }

	entity := &descriptorpb.DescriptorProto{Name: proto.String(t.Name)}
	for _, f := range t.Fields {
		entity.Field = append(entity.Field, wireField(f.Name, f.Number, f.Mapping))
	}
	fd.MessageType = append(fd.MessageType, entity)
	for _, q := range t.Qualifiers {
		m := &descriptorpb.DescriptorProto{Name: proto.String(q.Message)}
		for i, p := range q.Params {
			m.Field = append(m.Field, wireField(p.Name, int32(i+1), p.Mapping))
		}
		fd.MessageType = append(fd.MessageType, m)
	}

	id := wireField("id", 1, t.ID.Mapping)
	entityField := func(n int32) *descriptorpb.FieldDescriptorProto {
		return messageField("entity", n, ref(t.Name), false)
	}
	qualifierFields := func(from int32) []*descriptorpb.FieldDescriptorProto {
		fields := make([]*descriptorpb.FieldDescriptorProto, len(t.Qualifiers))
		for i, q := range t.Qualifiers {
			fields[i] = messageField(q.Field, from+int32(i), ref(q.Message), true)
		}
		return fields
	}
	scalarField := func(name string, n int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(jsonName(name)),
			Number:   proto.Int32(n),
			Label:    optional,
			Type:     typ.Enum(),
		}
	}
	fd.MessageType = append(fd.MessageType,
		msg(t.Request("Create"), entityField(1)),
		msg(t.Response("Create"), entityField(1)),
		msg(t.Request("Get"), id),
		msg(t.Response("Get"), entityField(1)),
		msg(t.Request("Update"), append([]*descriptorpb.FieldDescriptorProto{
			proto.Clone(id).(*descriptorpb.FieldDescriptorProto),
			entityField(2),
			scalarField("sparse", 3, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
		}, qualifierFields(4)...)...),
		msg(t.Response("Update"), entityField(1)),
		msg(t.Request("Delete"), append([]*descriptorpb.FieldDescriptorProto{
			proto.Clone(id).(*descriptorpb.FieldDescriptorProto),
		}, qualifierFields(2)...)...),
		msg(t.Response("Delete")),
		msg(t.Request("List"), append([]*descriptorpb.FieldDescriptorProto{
			scalarField("limit", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalarField("offset", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		}, qualifierFields(3)...)...),
		msg(t.Response("List"), entityField(1)),
	)

	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String(t.ServiceName())}
	for _, verb := range []string{"Create", "Get", "Update", "Delete", "List"} {
		m := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(verb),
			InputType:  proto.String(ref(t.Request(verb))),
			OutputType: proto.String(ref(t.Response(verb))),
		}
		if verb == "List" {
			m.ServerStreaming = proto.Bool(true)
		}
		svc.Method = append(svc.Method, m)
	}
	fd.Service = []*descriptorpb.ServiceDescriptorProto{svc}
	return fd
}

// imports returns the proto files required by the wire types of the table,
// in first-seen order.
func (t *Type) imports() []string {
	var deps []string
	add := func(m typemap.Mapping) {
		for _, i := range m.Imports() {
			if !slices.Contains(deps, i) {
				deps = append(deps, i)
			}
		}
	}
	for _, f := range t.Fields {
		add(f.Mapping)
	}
	for _, q := range t.Qualifiers {
		for _, p := range q.Params {
			add(p.Mapping)
		}
	}
	return deps
}

func msg(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func wireField(name string, n int32, m typemap.Mapping) *descriptorpb.FieldDescriptorProto {
	w := m.WireType()
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(n),
		Label:    optional,
		Type:     w.Type.Enum(),
	}
	if m.Repeated {
		f.Label = repeated
	}
	if tn := w.TypeName(); tn != "" {
		f.TypeName = proto.String(tn)
	}
	return f
}

func messageField(name string, n int32, typeName string, rep bool) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(n),
		Label:    optional,
		Type:     message,
		TypeName: proto.String(typeName),
	}
	if rep {
		f.Label = repeated
	}
	return f
}

// jsonName returns the JSON name protoc assigns to a field.
func jsonName(name string) string {
	var (
		b     []byte
		upper bool
	)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_':
			upper = true
		case upper && 'a' <= c && c <= 'z':
			b = append(b, c-'a'+'A')
			upper = false
		default:
			b = append(b, c)
			upper = false
		}
	}
	return string(b)
}

// Descriptors builds and validates the file descriptors of every type. Files
// are checked together, so two tables declaring the same message name fail.
func (g *Graph) Descriptors() ([]*descriptorpb.FileDescriptorProto, error) {
	files := new(protoregistry.Files)
	for _, fd := range wellKnown {
		if err := files.RegisterFile(fd); err != nil {
			return nil, &GenerationError{Phase: "proto", File: fd.Path(), Cause: err}
		}
	}
	fds := make([]*descriptorpb.FileDescriptorProto, 0, len(g.Nodes))
	for _, t := range g.Nodes {
		fdp := t.FileDescriptor()
		fd, err := protodesc.NewFile(fdp, files)
		if err != nil {
			return nil, &GenerationError{Phase: "proto", Table: t.QualifiedName(), File: t.ProtoFile(), Cause: err}
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, &GenerationError{Phase: "proto", Table: t.QualifiedName(), File: t.ProtoFile(), Cause: err}
		}
		fds = append(fds, fdp)
	}
	return fds, nil
}

// DescriptorSet returns the deterministic encoding of a descriptor set holding
// the given files preceded by the well-known files they import.
func DescriptorSet(fds []*descriptorpb.FileDescriptorProto) ([]byte, error) {
	set := &descriptorpb.FileDescriptorSet{}
	used := make(map[string]struct{})
	for _, fd := range fds {
		for _, dep := range fd.GetDependency() {
			used[dep] = struct{}{}
		}
	}
	for _, fd := range wellKnown {
		if _, ok := used[fd.Path()]; ok {
			set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
		}
	}
	set.File = append(set.File, fds...)
	return proto.MarshalOptions{Deterministic: true}.Marshal(set)
}
