package gen

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// PrintProto renders a file descriptor built by FileDescriptor as .proto text.
func PrintProto(header string, fd *descriptorpb.FileDescriptorProto) []byte {
	var b strings.Builder
	if header != "" {
		for _, line := range strings.Split(header, "\n") {
			fmt.Fprintf(&b, "// %s\n", line)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "syntax = %q;\n\n", fd.GetSyntax())
	fmt.Fprintf(&b, "package %s;\n\n", fd.GetPackage())
	if deps := fd.GetDependency(); len(deps) > 0 {
		for _, dep := range deps {
			fmt.Fprintf(&b, "import %q;\n", dep)
		}
		b.WriteString("\n")
	}
	if gp := fd.GetOptions().GetGoPackage(); gp != "" {
		fmt.Fprintf(&b, "option go_package = %q;\n", gp)
	}
	local := "." + fd.GetPackage() + "."
	for _, m := range fd.GetMessageType() {
		b.WriteString("\n")
		if len(m.GetField()) == 0 {
			fmt.Fprintf(&b, "message %s {}\n", m.GetName())
			continue
		}
		fmt.Fprintf(&b, "message %s {\n", m.GetName())
		for _, f := range m.GetField() {
			label := ""
			if f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED {
				label = "repeated "
			}
			fmt.Fprintf(&b, "  %s%s %s = %d;\n", label, typeKeyword(f, local), f.GetName(), f.GetNumber())
		}
		b.WriteString("}\n")
	}
	for _, s := range fd.GetService() {
		fmt.Fprintf(&b, "\nservice %s {\n", s.GetName())
		for _, m := range s.GetMethod() {
			out := strings.TrimPrefix(m.GetOutputType(), local)
			if m.GetServerStreaming() {
				out = "stream " + out
			}
			fmt.Fprintf(&b, "  rpc %s(%s) returns (%s);\n", m.GetName(), strings.TrimPrefix(m.GetInputType(), local), out)
		}
		b.WriteString("}\n")
	}
	return []byte(b.String())
}

func typeKeyword(f *descriptorpb.FieldDescriptorProto, local string) string {
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if name, ok := strings.CutPrefix(f.GetTypeName(), local); ok {
			return name
		}
		return strings.TrimPrefix(f.GetTypeName(), ".")
	default:
		return strings.ToLower(strings.TrimPrefix(f.GetType().String(), "TYPE_"))
	}
}
