package gen

import (
	"github.com/syssam/pgproto/compiler/typemap"
	"github.com/syssam/pgproto/schema"
)

// The following types and their exported methods are used by the emitters
// to generate the assets.
type (
	// Type represents one table of the graph and the names resolved for it.
	Type struct {
		*Config
		table *schema.Table
		// Name holds the entity message name, also the name of the
		// generated relation type.
		Name string
		// Package is the Go package name of the generated table package.
		Package string
		// ID holds the field identifying a row.
		ID *Field
		// Fields holds one field per column, in catalog order.
		Fields []*Field
		// Qualifiers holds the boolean predicate functions of the table.
		Qualifiers []*Qualifier
		// Functions holds the derived-field functions of the table.
		Functions []*Function
		// Idents holds the package-level identifiers of the relation package
		// that are not bound to a column, qualifier or function.
		Idents Idents
		// Request field Go names of the ListXRequest message.
		LimitGoName, OffsetGoName string
	}

	// Idents names the fixed declarations of a generated table package.
	Idents struct {
		Label, TableName, SchemaName, Alias, Row string
		Table, Columns, Relation                 string
		ColumnsByName, ValidColumn               string
		NewStorage, Register, Collect            string
		Service, Hooks, NewService               string
	}

	// Field is a column of a table.
	Field struct {
		def *schema.Column
		// Name is the column name, also the entity message field name.
		Name string
		// Number is the entity message field number.
		Number int32
		// Mapping is the type mapping of the column native type.
		Mapping typemap.Mapping
		// GoName is the Go struct field name of the generated message field.
		GoName string
		// Const is the name of the constant holding the column name.
		Const string
		// Var is the name of the typed column handle.
		Var string
	}

	// Param is a parameter of a qualifier or a derived-field function, or
	// a return column of a derived field.
	Param struct {
		// Name is the parameter name, also the qualifier message field name.
		Name string
		// NativeType is the catalog type of the parameter.
		NativeType string
		Mapping    typemap.Mapping
		// GoName is the Go struct field name of the qualifier message field.
		GoName string
		// Arg is the name of the parameter in generated function signatures.
		Arg string
	}

	// Qualifier is a boolean predicate function over the table row.
	Qualifier struct {
		def *schema.Qualifier
		// Name holds the Go name of the qualifier.
		Name string
		// Message is the name of the qualifier message.
		Message string
		// Field is the name of the repeated request field carrying calls of
		// this qualifier. The same field name is used in the List, Update and
		// Delete requests.
		Field string
		// Go names of the request field in the List, Update and Delete requests.
		ListGoName, UpdateGoName, DeleteGoName string
		// Params holds the parameters after the implicit row argument.
		Params []*Param
		// Const holds the name of the constant naming the SQL function.
		Const string
		// Func holds the name of the generated call constructor.
		Func string
		// Extract holds the name of the generated request extraction function.
		Extract string
	}

	// Function is a derived-field function over the table row.
	Function struct {
		def *schema.Function
		// Name holds the Go name of the function.
		Name   string
		Params []*Param
		// Returns holds the return columns.
		Returns []*Param
		// Const holds the name of the constant naming the SQL function.
		Const string
		// Func holds the name of the generated call constructor.
		Func string
		// Reader holds the name of the generated result reader. It is
		// empty for composite results, which have no generated reader.
		Reader string
	}
)

// Table returns the table descriptor of the type.
func (t *Type) Table() *schema.Table { return t.table }

// QualifiedName returns the schema-qualified table name.
func (t *Type) QualifiedName() string { return t.table.Schema() + "." + t.table.Name() }

// Public reports whether the table lives in the public schema. Public tables
// are referenced without a schema qualifier.
func (t *Type) Public() bool { return t.table.Schema() == "public" }

// Alias returns the table alias used by qualifier and derived-field calls, or
// "" when the table has none.
func (t *Type) Alias() string {
	if len(t.Qualifiers) > 0 {
		return "t"
	}
	return ""
}

// Row returns the name the row is referenced by in function calls: the alias
// when the table has one, the table name otherwise.
func (t *Type) Row() string {
	if a := t.Alias(); a != "" {
		return a
	}
	return t.table.Name()
}

// HasQualifiers reports whether the table has qualifiers.
func (t *Type) HasQualifiers() bool { return len(t.Qualifiers) > 0 }

// Verb message names.
func (t *Type) Request(verb string) string  { return verb + t.Name + "Request" }
func (t *Type) Response(verb string) string { return verb + t.Name + "Response" }

// ServiceName returns the name of the generated gRPC service.
func (t *Type) ServiceName() string { return t.Name + "Service" }

// ProtoFile returns the path of the generated IDL file, relative to the target.
func (t *Type) ProtoFile() string { return "proto/" + t.table.Name() + ".proto" }

// PkgPath returns the import path of the generated table package.
func (t *Type) PkgPath() string { return t.Config.Package + "/" + t.Package }

// Column returns the column descriptor of the field.
func (f *Field) Column() *schema.Column { return f.def }

// Getter returns the name of the generated message getter of the field.
func (f *Field) Getter() string { return "Get" + f.GoName }

// Repeated reports whether the field is a repeated message field.
func (f *Field) Repeated() bool { return f.Mapping.Repeated }

// Getter returns the name of the generated message getter of the parameter.
func (p *Param) Getter() string { return "Get" + p.GoName }

// Descriptor returns the qualifier descriptor.
func (q *Qualifier) Descriptor() *schema.Qualifier { return q.def }

// SQLName returns the function name as referenced from the table's schema.
func (q *Qualifier) SQLName(t *Type) string { return sqlName(t, q.def.Schema(), q.def.Name()) }

// Descriptor returns the function descriptor.
func (f *Function) Descriptor() *schema.Function { return f.def }

// SQLName returns the function name as referenced from the table's schema.
func (f *Function) SQLName(t *Type) string { return sqlName(t, f.def.Schema(), f.def.Name()) }

// Label returns the select-list label of the derived field.
func (f *Function) Label() string { return f.def.Name() }

func sqlName(t *Type, schemaName, name string) string {
	if schemaName == "" || schemaName == t.table.Schema() {
		return name
	}
	return schemaName + "." + name
}
