// Package schema holds the descriptor model produced by catalog introspection
// and consumed by the code emitters.
//
// Descriptors are built once per generation run through the New* constructors,
// which validate their input, and are read-only afterwards. Accessors that
// return slices hand out copies.
package schema

import (
	"slices"

	"github.com/syssam/pgproto/dialect/sql"
)

// Identifier is a raw catalog name together with its quoted rendering.
type Identifier string

// Name returns the raw name.
func (i Identifier) Name() string { return string(i) }

// Quote returns the name wrapped in double quotes with embedded quotes doubled.
func (i Identifier) Quote() string { return sql.Quote(string(i)) }

// String implements fmt.Stringer.
func (i Identifier) String() string { return string(i) }

// Schema describes one catalog schema and the tables requested from it.
type Schema struct {
	name   Identifier
	tables []*Table
}

// NewSchema returns a validated schema descriptor.
func NewSchema(name string, tables ...*Table) (*Schema, error) {
	if name == "" {
		return nil, newError("", "", "schema name is empty")
	}
	seen := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		if t == nil {
			return nil, newError(name, "", "nil table descriptor")
		}
		if _, ok := seen[t.Name()]; ok {
			return nil, newError(name, t.Name(), "table requested twice")
		}
		seen[t.Name()] = struct{}{}
	}
	return &Schema{name: Identifier(name), tables: slices.Clone(tables)}, nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name.Name() }

// Ident returns the schema identifier.
func (s *Schema) Ident() Identifier { return s.name }

// Tables returns the tables in request order.
func (s *Schema) Tables() []*Table { return slices.Clone(s.tables) }

// Table describes one table, its columns and the row-typed functions defined for it.
type Table struct {
	schema     Identifier
	name       Identifier
	columns    []*Column
	qualifiers []*Qualifier
	functions  []*Function
}

// NewTable returns a validated table descriptor. The column list must not be empty.
func NewTable(schemaName, name string, columns []*Column, qualifiers []*Qualifier, functions []*Function) (*Table, error) {
	if name == "" {
		return nil, newError(schemaName, "", "table name is empty")
	}
	if len(columns) == 0 {
		return nil, newError(schemaName, name, "table has no columns")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c == nil {
			return nil, newError(schemaName, name, "nil column descriptor")
		}
		if _, ok := seen[c.Name()]; ok {
			return nil, newColumnError(schemaName, name, c.Name(), "duplicate column")
		}
		seen[c.Name()] = struct{}{}
	}
	qseen := make(map[string]struct{}, len(qualifiers))
	for _, q := range qualifiers {
		if _, ok := qseen[q.Name()]; ok {
			return nil, newError(schemaName, name, "duplicate qualifier "+q.Name())
		}
		qseen[q.Name()] = struct{}{}
	}
	return &Table{
		schema:     Identifier(schemaName),
		name:       Identifier(name),
		columns:    slices.Clone(columns),
		qualifiers: slices.Clone(qualifiers),
		functions:  slices.Clone(functions),
	}, nil
}

// Schema returns the name of the schema holding the table.
func (t *Table) Schema() string { return t.schema.Name() }

// Name returns the table name.
func (t *Table) Name() string { return t.name.Name() }

// Ident returns the table identifier.
func (t *Table) Ident() Identifier { return t.name }

// Columns returns the columns in catalog order.
func (t *Table) Columns() []*Column { return slices.Clone(t.columns) }

// Qualifiers returns the boolean predicate functions defined over the table row.
func (t *Table) Qualifiers() []*Qualifier { return slices.Clone(t.qualifiers) }

// Functions returns the derived-field functions defined over the table row.
func (t *Table) Functions() []*Function { return slices.Clone(t.functions) }

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// IDColumn returns the column identifying a row: the first primary key
// column, else a column named "id", else the first column.
func (t *Table) IDColumn() *Column {
	for _, c := range t.columns {
		if c.PrimaryKey() {
			return c
		}
	}
	if c, ok := t.Column("id"); ok {
		return c
	}
	return t.columns[0]
}

// NativeTypes returns the distinct native types referenced by the table,
// its qualifiers and its functions, in first-seen order.
func (t *Table) NativeTypes() []string {
	var (
		types []string
		seen  = make(map[string]struct{})
	)
	add := func(nt string) {
		if _, ok := seen[nt]; !ok {
			seen[nt] = struct{}{}
			types = append(types, nt)
		}
	}
	for _, c := range t.columns {
		add(c.NativeType())
	}
	for _, q := range t.qualifiers {
		for _, p := range q.params {
			add(p.NativeType())
		}
	}
	for _, f := range t.functions {
		for _, p := range f.params {
			add(p.NativeType())
		}
		for _, r := range f.returns {
			add(r.NativeType())
		}
	}
	return types
}

// Column describes one table column.
type Column struct {
	name       Identifier
	nativeType string
	primaryKey bool
	position   int
}

// ColumnOption configures a column descriptor.
type ColumnOption func(*Column)

// PrimaryKeyPart marks the column as part of the primary key.
func PrimaryKeyPart() ColumnOption {
	return func(c *Column) { c.primaryKey = true }
}

// Position sets the catalog attribute number of the column.
func Position(n int) ColumnOption {
	return func(c *Column) { c.position = n }
}

// NewColumn returns a validated column descriptor. Non-primitive native types
// are expected to be schema-qualified.
func NewColumn(name, nativeType string, opts ...ColumnOption) (*Column, error) {
	if name == "" {
		return nil, newError("", "", "column name is empty")
	}
	if nativeType == "" {
		return nil, newColumnError("", "", name, "column has no native type")
	}
	c := &Column{name: Identifier(name), nativeType: nativeType}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the column name.
func (c *Column) Name() string { return c.name.Name() }

// Ident returns the column identifier.
func (c *Column) Ident() Identifier { return c.name }

// NativeType returns the database type name the column resolves to.
func (c *Column) NativeType() string { return c.nativeType }

// PrimaryKey reports whether the column is part of the primary key.
func (c *Column) PrimaryKey() bool { return c.primaryKey }

// Position returns the catalog attribute number, or 0 when unknown.
func (c *Column) Position() int { return c.position }

// Parameter is a named, typed function parameter.
type Parameter struct {
	name       string
	nativeType string
}

// NewParameter returns a parameter descriptor.
func NewParameter(name, nativeType string) (*Parameter, error) {
	if name == "" {
		return nil, newError("", "", "parameter name is empty")
	}
	if nativeType == "" {
		return nil, newError("", "", "parameter "+name+" has no native type")
	}
	return &Parameter{name: name, nativeType: nativeType}, nil
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// NativeType returns the parameter type.
func (p *Parameter) NativeType() string { return p.nativeType }

// Qualifier describes a boolean function taking the table row as its implicit
// first argument, followed by the declared parameters.
type Qualifier struct {
	schema string
	name   string
	params []*Parameter
}

// NewQualifier returns a qualifier descriptor.
func NewQualifier(schemaName, name string, params ...*Parameter) (*Qualifier, error) {
	if name == "" {
		return nil, newError(schemaName, "", "qualifier name is empty")
	}
	if err := uniqueParams(schemaName, name, params); err != nil {
		return nil, err
	}
	return &Qualifier{schema: schemaName, name: name, params: slices.Clone(params)}, nil
}

// Schema returns the schema holding the function.
func (q *Qualifier) Schema() string { return q.schema }

// Name returns the function name.
func (q *Qualifier) Name() string { return q.name }

// Params returns the declared parameters in order.
func (q *Qualifier) Params() []*Parameter { return slices.Clone(q.params) }

// Function describes a derived-field function addable to a select list.
type Function struct {
	schema         string
	name           string
	params         []*Parameter
	returns        []*Parameter
	returnTypeName string
	setOf          bool
}

// FunctionOption configures a function descriptor.
type FunctionOption func(*Function)

// ReturnsComposite marks the function as returning the named composite type.
func ReturnsComposite(typeName string) FunctionOption {
	return func(f *Function) { f.returnTypeName = typeName }
}

// ReturnsSet marks the function as a SETOF function.
func ReturnsSet() FunctionOption {
	return func(f *Function) { f.setOf = true }
}

// NewFunction returns a validated function descriptor. A composite return
// with zero return columns is a configuration error.
func NewFunction(schemaName, name string, params, returns []*Parameter, opts ...FunctionOption) (*Function, error) {
	if name == "" {
		return nil, newError(schemaName, "", "function name is empty")
	}
	f := &Function{
		schema:  schemaName,
		name:    name,
		params:  slices.Clone(params),
		returns: slices.Clone(returns),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := uniqueParams(schemaName, name, f.params); err != nil {
		return nil, err
	}
	switch {
	case f.returnTypeName != "" && len(f.returns) == 0:
		return nil, &Error{Schema: schemaName, Function: name, Message: "composite return type " + f.returnTypeName + " has no columns"}
	case f.returnTypeName == "" && len(f.returns) != 1:
		return nil, &Error{Schema: schemaName, Function: name, Message: "scalar function must return exactly one value"}
	}
	return f, nil
}

// Schema returns the schema holding the function.
func (f *Function) Schema() string { return f.schema }

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Params returns the input parameters after the implicit row argument.
func (f *Function) Params() []*Parameter { return slices.Clone(f.params) }

// Returns returns the output columns.
func (f *Function) Returns() []*Parameter { return slices.Clone(f.returns) }

// ReturnTypeName returns the composite return type name, or "" for scalar functions.
func (f *Function) ReturnTypeName() string { return f.returnTypeName }

// Composite reports whether the function returns a composite row.
func (f *Function) Composite() bool { return f.returnTypeName != "" }

// SetOf reports whether the function returns a set.
func (f *Function) SetOf() bool { return f.setOf }

func uniqueParams(schemaName, fn string, params []*Parameter) error {
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if p == nil {
			return &Error{Schema: schemaName, Function: fn, Message: "nil parameter descriptor"}
		}
		if _, ok := seen[p.Name()]; ok {
			return &Error{Schema: schemaName, Function: fn, Message: "duplicate parameter " + p.Name()}
		}
		seen[p.Name()] = struct{}{}
	}
	return nil
}
