package gen

import (
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/syssam/pgproto/compiler/typemap"
	"github.com/syssam/pgproto/schema"
)

// Graph holds the types of every requested table, in request order.
type Graph struct {
	*Config
	// Nodes are the types of the graph.
	Nodes []*Type
}

var protoIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// fields of the request messages that qualifier fields are appended to.
var requestFields = map[string]struct{}{"id": {}, "entity": {}, "sparse": {}, "limit": {}, "offset": {}}

// NewGraph resolves names and type mappings of the given schemas. Every
// native type must have a registered mapping: all failures are reported
// together, each naming the table and the column or function it belongs
// to, and no graph is returned.
func NewGraph(c *Config, schemas ...*schema.Schema) (*Graph, error) {
	if c == nil {
		return nil, NewConfigError("Config", nil, "config cannot be nil")
	}
	g := &Graph{Config: c}
	var (
		errs     []error
		files    = make(map[string]string)
		packages = make(map[string]string)
	)
	for _, s := range schemas {
		for _, table := range s.Tables() {
			t, terrs := newType(c, table)
			if len(terrs) > 0 {
				errs = append(errs, terrs...)
				continue
			}
			if prev, ok := files[t.ProtoFile()]; ok {
				errs = append(errs, &GenerationError{Phase: "graph", Table: t.QualifiedName(), File: t.ProtoFile(), Message: "collides with table " + prev})
				continue
			}
			if prev, ok := packages[t.Package]; ok {
				errs = append(errs, &GenerationError{Phase: "graph", Table: t.QualifiedName(), Message: fmt.Sprintf("package %s collides with table %s", t.Package, prev)})
				continue
			}
			files[t.ProtoFile()] = t.QualifiedName()
			packages[t.Package] = t.QualifiedName()
			g.Nodes = append(g.Nodes, t)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	c.logger().Debug("graph resolved", zap.Int("tables", len(g.Nodes)))
	return g, nil
}

// builder resolves one table and records its failures.
type builder struct {
	reg   *typemap.Registry
	table *schema.Table
	scope *scope
	errs  []error
}

func (b *builder) fail(err *GenerationError) {
	err.Phase = "graph"
	err.Table = b.table.Schema() + "." + b.table.Name()
	b.errs = append(b.errs, err)
}

func (b *builder) lookup(native string) (typemap.Mapping, error) {
	return b.reg.Lookup(native)
}

func newType(c *Config, table *schema.Table) (*Type, []error) {
	b := &builder{reg: c.registry(), table: table, scope: newScope()}
	t := &Type{
		Config:  c,
		table:   table,
		Name:    Pascal(table.Name()),
		Package: PackageName(table.Name()),
	}
	if !protoIdent.MatchString(t.Name) {
		b.fail(&GenerationError{Message: fmt.Sprintf("table name does not yield a valid message name %q", t.Name)})
		return nil, b.errs
	}
	t.Idents = Idents{
		Relation:      b.scope.declare(t.Name),
		Label:         b.scope.declare("Label"),
		TableName:     b.scope.declare("TableName"),
		SchemaName:    b.scope.declare("SchemaName"),
		Alias:         b.scope.declare("Alias"),
		Row:           b.scope.declare("Row"),
		Table:         b.scope.declare("Table"),
		Columns:       b.scope.declare("Columns"),
		ColumnsByName: b.scope.declare("ColumnsByName"),
		ValidColumn:   b.scope.declare("ValidColumn"),
		NewStorage:    b.scope.declare("NewStorage"),
		Register:      b.scope.declare("Register"),
		Collect:       b.scope.declare(Plural(t.Name)),
		Service:       b.scope.declare("Service"),
		Hooks:         b.scope.declare("Hooks"),
		NewService:    b.scope.declare("NewService"),
	}
	names := ProtoGoNames("limit", "offset")
	t.LimitGoName, t.OffsetGoName = names[0], names[1]
	b.fields(t)
	b.qualifiers(t)
	b.functions(t)
	if len(b.errs) > 0 {
		return nil, b.errs
	}
	return t, nil
}

func (b *builder) fields(t *Type) {
	columns := t.table.Columns()
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name()
	}
	goNames := ProtoGoNames(names...)
	for i, c := range columns {
		if !protoIdent.MatchString(c.Name()) {
			b.fail(&GenerationError{Column: c.Name(), Message: "column name is not a valid field name"})
			continue
		}
		m, err := b.lookup(c.NativeType())
		if err != nil {
			b.fail(&GenerationError{Column: c.Name(), Cause: err})
			continue
		}
		member := MemberName(c.Name(), t.Name)
		t.Fields = append(t.Fields, &Field{
			def:     c,
			Name:    c.Name(),
			Number:  int32(i + 1),
			Mapping: m,
			GoName:  goNames[i],
			Const:   b.scope.declare("Field" + Pascal(c.Name())),
			Var:     b.scope.declare(member),
		})
	}
	if len(b.errs) > 0 {
		return
	}
	id := t.table.IDColumn()
	for _, f := range t.Fields {
		if f.def == id {
			t.ID = f
		}
	}
	if t.ID.Repeated() {
		b.fail(&GenerationError{Column: t.ID.Name, Message: "identifier column cannot be an array"})
	}
}

func (b *builder) params(fn string, params []*schema.Parameter) []*Param {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name()
	}
	goNames := ProtoGoNames(names...)
	args := newScope()
	out := make([]*Param, 0, len(params))
	for i, p := range params {
		if !protoIdent.MatchString(p.Name()) {
			b.fail(&GenerationError{Function: fn, Message: fmt.Sprintf("parameter %q is not a valid field name", p.Name())})
			continue
		}
		m, err := b.lookup(p.NativeType())
		if err != nil {
			b.fail(&GenerationError{Function: fn, Message: "parameter " + p.Name(), Cause: err})
			continue
		}
		out = append(out, &Param{
			Name:       p.Name(),
			NativeType: p.NativeType(),
			Mapping:    m,
			GoName:     goNames[i],
			Arg:        args.declare(InstanceName(p.Name())),
		})
	}
	return out
}

func (b *builder) qualifiers(t *Type) {
	seen := make(map[string]struct{})
	var list, update, del []string
	for _, q := range t.table.Qualifiers() {
		if _, ok := requestFields[q.Name()]; ok {
			b.fail(&GenerationError{Function: q.Name(), Message: "qualifier name collides with a request field"})
			continue
		}
		if _, ok := seen[q.Name()]; ok {
			b.fail(&GenerationError{Function: q.Name(), Message: "overloaded qualifiers are not supported"})
			continue
		}
		seen[q.Name()] = struct{}{}
		if !protoIdent.MatchString(q.Name()) {
			b.fail(&GenerationError{Function: q.Name(), Message: "qualifier name is not a valid field name"})
			continue
		}
		name := Pascal(q.Name())
		t.Qualifiers = append(t.Qualifiers, &Qualifier{
			def:     q,
			Name:    name,
			Message: t.Name + name + "Qualifier",
			Field:   q.Name(),
			Params:  b.params(q.Name(), q.Params()),
			Const:   b.scope.declare("Qualifier" + name),
			Func:    b.scope.declare(name + "Qualifier"),
			Extract: b.scope.declare(name + "Qualifiers"),
		})
		list = append(list, q.Name())
		update = append(update, q.Name())
		del = append(del, q.Name())
	}
	list = ProtoGoNames(append([]string{"limit", "offset"}, list...)...)[2:]
	update = ProtoGoNames(append([]string{"id", "entity", "sparse"}, update...)...)[3:]
	del = ProtoGoNames(append([]string{"id"}, del...)...)[1:]
	for i, q := range t.Qualifiers {
		q.ListGoName, q.UpdateGoName, q.DeleteGoName = list[i], update[i], del[i]
	}
}

func (b *builder) functions(t *Type) {
	seen := make(map[string]struct{})
	for _, f := range t.table.Functions() {
		if _, ok := seen[f.Name()]; ok {
			b.fail(&GenerationError{Function: f.Name(), Message: "overloaded functions are not supported"})
			continue
		}
		seen[f.Name()] = struct{}{}
		name := Pascal(f.Name())
		fn := &Function{
			def:     f,
			Name:    name,
			Params:  b.params(f.Name(), f.Params()),
			Returns: b.params(f.Name(), f.Returns()),
			Const:   b.scope.declare("Function" + name),
			Func:    b.scope.declare(name + "Field"),
		}
		if !f.Composite() {
			fn.Reader = b.scope.declare(name + "Of")
		}
		t.Functions = append(t.Functions, fn)
	}
}

// scope allocates unique identifiers of one Go scope.
type scope struct {
	names map[string]struct{}
}

func newScope() *scope {
	return &scope{names: make(map[string]struct{})}
}

// declare returns name, or name suffixed with underscores when it is
// already taken.
func (s *scope) declare(name string) string {
	for {
		if _, ok := s.names[name]; !ok {
			s.names[name] = struct{}{}
			return name
		}
		name += "_"
	}
}
