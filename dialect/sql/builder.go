package sql

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Statement is implemented by every builder that renders to SQL text with named parameters.
type Statement interface {
	Query() (string, map[string]any)
	Err() error
}

// Quote wraps an identifier in double quotes, doubling embedded quotes.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// escapeLiteral doubles single quotes for use inside a standard-conforming string literal.
func escapeLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	return strings.ReplaceAll(s, "'", "''")
}

// renderer carries the bind-parameter counter shared by one statement.
type renderer struct {
	b      strings.Builder
	n      int
	params map[string]any
	errs   []error
}

func newRenderer() *renderer {
	return &renderer{params: make(map[string]any)}
}

// bind registers v under the next generated name and returns its marker.
func (r *renderer) bind(v any) string {
	name := "p_" + strconv.Itoa(r.n)
	r.n++
	r.params[name] = v
	return ":" + name
}

func (r *renderer) ident(name string) string {
	if !isValidIdentifier(name) {
		r.errs = append(r.errs, fmt.Errorf("dialect/sql: invalid identifier %q", name))
	}
	return name
}

func (r *renderer) err() error { return errors.Join(r.errs...) }

// TableRef is a relation reference in a FROM, INSERT, UPDATE or DELETE clause.
type TableRef struct {
	schema string
	name   string
	alias  string
}

// Table returns a reference to the named table.
func Table(name string) *TableRef { return &TableRef{name: name} }

// Schema returns a copy of the reference qualified with the given schema.
func (t *TableRef) Schema(s string) *TableRef {
	c := *t
	c.schema = s
	return &c
}

// As returns a copy of the reference with the given alias.
func (t *TableRef) As(alias string) *TableRef {
	c := *t
	c.alias = alias
	return &c
}

// Name returns the table name.
func (t *TableRef) Name() string { return t.name }

// Alias returns the table alias, or "".
func (t *TableRef) Alias() string { return t.alias }

// C returns a column qualified by the table alias, or by the table name
// when no alias is set.
func (t *TableRef) C(column string) Column {
	if t.alias != "" {
		return Col(column).Of(t.alias)
	}
	return Col(column).Of(t.name)
}

func (t *TableRef) render(r *renderer) string {
	var s string
	if t.schema != "" {
		s = Quote(t.schema) + "."
	}
	s += Quote(t.name)
	if t.alias != "" {
		s += " as " + r.ident(t.alias)
	}
	return s
}

// Selectable is an item of a select list.
type Selectable interface {
	selectable(*renderer) string
}

// Column is a column reference, optionally qualified by a table or alias.
type Column struct {
	table string
	name  string
}

// Col returns a reference to the named column.
func Col(name string) Column { return Column{name: name} }

// Of returns the column qualified by the given table or alias.
func (c Column) Of(table string) Column {
	c.table = table
	return c
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// String returns the quoted column reference.
func (c Column) String() string {
	if c.table != "" {
		return Quote(c.table) + "." + Quote(c.name)
	}
	return Quote(c.name)
}

func (c Column) selectable(*renderer) string { return c.String() }

type wildcard struct{}

func (wildcard) selectable(*renderer) string { return "*" }

// Wildcard selects every column of the relation.
var Wildcard Selectable = wildcard{}

// DerivedFieldCall adds a row-typed function result to a select list.
type DerivedFieldCall struct {
	fn    string
	alias string
	as    string
	args  []any
}

// DerivedField returns a call of fn over the row aliased by alias, labeled as.
// Arguments are bound as parameters and never inlined.
func DerivedField(fn, alias, as string, args ...any) *DerivedFieldCall {
	return &DerivedFieldCall{fn: fn, alias: alias, as: as, args: slices.Clone(args)}
}

func (d *DerivedFieldCall) selectable(r *renderer) string {
	s := call(r, d.fn, d.alias, d.args)
	if d.as != "" {
		s += " as " + Quote(d.as)
	}
	return s
}

func call(r *renderer, fn, alias string, args []any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, r.ident(alias))
	for _, a := range args {
		parts = append(parts, r.bind(a))
	}
	return r.ident(fn) + "(" + strings.Join(parts, ", ") + ")"
}

// Predicate is a boolean condition of a where clause.
type Predicate interface {
	predicate(*renderer) string
}

// Op is a filter comparison operator.
type Op string

// Filter operators.
const (
	OpEQ       Op = "="
	OpGT       Op = ">"
	OpLT       Op = "<"
	OpGTE      Op = ">="
	OpLTE      Op = "<="
	OpNEQ      Op = "<>"
	OpIsNull   Op = "is null"
	OpContains Op = "@>"
)

// Filter compares a column against a literal value. Non-null values are
// escaped and rendered inline into the statement text, unlike qualifier and
// derived field arguments which are always bound. Filter values must
// therefore come from trusted, server-side code.
type Filter struct {
	Column Column
	Op     Op
	Value  any
}

// EQ returns the filter column = v.
func EQ(column string, v any) Filter { return Filter{Column: Col(column), Op: OpEQ, Value: v} }

// NEQ returns the filter column <> v.
func NEQ(column string, v any) Filter { return Filter{Column: Col(column), Op: OpNEQ, Value: v} }

// GT returns the filter column > v.
func GT(column string, v any) Filter { return Filter{Column: Col(column), Op: OpGT, Value: v} }

// GTE returns the filter column >= v.
func GTE(column string, v any) Filter { return Filter{Column: Col(column), Op: OpGTE, Value: v} }

// LT returns the filter column < v.
func LT(column string, v any) Filter { return Filter{Column: Col(column), Op: OpLT, Value: v} }

// LTE returns the filter column <= v.
func LTE(column string, v any) Filter { return Filter{Column: Col(column), Op: OpLTE, Value: v} }

// IsNull returns the filter column is null.
func IsNull(column string) Filter { return Filter{Column: Col(column), Op: OpIsNull} }

// Contains returns the array containment filter column @> v.
func Contains(column string, v any) Filter { return Filter{Column: Col(column), Op: OpContains, Value: v} }

func (f Filter) predicate(r *renderer) string {
	switch f.Op {
	case OpIsNull:
		return f.Column.String() + " is null"
	case OpEQ, OpGT, OpLT, OpGTE, OpLTE, OpNEQ, OpContains:
		return f.Column.String() + " " + string(f.Op) + " " + literal(r, f.Value)
	default:
		r.errs = append(r.errs, fmt.Errorf("dialect/sql: unknown filter operator %q", f.Op))
		return f.Column.String()
	}
}

// literal renders v as an inline SQL literal.
func literal(r *renderer, v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + escapeLiteral(v) + "'"
	case bool:
		return strconv.FormatBool(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return "'" + escapeLiteral(v.String()) + "'"
	default:
		av, err := pq.Array(v).Value()
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("dialect/sql: unsupported literal %T: %w", v, err))
			return "null"
		}
		s, _ := av.(string)
		return "'" + escapeLiteral(s) + "'"
	}
}

// QualifierCall is a server-defined boolean predicate function invoked over the row.
type QualifierCall struct {
	fn    string
	alias string
	args  []any
}

// Qualifier returns a call of fn over the row aliased by alias. Arguments
// are bound as parameters and never inlined.
func Qualifier(fn, alias string, args ...any) *QualifierCall {
	return &QualifierCall{fn: fn, alias: alias, args: slices.Clone(args)}
}

func (q *QualifierCall) predicate(r *renderer) string {
	return call(r, q.fn, q.alias, q.args)
}

type paramPredicate struct {
	column Column
	value  any
}

// ParamEQ returns the predicate column = :p_n with v bound as a parameter.
func ParamEQ(column Column, v any) Predicate {
	return paramPredicate{column: column, value: v}
}

func (p paramPredicate) predicate(r *renderer) string {
	return p.column.String() + " = " + r.bind(p.value)
}

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

type orderBy struct {
	column Column
	order  Order
}

// SelectBuilder builds a select statement. Every method returns a modified
// copy; a built value is never changed afterwards.
type SelectBuilder struct {
	columns []Selectable
	from    *TableRef
	where   []Predicate
	order   []orderBy
	limit   *int
	offset  *int
}

// Select returns a builder selecting the given items. With no items the
// statement renders without a column clause.
func Select(columns ...Selectable) *SelectBuilder {
	return &SelectBuilder{columns: slices.Clone(columns)}
}

func (s *SelectBuilder) clone() *SelectBuilder {
	c := *s
	c.columns = slices.Clone(s.columns)
	c.where = slices.Clone(s.where)
	c.order = slices.Clone(s.order)
	return &c
}

// AddColumns returns a copy with the given items appended to the select list.
func (s *SelectBuilder) AddColumns(columns ...Selectable) *SelectBuilder {
	c := s.clone()
	c.columns = append(c.columns, columns...)
	return c
}

// PrependColumns returns a copy with the given items placed before the select list.
func (s *SelectBuilder) PrependColumns(columns ...Selectable) *SelectBuilder {
	c := s.clone()
	c.columns = append(slices.Clone(columns), c.columns...)
	return c
}

// From returns a copy selecting from t.
func (s *SelectBuilder) From(t *TableRef) *SelectBuilder {
	c := s.clone()
	c.from = t
	return c
}

// Where returns a copy with the given predicates ANDed to the where clause.
func (s *SelectBuilder) Where(ps ...Predicate) *SelectBuilder {
	c := s.clone()
	c.where = append(c.where, ps...)
	return c
}

// OrderBy returns a copy with an order clause appended.
func (s *SelectBuilder) OrderBy(column Column, order Order) *SelectBuilder {
	c := s.clone()
	c.order = append(c.order, orderBy{column: column, order: order})
	return c
}

// Limit returns a copy limited to n rows.
func (s *SelectBuilder) Limit(n int) *SelectBuilder {
	c := s.clone()
	c.limit = &n
	return c
}

// Offset returns a copy skipping n rows.
func (s *SelectBuilder) Offset(n int) *SelectBuilder {
	c := s.clone()
	c.offset = &n
	return c
}

// Columns returns the select list.
func (s *SelectBuilder) Columns() []Selectable { return slices.Clone(s.columns) }

// Table returns the source relation, or nil.
func (s *SelectBuilder) Table() *TableRef { return s.from }

// Predicates returns the where predicates.
func (s *SelectBuilder) Predicates() []Predicate { return slices.Clone(s.where) }

// GetLimit returns the limit and whether one is set.
func (s *SelectBuilder) GetLimit() (int, bool) {
	if s.limit == nil {
		return 0, false
	}
	return *s.limit, true
}

// GetOffset returns the offset, 0 when unset.
func (s *SelectBuilder) GetOffset() int {
	if s.offset == nil {
		return 0
	}
	return *s.offset
}

func (s *SelectBuilder) render() *renderer {
	r := newRenderer()
	r.b.WriteString("select")
	if len(s.columns) > 0 {
		items := make([]string, len(s.columns))
		for i, c := range s.columns {
			items[i] = c.selectable(r)
		}
		r.b.WriteString(" ")
		r.b.WriteString(strings.Join(items, ", "))
	}
	if s.from != nil {
		r.b.WriteString(" from ")
		r.b.WriteString(s.from.render(r))
	}
	renderWhere(r, s.where)
	if len(s.order) > 0 {
		items := make([]string, len(s.order))
		for i, o := range s.order {
			items[i] = o.column.String() + " " + string(o.order)
		}
		r.b.WriteString(" order by ")
		r.b.WriteString(strings.Join(items, ", "))
	}
	if s.limit != nil {
		r.b.WriteString(" limit ")
		r.b.WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		r.b.WriteString(" offset ")
		r.b.WriteString(strconv.Itoa(*s.offset))
	}
	return r
}

func renderWhere(r *renderer, ps []Predicate) {
	if len(ps) == 0 {
		return
	}
	items := make([]string, len(ps))
	for i, p := range ps {
		items[i] = p.predicate(r)
	}
	r.b.WriteString(" where ")
	r.b.WriteString(strings.Join(items, " and "))
}

// String returns the rendered statement text.
func (s *SelectBuilder) String() string {
	text, _ := s.Query()
	return text
}

// Query returns the statement text and its named parameters.
func (s *SelectBuilder) Query() (string, map[string]any) {
	r := s.render()
	return r.b.String(), r.params
}

// Err returns the errors collected while rendering, if any.
func (s *SelectBuilder) Err() error { return s.render().err() }

type assignment struct {
	column string
	value  any
}

// InsertBuilder builds an insert statement.
type InsertBuilder struct {
	table     *TableRef
	values    []assignment
	returning []string
}

// Insert returns a builder inserting into t.
func Insert(t *TableRef) *InsertBuilder { return &InsertBuilder{table: t} }

// Set returns a copy with column bound to v.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	c := *i
	c.values = append(slices.Clone(i.values), assignment{column: column, value: v})
	return &c
}

// Returning returns a copy returning the given columns.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	c := *i
	c.returning = slices.Clone(columns)
	return &c
}

// Query returns the statement text and its named parameters.
func (i *InsertBuilder) Query() (string, map[string]any) {
	r := i.render()
	return r.b.String(), r.params
}

// Err returns the errors collected while rendering, if any.
func (i *InsertBuilder) Err() error { return i.render().err() }

func (i *InsertBuilder) render() *renderer {
	r := newRenderer()
	r.b.WriteString("insert into ")
	r.b.WriteString(i.table.render(r))
	if len(i.values) == 0 {
		r.b.WriteString(" default values")
	} else {
		cols := make([]string, len(i.values))
		vals := make([]string, len(i.values))
		for n, a := range i.values {
			cols[n] = Quote(a.column)
			vals[n] = r.bind(a.value)
		}
		r.b.WriteString(" (" + strings.Join(cols, ", ") + ") values (" + strings.Join(vals, ", ") + ")")
	}
	renderReturning(r, i.returning)
	return r
}

func renderReturning(r *renderer, columns []string) {
	if len(columns) == 0 {
		return
	}
	items := make([]string, len(columns))
	for i, c := range columns {
		items[i] = Quote(c)
	}
	r.b.WriteString(" returning ")
	r.b.WriteString(strings.Join(items, ", "))
}

// UpdateBuilder builds an update statement.
type UpdateBuilder struct {
	table     *TableRef
	values    []assignment
	where     []Predicate
	returning []string
}

// Update returns a builder updating t.
func Update(t *TableRef) *UpdateBuilder { return &UpdateBuilder{table: t} }

func (u *UpdateBuilder) clone() *UpdateBuilder {
	c := *u
	c.values = slices.Clone(u.values)
	c.where = slices.Clone(u.where)
	return &c
}

// Set returns a copy with column assigned v.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	c := u.clone()
	c.values = append(c.values, assignment{column: column, value: v})
	return c
}

// Where returns a copy with the given predicates ANDed to the where clause.
func (u *UpdateBuilder) Where(ps ...Predicate) *UpdateBuilder {
	c := u.clone()
	c.where = append(c.where, ps...)
	return c
}

// Returning returns a copy returning the given columns.
func (u *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	c := u.clone()
	c.returning = slices.Clone(columns)
	return c
}

// Empty reports whether the update assigns no columns.
func (u *UpdateBuilder) Empty() bool { return len(u.values) == 0 }

// Query returns the statement text and its named parameters.
func (u *UpdateBuilder) Query() (string, map[string]any) {
	r := u.render()
	return r.b.String(), r.params
}

// Err returns the errors collected while rendering, if any.
func (u *UpdateBuilder) Err() error {
	r := u.render()
	if len(u.values) == 0 {
		r.errs = append(r.errs, errors.New("dialect/sql: update without assignments"))
	}
	return r.err()
}

func (u *UpdateBuilder) render() *renderer {
	r := newRenderer()
	r.b.WriteString("update ")
	r.b.WriteString(u.table.render(r))
	if len(u.values) > 0 {
		items := make([]string, len(u.values))
		for i, a := range u.values {
			items[i] = Quote(a.column) + " = " + r.bind(a.value)
		}
		r.b.WriteString(" set ")
		r.b.WriteString(strings.Join(items, ", "))
	}
	renderWhere(r, u.where)
	renderReturning(r, u.returning)
	return r
}

// DeleteBuilder builds a delete statement.
type DeleteBuilder struct {
	table *TableRef
	where []Predicate
}

// Delete returns a builder deleting from t.
func Delete(t *TableRef) *DeleteBuilder { return &DeleteBuilder{table: t} }

// Where returns a copy with the given predicates ANDed to the where clause.
func (d *DeleteBuilder) Where(ps ...Predicate) *DeleteBuilder {
	c := *d
	c.where = append(slices.Clone(d.where), ps...)
	return &c
}

// Query returns the statement text and its named parameters.
func (d *DeleteBuilder) Query() (string, map[string]any) {
	r := d.render()
	return r.b.String(), r.params
}

// Err returns the errors collected while rendering, if any.
func (d *DeleteBuilder) Err() error { return d.render().err() }

func (d *DeleteBuilder) render() *renderer {
	r := newRenderer()
	r.b.WriteString("delete from ")
	r.b.WriteString(d.table.render(r))
	renderWhere(r, d.where)
	return r
}

// RawStatement is literal statement text with named parameters.
type RawStatement struct {
	text   string
	params map[string]any
}

// Raw returns a statement with the given text. The text may reference the
// params with :name markers.
func Raw(text string, params map[string]any) *RawStatement {
	return &RawStatement{text: text, params: params}
}

// Query returns the statement text and its named parameters.
func (r *RawStatement) Query() (string, map[string]any) { return r.text, r.params }

// Err always returns nil.
func (r *RawStatement) Err() error { return nil }

var (
	_ Statement = (*RawStatement)(nil)
	_ Statement = (*SelectBuilder)(nil)
	_ Statement = (*InsertBuilder)(nil)
	_ Statement = (*UpdateBuilder)(nil)
	_ Statement = (*DeleteBuilder)(nil)
)
