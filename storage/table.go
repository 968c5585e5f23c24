package storage

import (
	"context"
	"errors"
	"iter"
	"slices"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/syssam/pgproto"
	"github.com/syssam/pgproto/dialect/sql"
)

// Option configures a Table.
type Option func(*options)

type options struct {
	log   *zap.Logger
	label string
}

// WithLogger sets the logger receiving storage events.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithLabel sets the entity label used in errors. Defaults to the table name.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// Table is a Storage bound to one relation and executed through a driver.
type Table[E proto.Message] struct {
	rel   Relation[E]
	drv   sql.Driver
	log   *zap.Logger
	label string
}

// NewTable returns a table-bound storage of rel executed on drv.
func NewTable[E proto.Message](rel Relation[E], drv sql.Driver, opts ...Option) *Table[E] {
	o := options{log: zap.NewNop(), label: rel.Table().Name()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Table[E]{rel: rel, drv: drv, log: o.log, label: o.label}
}

// Relation returns the relation the table is bound to.
func (t *Table[E]) Relation() Relation[E] { return t.rel }

// Query implements Storage. A select without an output column of the
// relation is widened to the relation's columns, and a select without a
// source reads from the relation's table.
func (t *Table[E]) Query(ctx context.Context, q *sql.SelectBuilder) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		var zero E
		q := t.widen(q)
		rows, err := t.drv.Query(ctx, q)
		if err != nil {
			t.log.Debug("storage query failed", zap.String("entity", t.label), zap.Error(err))
			yield(zero, pgproto.NewReadError(t.label, "select", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			e, err := t.scan(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, pgproto.NewReadError(t.label, "select", err))
		}
	}
}

func (t *Table[E]) widen(q *sql.SelectBuilder) *sql.SelectBuilder {
	if q == nil {
		q = sql.Select()
	}
	if q.Table() == nil {
		q = q.From(t.rel.Table())
	}
	if hasColumns(q.Columns()) {
		return q
	}
	cols := t.rel.Columns()
	items := make([]sql.Selectable, len(cols))
	for i, c := range cols {
		items[i] = c
	}
	return q.PrependColumns(items...)
}

func hasColumns(items []sql.Selectable) bool {
	for _, s := range items {
		if _, ok := s.(sql.Column); ok || s == sql.Wildcard {
			return true
		}
	}
	return false
}

func (t *Table[E]) scan(rows *sql.Rows) (E, error) {
	var zero E
	rec, err := rows.Record()
	if err != nil {
		return zero, pgproto.NewReadError(t.label, "scan", err)
	}
	e, err := t.rel.FromRow(rec)
	if err != nil {
		return zero, pgproto.NewReadError(t.label, "convert", err)
	}
	return e, nil
}

// Create implements Storage. Only the fields set on e are inserted.
func (t *Table[E]) Create(ctx context.Context, e E) (E, error) {
	var zero E
	binds, err := t.rel.Bind(e, t.rel.Present(e))
	if err != nil {
		return zero, pgproto.NewWriteError(t.label, "create", err)
	}
	stmt := sql.Insert(t.rel.Table())
	for _, b := range binds {
		stmt = stmt.Set(b.Column, b.Value)
	}
	created, found, err := t.returning(ctx, stmt.Returning(t.columnNames()...))
	switch {
	case err != nil:
		return zero, pgproto.NewWriteError(t.label, "create", err)
	case !found:
		return zero, pgproto.NewWriteError(t.label, "create", errors.New("no row returned"))
	}
	t.log.Debug("entity created", zap.String("entity", t.label))
	return created, nil
}

// Update implements Storage. The identifier column is never assigned.
func (t *Table[E]) Update(ctx context.Context, id any, e E, sparse bool, where ...sql.Predicate) (E, error) {
	var zero E
	fields := t.columnNames()
	if sparse {
		fields = t.rel.Present(e)
	}
	fields = slices.DeleteFunc(slices.Clone(fields), func(c string) bool { return c == t.rel.ID().Name() })
	binds, err := t.rel.Bind(e, fields)
	if err != nil {
		return zero, pgproto.NewWriteError(t.label, "update", err)
	}
	preds := t.byID(id, where)
	stmt := sql.Update(t.rel.Table()).Where(preds...)
	for _, b := range binds {
		stmt = stmt.Set(b.Column, b.Value)
	}
	if stmt.Empty() {
		return t.current(ctx, id, preds)
	}
	updated, found, err := t.returning(ctx, stmt.Returning(t.columnNames()...))
	switch {
	case err != nil:
		return zero, pgproto.NewWriteError(t.label, "update", err)
	case !found:
		return zero, pgproto.NewNotFoundError(t.label, id)
	}
	t.log.Debug("entity updated", zap.String("entity", t.label), zap.Int("fields", len(binds)))
	return updated, nil
}

// current reads the row an empty sparse update would have returned.
func (t *Table[E]) current(ctx context.Context, id any, preds []sql.Predicate) (E, error) {
	var zero E
	for e, err := range t.Query(ctx, sql.Select().From(t.rel.Table()).Where(preds...).Limit(1)) {
		return e, err
	}
	return zero, pgproto.NewNotFoundError(t.label, id)
}

// Delete implements Storage.
func (t *Table[E]) Delete(ctx context.Context, id any, where ...sql.Predicate) error {
	res, err := t.drv.Exec(ctx, sql.Delete(t.rel.Table()).Where(t.byID(id, where)...))
	if err != nil {
		return pgproto.NewWriteError(t.label, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pgproto.NewWriteError(t.label, "delete", err)
	}
	if n == 0 {
		return pgproto.NewNotFoundError(t.label, id)
	}
	t.log.Debug("entity deleted", zap.String("entity", t.label), zap.Int64("rows", n))
	return nil
}

func (t *Table[E]) byID(id any, where []sql.Predicate) []sql.Predicate {
	return append([]sql.Predicate{sql.ParamEQ(t.rel.ID(), id)}, where...)
}

// returning executes a statement with a returning clause and converts the first row.
func (t *Table[E]) returning(ctx context.Context, stmt sql.Statement) (E, bool, error) {
	var zero E
	rows, err := t.drv.Query(ctx, stmt)
	if err != nil {
		return zero, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return zero, false, rows.Err()
	}
	e, err := t.scan(rows)
	if err != nil {
		return zero, false, err
	}
	return e, true, rows.Close()
}

func (t *Table[E]) columnNames() []string {
	cols := t.rel.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return names
}

var _ Storage[proto.Message] = (*Table[proto.Message])(nil)
