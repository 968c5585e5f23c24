// Package storage defines the generic entity storage contract used by
// generated services, and its table-bound implementation.
//
// Generated table packages implement Relation for their entity message and
// register a Table with a Registry:
//
//	reg := storage.NewRegistry()
//	if err := person.Register(reg, sql.OpenDB(db)); err != nil {
//		return err
//	}
//	people, err := storage.Lookup[*pb.Person](reg)
package storage

import (
	"context"
	"iter"

	"google.golang.org/protobuf/proto"

	"github.com/syssam/pgproto/dialect/sql"
)

// Storage reads and writes entities of one message type.
type Storage[E proto.Message] interface {
	// Query runs the select and yields entities lazily. Iteration stops at
	// the first error, which is yielded with the zero entity.
	Query(ctx context.Context, q *sql.SelectBuilder) iter.Seq2[E, error]
	// Create inserts the entity and returns the stored row.
	Create(ctx context.Context, e E) (E, error)
	// Update writes the entity over the row identified by id and returns the
	// stored row. Sparse updates write only the fields set on e. The extra
	// predicates, typically qualifier calls, must also hold for the row.
	Update(ctx context.Context, id any, e E, sparse bool, where ...sql.Predicate) (E, error)
	// Delete removes the row identified by id when the predicates hold.
	Delete(ctx context.Context, id any, where ...sql.Predicate) error
}

// Binding is a column assignment produced by a Relation.
type Binding struct {
	Column string
	Value  any
}

// Relation describes how an entity message maps onto its table. It is
// implemented by generated code.
type Relation[E proto.Message] interface {
	// Table returns the table reference, aliased when the table has qualifiers.
	Table() *sql.TableRef
	// Columns returns the table columns in catalog order.
	Columns() []sql.Column
	// ID returns the identifier column.
	ID() sql.Column
	// FromRow converts a result row into an entity, skipping NULL columns.
	FromRow(rec *sql.Record) (E, error)
	// Bind returns the bindable values of the named entity fields.
	Bind(e E, columns []string) ([]Binding, error)
	// Present returns the columns whose entity field is set.
	Present(e E) []string
}
