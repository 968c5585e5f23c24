// Package sql implements the Go code dialect of the pgproto generator.
//
// Usage:
//
//	import (
//	    "github.com/syssam/pgproto/compiler/gen"
//	    "github.com/syssam/pgproto/compiler/gen/sql"
//	)
//
//	generator := gen.NewJenniferGenerator(graph)
//	generator.WithDialect(sql.NewDialect(generator))
//	err := generator.Generate(ctx)
//
// Generated code structure:
//
//	{output}/
//	├── proto/
//	│   └── {table}.proto   # IDL: entity, qualifiers, CRUD messages, service
//	└── {table}/
//	    ├── {table}.go      # Relation: constants, columns, qualifiers, converters
//	    ├── service.go      # CRUD service scaffold
//	    └── storage.go      # Storage wiring
package sql

import (
	"context"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/pgproto/compiler/gen"
)

// Generate is a convenience function generating every artifact of the graph
// with the SQL dialect.
//
// Example:
//
//	import "github.com/syssam/pgproto/compiler/gen/sql"
//	err := sql.Generate(ctx, graph)
func Generate(ctx context.Context, g *gen.Graph) error {
	if g.Config == nil || g.Config.Target == "" {
		return gen.NewConfigError("Target", nil, "missing target directory in config")
	}
	generator := gen.NewJenniferGenerator(g)
	generator.WithDialect(NewDialect(generator))
	return generator.Generate(ctx)
}

// Dialect implements gen.MinimalDialect for PostgreSQL tables.
type Dialect struct {
	helper gen.GeneratorHelper
}

// NewDialect creates a new SQL dialect generator.
// The helper parameter should be a *gen.JenniferGenerator.
func NewDialect(helper gen.GeneratorHelper) *Dialect {
	return &Dialect{helper: helper}
}

// Name returns the dialect name.
func (d *Dialect) Name() string {
	return "sql"
}

// GenRelation generates the relation file ({table}/{table}.go).
// Includes: constants, column handles, qualifier and derived field
// constructors, and the relation type.
func (d *Dialect) GenRelation(t *gen.Type) *jen.File {
	return genRelation(d.helper, t)
}

// GenService generates the service scaffold file ({table}/service.go).
// Includes: Hooks, Service with the five RPCs, query, identifier and entity
// extraction, validators.
func (d *Dialect) GenService(t *gen.Type) *jen.File {
	return genService(d.helper, t)
}

// GenStorage generates the storage wiring file ({table}/storage.go).
func (d *Dialect) GenStorage(t *gen.Type) *jen.File {
	return genStorage(d.helper, t)
}

var _ gen.MinimalDialect = (*Dialect)(nil)
