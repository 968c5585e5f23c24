// Package gen provides code generation for pgproto catalogs.
//
// This package turns inspected PostgreSQL tables into a protobuf IDL per
// table and the Go runtime wiring that serves it: relation constants and
// column handles, qualifier and derived field constructors, storage wiring
// and a CRUD service scaffold.
//
// # Architecture
//
// The code generation pipeline follows this flow:
//
//	Catalog (information_schema / pg_catalog)
//	        ↓
//	   load.Inspector → schema.Schema
//	        ↓
//	   Graph (resolved names, mappings, field numbers)
//	        ↓
//	   Descriptors (descriptorpb, linked with protodesc)
//	        ↓
//	   MinimalDialect (Go code per table)
//	        ↓
//	   Generated tree: proto/, {table}/, descriptor set
//
// # Key Types
//
//   - Graph: Holds all Type definitions with validation
//   - Type: A table with its fields, qualifiers and derived fields
//   - Field: A column with its wire mapping and field number
//   - Qualifier: A boolean SQL function taking the table's row type
//   - Function: A non-qualifier SQL function taking the row type
//   - Config: Global configuration for code generation
//
// # Usage
//
//	cfg, err := gen.NewConfig(
//	    gen.WithTarget("./out"),
//	    gen.WithPackage("github.com/acme/store"),
//	)
//	graph, err := gen.NewGraph(cfg, schemas...)
//	err = sql.Generate(ctx, graph)
//
// Nothing is written unless every table rendered.
package gen
