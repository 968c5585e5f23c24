package gen

import "github.com/dave/jennifer/jen"

// EntityGenerator generates per-table code.
// Each method is called once per table of the graph.
type EntityGenerator interface {
	// GenRelation generates the relation module ({table}/{table}.go)
	GenRelation(t *Type) *jen.File
	// GenService generates the CRUD service scaffold ({table}/service.go)
	GenService(t *Type) *jen.File
	// GenStorage generates the storage wiring ({table}/storage.go)
	GenStorage(t *Type) *jen.File
}

// MinimalDialect is the interface a Go code dialect must implement.
//
//	generator := gen.NewJenniferGenerator(graph)
//	generator.WithDialect(sql.NewDialect(generator))
//	err := generator.Generate(ctx)
type MinimalDialect interface {
	// Name returns the dialect name (e.g., "sql")
	Name() string
	EntityGenerator
}

// GeneratorHelper provides the shared lookups dialects use while emitting.
type GeneratorHelper interface {
	// NewFile returns a file of the named package carrying the configured header.
	NewFile(pkg string) *jen.File
	// Graph returns the graph being generated.
	Graph() *Graph
	// PBPkg returns the import path of the compiled protobuf package.
	PBPkg() string
	// EntityPkgPath returns the import path of a generated table package.
	EntityPkgPath(t *Type) string
	// Runtime package import paths.
	SQLPkg() string
	StoragePkg() string
	CrudPkg() string
	PrivacyPkg() string
	ValidatePkg() string
	RootPkg() string
}
