package sql

import (
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/stretchr/testify/require"

	"github.com/syssam/pgproto/compiler/gen"
	"github.com/syssam/pgproto/schema"
)

func column(t *testing.T, name, native string, opts ...schema.ColumnOption) *schema.Column {
	t.Helper()
	c, err := schema.NewColumn(name, native, opts...)
	require.NoError(t, err)
	return c
}

func param(t *testing.T, name, native string) *schema.Parameter {
	t.Helper()
	p, err := schema.NewParameter(name, native)
	require.NoError(t, err)
	return p
}

// personTable returns public.person with a by_name qualifier, a scalar age
// function and a composite summary function.
func personTable(t *testing.T) *schema.Table {
	t.Helper()
	byName, err := schema.NewQualifier("public", "by_name", param(t, "name", "text"))
	require.NoError(t, err)
	age, err := schema.NewFunction("public", "age", nil, []*schema.Parameter{param(t, "age", "int4")})
	require.NoError(t, err)
	summary, err := schema.NewFunction("public", "summary", nil,
		[]*schema.Parameter{param(t, "title", "text"), param(t, "score", "int4")},
		schema.ReturnsComposite("public.person_summary"))
	require.NoError(t, err)
	table, err := schema.NewTable("public", "person",
		[]*schema.Column{
			column(t, "id", "uuid", schema.PrimaryKeyPart()),
			column(t, "name", "text"),
			column(t, "born", "date"),
			column(t, "tags", "_text"),
			column(t, "updated_at", "timestamptz"),
		},
		[]*schema.Qualifier{byName},
		[]*schema.Function{age, summary},
	)
	require.NoError(t, err)
	return table
}

// itemTable returns audit.item, a table without functions.
func itemTable(t *testing.T) *schema.Table {
	t.Helper()
	table, err := schema.NewTable("audit", "item", []*schema.Column{
		column(t, "id", "int8", schema.PrimaryKeyPart()),
		column(t, "note", "text"),
	}, nil, nil)
	require.NoError(t, err)
	return table
}

// newGenerator returns a generator over the given tables, writing to a
// temporary directory, with the dialect set.
func newGenerator(t *testing.T, schemaName string, tables ...*schema.Table) *gen.JenniferGenerator {
	t.Helper()
	cfg, err := gen.NewConfig(
		gen.WithTarget(t.TempDir()),
		gen.WithPackage("github.com/acme/store"),
	)
	require.NoError(t, err)
	s, err := schema.NewSchema(schemaName, tables...)
	require.NoError(t, err)
	g, err := gen.NewGraph(cfg, s)
	require.NoError(t, err)
	generator := gen.NewJenniferGenerator(g)
	generator.WithDialect(NewDialect(generator))
	return generator
}

// source renders a generated file.
func source(t *testing.T, f *jen.File) string {
	t.Helper()
	src := f.GoString()
	require.NotEmpty(t, src)
	return src
}
