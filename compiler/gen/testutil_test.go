package gen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/pgproto/schema"
)

// column is a test helper building a column descriptor.
func column(t *testing.T, name, native string, opts ...schema.ColumnOption) *schema.Column {
	t.Helper()
	c, err := schema.NewColumn(name, native, opts...)
	require.NoError(t, err)
	return c
}

// param is a test helper building a parameter descriptor.
func param(t *testing.T, name, native string) *schema.Parameter {
	t.Helper()
	p, err := schema.NewParameter(name, native)
	require.NoError(t, err)
	return p
}

// personTable returns public.person with a by_name qualifier, a scalar
// age function and a composite summary function.
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

// plainTable returns a table with columns only.
func plainTable(t *testing.T, schemaName, name string, columns ...*schema.Column) *schema.Table {
	t.Helper()
	table, err := schema.NewTable(schemaName, name, columns, nil, nil)
	require.NoError(t, err)
	return table
}

// schemaOf wraps tables into a schema descriptor.
func schemaOf(t *testing.T, name string, tables ...*schema.Table) *schema.Schema {
	t.Helper()
	s, err := schema.NewSchema(name, tables...)
	require.NoError(t, err)
	return s
}

// testConfig returns a config writing to a temporary directory.
func testConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()
	c, err := NewConfig(append([]Option{
		WithTarget(t.TempDir()),
		WithPackage("github.com/acme/store"),
	}, opts...)...)
	require.NoError(t, err)
	return c
}

// personGraph returns the graph of personTable.
func personGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(testConfig(t), schemaOf(t, "public", personTable(t)))
	require.NoError(t, err)
	return g
}
