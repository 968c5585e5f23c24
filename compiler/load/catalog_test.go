package load_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/syssam/pgproto/compiler/load"
	"github.com/syssam/pgproto/schema"
)

var (
	namespaceSQL  = regexp.QuoteMeta("from pg_catalog.pg_namespace where nspname")
	relationSQL   = regexp.QuoteMeta("from pg_catalog.pg_class c")
	columnsSQL    = regexp.QuoteMeta("as primary_key")
	functionsSQL  = regexp.QuoteMeta("from pg_catalog.pg_proc p")
	attributesSQL = regexp.QuoteMeta("select a.attname, a.atttypid\nfrom")
	typesSQL      = regexp.QuoteMeta("where t.oid = any($1)")
)

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"attname", "attnum", "atttypid", "typname", "nspname", "typtype", "typbasetype", "primary_key"})
}

func functionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"proname", "nspname", "prorettype", "proretset",
		"typname", "nspname", "typtype", "typrelid",
		"proargtypes", "proallargtypes", "proargmodes", "proargnames",
	})
}

func typeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"oid", "typname", "nspname", "typtype", "typbasetype"})
}

func expectSchema(mock sqlmock.Sqlmock, name string, exists bool) {
	mock.ExpectQuery(namespaceSQL).WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectRelation(mock sqlmock.Sqlmock, schemaName, table string, oid, rowType int64) {
	mock.ExpectQuery(relationSQL).WithArgs(schemaName, table).
		WillReturnRows(sqlmock.NewRows([]string{"oid", "reltype"}).AddRow(oid, rowType))
}

func newInspector(t *testing.T, opts ...load.Option) (*load.Inspector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	i, err := load.NewInspector(db, opts...)
	require.NoError(t, err)
	return i, mock
}

func nativeTypes(cols []*schema.Column) []string {
	var out []string
	for _, c := range cols {
		out = append(out, c.Name()+" "+c.NativeType())
	}
	return out
}

func paramTypes(params []*schema.Parameter) []string {
	var out []string
	for _, p := range params {
		out = append(out, p.Name()+" "+p.NativeType())
	}
	return out
}

func TestInspect(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	i, mock := newInspector(t, load.WithWorkers(1), load.WithLogger(zap.New(core)))

	expectSchema(mock, "public", true)
	expectRelation(mock, "public", "person", 16384, 16386)
	mock.ExpectQuery(columnsSQL).WithArgs(int64(16384)).WillReturnRows(columnRows().
		AddRow("id", 1, int64(20), "int8", "pg_catalog", "b", int64(0), true).
		AddRow("email", 2, int64(17000), "email", "public", "d", int64(25), false).
		AddRow("tags", 3, int64(1009), "_text", "pg_catalog", "b", int64(0), false).
		AddRow("mood", 4, int64(17200), "mood", "public", "e", int64(0), false))
	mock.ExpectQuery(typesSQL).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(typeRows().AddRow(int64(25), "text", "pg_catalog", "b", int64(0)))
	mock.ExpectQuery(functionsSQL).WithArgs(int64(16386)).WillReturnRows(functionRows().
		AddRow("by_name", "public", int64(16), false, "bool", "pg_catalog", "b", int64(0), "{16386,25}", nil, nil, "{p,name}").
		AddRow("full_name", "public", int64(25), false, "text", "pg_catalog", "b", int64(0), "{16386}", nil, nil, "{p}").
		AddRow("stats", "public", int64(17100), false, "person_stats", "public", "c", int64(17099), "{16386}", nil, nil, nil))
	mock.ExpectQuery(attributesSQL).WithArgs(int64(17099)).WillReturnRows(
		sqlmock.NewRows([]string{"attname", "atttypid"}).
			AddRow("posts", int64(20)).
			AddRow("last_seen", int64(1184)))
	mock.ExpectQuery(typesSQL).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(typeRows().AddRow(int64(1184), "timestamptz", "pg_catalog", "b", int64(0)))

	schemas, err := i.Inspect(context.Background(), load.Selection{{Schema: "public", Tables: []string{"person"}}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, schemas, 1)
	assert.Equal(t, "public", schemas[0].Name())
	tables := schemas[0].Tables()
	require.Len(t, tables, 1)
	person := tables[0]
	assert.Equal(t, "person", person.Name())
	assert.Equal(t, []string{"id int8", "email text", "tags _text", "mood public.mood"}, nativeTypes(person.Columns()))
	assert.Equal(t, "id", person.IDColumn().Name())
	assert.True(t, person.IDColumn().PrimaryKey())
	assert.Equal(t, 3, person.Columns()[2].Position())

	qualifiers := person.Qualifiers()
	require.Len(t, qualifiers, 1)
	assert.Equal(t, "by_name", qualifiers[0].Name())
	assert.Equal(t, []string{"name text"}, paramTypes(qualifiers[0].Params()))

	functions := person.Functions()
	require.Len(t, functions, 2)
	assert.Equal(t, "full_name", functions[0].Name())
	assert.False(t, functions[0].Composite())
	assert.Equal(t, []string{"full_name text"}, paramTypes(functions[0].Returns()))
	assert.Equal(t, "stats", functions[1].Name())
	assert.True(t, functions[1].Composite())
	assert.Equal(t, "public.person_stats", functions[1].ReturnTypeName())
	assert.Equal(t, []string{"posts int8", "last_seen timestamptz"}, paramTypes(functions[1].Returns()))

	assert.Equal(t, 1, logs.FilterMessage("schema found").Len())
	assert.Equal(t, 1, logs.FilterMessage("table introspected").Len())
}

func TestInspectOutParameters(t *testing.T) {
	i, mock := newInspector(t, load.WithWorkers(1))
	expectSchema(mock, "public", true)
	expectRelation(mock, "public", "post", 20000, 20002)
	mock.ExpectQuery(columnsSQL).WithArgs(int64(20000)).WillReturnRows(columnRows().
		AddRow("id", 1, int64(20), "int8", "pg_catalog", "b", int64(0), true))
	mock.ExpectQuery(functionsSQL).WithArgs(int64(20002)).WillReturnRows(functionRows().
		AddRow("labels", "public", int64(2249), true, "record", "pg_catalog", "p", int64(0),
			"{20002,23}", "{20002,23,20,25}", "{i,i,t,t}", "{p,lim,n,label}"))
	mock.ExpectQuery(typesSQL).WithArgs(sqlmock.AnyArg()).WillReturnRows(typeRows().
		AddRow(int64(23), "int4", "pg_catalog", "b", int64(0)).
		AddRow(int64(25), "text", "pg_catalog", "b", int64(0)))

	schemas, err := i.Inspect(context.Background(), load.Selection{{Schema: "public", Tables: []string{"post"}}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	functions := schemas[0].Tables()[0].Functions()
	require.Len(t, functions, 1)
	f := functions[0]
	assert.True(t, f.SetOf())
	assert.True(t, f.Composite())
	assert.Equal(t, "record", f.ReturnTypeName())
	assert.Equal(t, []string{"lim int4"}, paramTypes(f.Params()))
	assert.Equal(t, []string{"n int8", "label text"}, paramTypes(f.Returns()))
}

func TestInspectSchemaNotFound(t *testing.T) {
	i, mock := newInspector(t)
	expectSchema(mock, "public", true)
	expectSchema(mock, "missing", false)

	_, err := i.Inspect(context.Background(), load.Selection{
		{Schema: "public", Tables: []string{"person"}},
		{Schema: "missing", Tables: []string{"x"}},
	})
	require.Error(t, err)
	var nf *load.SchemaNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Schema)
	assert.True(t, load.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectTableNotFound(t *testing.T) {
	i, mock := newInspector(t, load.WithWorkers(1))
	expectSchema(mock, "public", true)
	mock.ExpectQuery(relationSQL).WithArgs("public", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"oid", "reltype"}))

	_, err := i.Inspect(context.Background(), load.Selection{{Schema: "public", Tables: []string{"ghost"}}})
	var nf *load.TableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.Table)
	assert.Equal(t, "public", nf.Schema)
	assert.ErrorIs(t, err, load.ErrNotFound)
}

func TestInspectQueryFailure(t *testing.T) {
	i, mock := newInspector(t, load.WithWorkers(1))
	boom := errors.New("connection reset")
	expectSchema(mock, "public", true)
	expectRelation(mock, "public", "person", 1, 2)
	mock.ExpectQuery(columnsSQL).WithArgs(int64(1)).WillReturnError(boom)

	_, err := i.Inspect(context.Background(), load.Selection{{Schema: "public", Tables: []string{"person"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var cerr *load.CatalogError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "columns", cerr.Query)
	assert.Contains(t, err.Error(), "public.person")
}

func TestInspectCompositeWithoutColumns(t *testing.T) {
	i, mock := newInspector(t, load.WithWorkers(1))
	expectSchema(mock, "public", true)
	expectRelation(mock, "public", "person", 1, 2)
	mock.ExpectQuery(columnsSQL).WithArgs(int64(1)).WillReturnRows(columnRows().
		AddRow("id", 1, int64(20), "int8", "pg_catalog", "b", int64(0), true))
	mock.ExpectQuery(functionsSQL).WithArgs(int64(2)).WillReturnRows(functionRows().
		AddRow("nothing", "public", int64(300), false, "empty_t", "public", "c", int64(299), "{2}", nil, nil, nil))
	mock.ExpectQuery(attributesSQL).WithArgs(int64(299)).
		WillReturnRows(sqlmock.NewRows([]string{"attname", "atttypid"}))

	_, err := i.Inspect(context.Background(), load.Selection{{Schema: "public", Tables: []string{"person"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrInvalidDescriptor)
	assert.Contains(t, err.Error(), "nothing")
}

func TestInspectPreservesSelectionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	i, err := load.NewInspector(db, load.WithWorkers(2))
	require.NoError(t, err)
	expectSchema(mock, "public", true)
	for n, table := range []string{"zeta", "alpha", "mid"} {
		oid := int64(100 * (n + 1))
		expectRelation(mock, "public", table, oid, oid+1)
		mock.ExpectQuery(columnsSQL).WithArgs(oid).WillReturnRows(columnRows().
			AddRow(table+"_id", 1, int64(20), "int8", "pg_catalog", "b", int64(0), true))
		mock.ExpectQuery(functionsSQL).WithArgs(oid + 1).WillReturnRows(functionRows())
	}

	schemas, err := i.Inspect(context.Background(), load.Selection{{Schema: "public", Tables: []string{"zeta", "alpha", "mid"}}})
	require.NoError(t, err)
	var names []string
	for _, tbl := range schemas[0].Tables() {
		names = append(names, tbl.Name())
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectEmptySelection(t *testing.T) {
	i, _ := newInspector(t)
	_, err := i.Inspect(context.Background(), nil)
	assert.ErrorIs(t, err, load.ErrSelection)
}

func TestNewInspectorOptions(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = load.NewInspector(db, load.WithWorkers(0))
	assert.Error(t, err)
	_, err = load.NewInspector(db, load.WithLogger(nil))
	assert.Error(t, err)
	_, err = load.NewInspector(nil)
	assert.Error(t, err)
}
