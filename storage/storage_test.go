package storage_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/google/go-cmp/cmp"

	"github.com/syssam/pgproto"
	"github.com/syssam/pgproto/dialect/sql"
	"github.com/syssam/pgproto/storage"
	"github.com/syssam/pgproto/wire"
)

func personDescriptor(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String("person.proto"),
		Package: proto.String("test"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Person"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: proto.String("id"), Number: proto.Int32(1), Label: optional, Type: descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(), JsonName: proto.String("id")},
				{Name: proto.String("name"), Number: proto.Int32(2), Label: optional, Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), JsonName: proto.String("name")},
				{Name: proto.String("email"), Number: proto.Int32(3), Label: optional, Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), JsonName: proto.String("email")},
			},
		}},
	}, nil)
	require.NoError(t, err)
	return fd.Messages().ByName("Person")
}

// personRelation maps test.Person onto public.person.
type personRelation struct {
	desc protoreflect.MessageDescriptor
}

func (personRelation) Table() *sql.TableRef { return sql.Table("person").Schema("public") }

func (personRelation) Columns() []sql.Column {
	return []sql.Column{sql.Col("id"), sql.Col("name"), sql.Col("email")}
}

func (personRelation) ID() sql.Column { return sql.Col("id") }

func (r personRelation) FromRow(rec *sql.Record) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(r.desc)
	fields := r.desc.Fields()
	if !rec.IsNull("id") {
		m.Set(fields.ByName("id"), protoreflect.ValueOfInt64(rec.Int64("id")))
	}
	if !rec.IsNull("name") {
		m.Set(fields.ByName("name"), protoreflect.ValueOfString(rec.String("name")))
	}
	if !rec.IsNull("email") {
		m.Set(fields.ByName("email"), protoreflect.ValueOfString(rec.String("email")))
	}
	return m, rec.Err()
}

func (r personRelation) Bind(m *dynamicpb.Message, columns []string) ([]storage.Binding, error) {
	binds := make([]storage.Binding, 0, len(columns))
	for _, c := range columns {
		fd := r.desc.Fields().ByName(protoreflect.Name(c))
		if fd == nil {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		binds = append(binds, storage.Binding{Column: c, Value: m.Get(fd).Interface()})
	}
	return binds, nil
}

func (r personRelation) Present(m *dynamicpb.Message) []string {
	var cols []string
	for _, c := range r.Columns() {
		if m.Has(r.desc.Fields().ByName(protoreflect.Name(c.Name()))) {
			cols = append(cols, c.Name())
		}
	}
	return cols
}

func person(desc protoreflect.MessageDescriptor, id int64, name, email string) *dynamicpb.Message {
	m := dynamicpb.NewMessage(desc)
	if id != 0 {
		m.Set(desc.Fields().ByName("id"), protoreflect.ValueOfInt64(id))
	}
	if name != "" {
		m.Set(desc.Fields().ByName("name"), protoreflect.ValueOfString(name))
	}
	if email != "" {
		m.Set(desc.Fields().ByName("email"), protoreflect.ValueOfString(email))
	}
	return m
}

func newTable(t *testing.T, opts ...storage.Option) (*storage.Table[*dynamicpb.Message], sqlmock.Sqlmock, protoreflect.MessageDescriptor) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	desc := personDescriptor(t)
	return storage.NewTable(personRelation{desc: desc}, sql.OpenDB(db), opts...), mock, desc
}

var personColumns = []string{"id", "name", "email"}

func collect(t *testing.T, s storage.Storage[*dynamicpb.Message], q *sql.SelectBuilder) ([]*dynamicpb.Message, error) {
	t.Helper()
	var out []*dynamicpb.Message
	for e, err := range s.Query(context.Background(), q) {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func TestTableQuery(t *testing.T) {
	tbl, mock, desc := newTable(t)
	mock.ExpectQuery(`select "id", "name", "email" from "public"."person" where "id" = $1 limit 1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(personColumns).AddRow(int64(7), "ann", nil))

	got, err := collect(t, tbl, sql.Select().Where(sql.ParamEQ(sql.Col("id"), int64(7))).Limit(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(person(desc, 7, "ann", ""), got[0], protocmp.Transform()); diff != "" {
		t.Errorf("entity mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableQueryWidening(t *testing.T) {
	tbl, mock, _ := newTable(t)
	people := sql.Table("person").Schema("public").As("t")

	t.Run("derived field only", func(t *testing.T) {
		mock.ExpectQuery(`select "id", "name", "email", full_name(t) as "full_name" from "public"."person" as t`).
			WillReturnRows(sqlmock.NewRows(append(personColumns, "full_name")))
		_, err := collect(t, tbl, sql.Select(sql.DerivedField("full_name", "t", "full_name")).From(people))
		require.NoError(t, err)
	})
	t.Run("explicit columns kept", func(t *testing.T) {
		mock.ExpectQuery(`select "name" from "public"."person"`).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("bob"))
		got, err := collect(t, tbl, sql.Select(sql.Col("name")))
		require.NoError(t, err)
		require.Len(t, got, 1)
	})
	t.Run("nil select", func(t *testing.T) {
		mock.ExpectQuery(`select "id", "name", "email" from "public"."person"`).
			WillReturnRows(sqlmock.NewRows(personColumns))
		got, err := collect(t, tbl, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableQueryErrors(t *testing.T) {
	t.Run("select", func(t *testing.T) {
		tbl, mock, _ := newTable(t)
		mock.ExpectQuery(`select "id", "name", "email" from "public"."person"`).WillReturnError(errors.New("conn reset"))
		_, err := collect(t, tbl, nil)
		require.Error(t, err)
		assert.True(t, pgproto.IsReadError(err))
		var rerr *pgproto.ReadError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "select", rerr.Op)
	})
	t.Run("convert", func(t *testing.T) {
		tbl, mock, _ := newTable(t)
		mock.ExpectQuery(`select "id", "name", "email" from "public"."person"`).
			WillReturnRows(sqlmock.NewRows(personColumns).AddRow("not a number", "ann", nil))
		_, err := collect(t, tbl, nil)
		var rerr *pgproto.ReadError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "convert", rerr.Op)
	})
	t.Run("early stop", func(t *testing.T) {
		tbl, mock, _ := newTable(t)
		mock.ExpectQuery(`select "id", "name", "email" from "public"."person"`).
			WillReturnRows(sqlmock.NewRows(personColumns).AddRow(int64(1), "a", nil).AddRow(int64(2), "b", nil)).
			RowsWillBeClosed()
		n := 0
		for _, err := range tbl.Query(context.Background(), nil) {
			require.NoError(t, err)
			n++
			break
		}
		assert.Equal(t, 1, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTableCreate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tbl, mock, desc := newTable(t, storage.WithLogger(zap.New(core)), storage.WithLabel("Person"))
	mock.ExpectQuery(`insert into "public"."person" ("name", "email") values ($1, $2) returning "id", "name", "email"`).
		WithArgs("ann", "ann@example.com").
		WillReturnRows(sqlmock.NewRows(personColumns).AddRow(int64(1), "ann", "ann@example.com"))

	got, err := tbl.Create(context.Background(), person(desc, 0, "ann", "ann@example.com"))
	require.NoError(t, err)
	assert.True(t, proto.Equal(person(desc, 1, "ann", "ann@example.com"), got))
	assert.Equal(t, 1, logs.FilterMessage("entity created").Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableCreateErrors(t *testing.T) {
	t.Run("unique violation", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`insert into "public"."person" ("name") values ($1) returning "id", "name", "email"`).
			WillReturnError(errors.New("pq: duplicate key value violates unique constraint"))
		_, err := tbl.Create(context.Background(), person(desc, 0, "ann", ""))
		require.Error(t, err)
		assert.True(t, pgproto.IsWriteError(err))
		assert.True(t, sql.IsUniqueConstraintError(err))
	})
	t.Run("no row returned", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`insert into "public"."person" default values returning "id", "name", "email"`).
			WillReturnRows(sqlmock.NewRows(personColumns))
		_, err := tbl.Create(context.Background(), person(desc, 0, "", ""))
		require.Error(t, err)
		assert.True(t, pgproto.IsWriteError(err))
		assert.Contains(t, err.Error(), "no row returned")
	})
}

func TestTableUpdate(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`update "public"."person" set "name" = $1, "email" = $2 where "id" = $3 returning "id", "name", "email"`).
			WithArgs("ann", "", int64(1)).
			WillReturnRows(sqlmock.NewRows(personColumns).AddRow(int64(1), "ann", nil))
		got, err := tbl.Update(context.Background(), int64(1), person(desc, 99, "ann", ""), false)
		require.NoError(t, err)
		assert.True(t, proto.Equal(person(desc, 1, "ann", ""), got))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("sparse", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`update "public"."person" set "email" = $1 where "id" = $2 and by_owner(t, $3) returning "id", "name", "email"`).
			WithArgs("b@example.com", int64(1), "u1").
			WillReturnRows(sqlmock.NewRows(personColumns).AddRow(int64(1), "bob", "b@example.com"))
		got, err := tbl.Update(context.Background(), int64(1), person(desc, 0, "", "b@example.com"), true, sql.Qualifier("by_owner", "t", "u1"))
		require.NoError(t, err)
		assert.True(t, proto.Equal(person(desc, 1, "bob", "b@example.com"), got))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("sparse without fields reads the row", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`select "id", "name", "email" from "public"."person" where "id" = $1 limit 1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(personColumns).AddRow(int64(1), "bob", nil))
		got, err := tbl.Update(context.Background(), int64(1), person(desc, 1, "", ""), true)
		require.NoError(t, err)
		assert.True(t, proto.Equal(person(desc, 1, "bob", ""), got))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("not found", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`update "public"."person" set "name" = $1 where "id" = $2 returning "id", "name", "email"`).
			WithArgs("ann", int64(5)).
			WillReturnRows(sqlmock.NewRows(personColumns))
		_, err := tbl.Update(context.Background(), int64(5), person(desc, 0, "ann", ""), true)
		require.Error(t, err)
		assert.True(t, pgproto.IsNotFound(err))
		assert.Equal(t, "pgproto: person not found (id=5)", err.Error())
	})
	t.Run("empty update of missing row", func(t *testing.T) {
		tbl, mock, desc := newTable(t)
		mock.ExpectQuery(`select "id", "name", "email" from "public"."person" where "id" = $1 limit 1`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(personColumns))
		_, err := tbl.Update(context.Background(), int64(5), person(desc, 0, "", ""), true)
		assert.True(t, pgproto.IsNotFound(err))
	})
}

func TestTableDelete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		tbl, mock, _ := newTable(t)
		mock.ExpectExec(`delete from "public"."person" where "id" = $1`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, tbl.Delete(context.Background(), int64(1)))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("not found", func(t *testing.T) {
		tbl, mock, _ := newTable(t, storage.WithLabel("Person"))
		mock.ExpectExec(`delete from "public"."person" where "id" = $1`).
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := tbl.Delete(context.Background(), int64(2))
		assert.True(t, pgproto.IsNotFound(err))
		var nf *pgproto.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Person", nf.Label())
		assert.Equal(t, int64(2), nf.ID())
	})
	t.Run("failure", func(t *testing.T) {
		tbl, mock, _ := newTable(t)
		mock.ExpectExec(`delete from "public"."person" where "id" = $1`).
			WithArgs(int64(3)).
			WillReturnError(driver.ErrBadConn)
		err := tbl.Delete(context.Background(), int64(3))
		assert.True(t, pgproto.IsWriteError(err))
	})
	t.Run("rows affected failure", func(t *testing.T) {
		tbl, mock, _ := newTable(t)
		mock.ExpectExec(`delete from "public"."person" where "id" = $1`).
			WithArgs(int64(4)).
			WillReturnResult(sqlmock.NewErrorResult(errors.New("unsupported")))
		err := tbl.Delete(context.Background(), int64(4))
		assert.True(t, pgproto.IsWriteError(err))
	})
}

// taggedRelation maps test.Tagged, a message with a repeated text column, onto
// public.tagged.
type taggedRelation struct {
	desc protoreflect.MessageDescriptor
}

func taggedDescriptor(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()
	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String("tagged.proto"),
		Package: proto.String("test"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Tagged"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: proto.String("id"), Number: proto.Int32(1), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), Type: descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(), JsonName: proto.String("id")},
				{Name: proto.String("tags"), Number: proto.Int32(2), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), JsonName: proto.String("tags")},
			},
		}},
	}, nil)
	require.NoError(t, err)
	return fd.Messages().ByName("Tagged")
}

func (taggedRelation) Table() *sql.TableRef { return sql.Table("tagged") }

func (taggedRelation) Columns() []sql.Column { return []sql.Column{sql.Col("id"), sql.Col("tags")} }

func (taggedRelation) ID() sql.Column { return sql.Col("id") }

func (r taggedRelation) FromRow(rec *sql.Record) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(r.desc)
	fields := r.desc.Fields()
	if !rec.IsNull("id") {
		m.Set(fields.ByName("id"), protoreflect.ValueOfInt64(rec.Int64("id")))
	}
	if !rec.IsNull("tags") {
		list := m.Mutable(fields.ByName("tags")).List()
		for _, tag := range rec.Strings("tags") {
			list.Append(protoreflect.ValueOfString(tag))
		}
	}
	return m, rec.Err()
}

func (r taggedRelation) Bind(m *dynamicpb.Message, columns []string) ([]storage.Binding, error) {
	var binds []storage.Binding
	for _, c := range columns {
		switch c {
		case "id":
			binds = append(binds, storage.Binding{Column: c, Value: m.Get(r.desc.Fields().ByName("id")).Int()})
		case "tags":
			var tags []string
			list := m.Get(r.desc.Fields().ByName("tags")).List()
			for i := range list.Len() {
				tags = append(tags, list.Get(i).String())
			}
			binds = append(binds, storage.Binding{Column: c, Value: wire.Array(tags)})
		default:
			return nil, fmt.Errorf("unknown column %q", c)
		}
	}
	return binds, nil
}

func (r taggedRelation) Present(m *dynamicpb.Message) []string {
	if m.Get(r.desc.Fields().ByName("tags")).List().Len() > 0 {
		return []string{"tags"}
	}
	return nil
}

func TestTableUpdateEmptyArray(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	desc := taggedDescriptor(t)
	tbl := storage.NewTable(taggedRelation{desc: desc}, sql.OpenDB(db))

	mock.ExpectQuery(`update "tagged" set "tags" = $1 where "id" = $2 returning "id", "tags"`).
		WithArgs("{}", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tags"}).AddRow(int64(1), "{}"))
	got, err := tbl.Update(context.Background(), int64(1), dynamicpb.NewMessage(desc), false)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Get(desc.Fields().ByName("tags")).List().Len())
	require.NoError(t, mock.ExpectationsWereMet())
}
