package sql

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/pgproto/compiler/gen"
)

// genRelation generates the relation file of a table ({table}/{table}.go).
func genRelation(h gen.GeneratorHelper, t *gen.Type) *jen.File {
	f := h.NewFile(t.Package)
	id := t.Idents
	genConstants(f, t)
	genTable(h, f, t)

	f.Commentf("%s holds all SQL columns of the %s entity, in catalog order.", id.Columns, t.Name)
	f.Var().Id(id.Columns).Op("=").Index().String().ValuesFunc(func(vals *jen.Group) {
		for _, c := range t.Fields {
			vals.Id(c.Const)
		}
	})

	f.Commentf("%s maps the name of each %s column to the column.", id.ColumnsByName, t.Name)
	f.Var().Id(id.ColumnsByName).Op("=").Map(jen.String()).Qual(h.SQLPkg(), "Column").Values(jen.DictFunc(func(d jen.Dict) {
		for _, c := range t.Fields {
			d[jen.Id(c.Const)] = jen.Id(c.Var).Dot("Col").Call()
		}
	}))

	f.Commentf("%s reports if the column name is part of the %s table.", id.ValidColumn, t.Table().Name())
	f.Func().Id(id.ValidColumn).Params(jen.Id("column").String()).Bool().Block(
		jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id(id.ColumnsByName).Index(jen.Id("column")),
		jen.Return(jen.Id("ok")),
	)

	for _, q := range t.Qualifiers {
		genQualifier(h, f, t, q)
	}
	for _, fn := range t.Functions {
		genFunction(h, f, t, fn)
	}
	genRelationType(h, f, t)
	return f
}

func genConstants(f *jen.File, t *gen.Type) {
	id := t.Idents
	f.Const().DefsFunc(func(defs *jen.Group) {
		defs.Commentf("%s holds the string label denoting the %s type.", id.Label, t.Name)
		defs.Id(id.Label).Op("=").Lit(t.Name)
		defs.Commentf("%s holds the table name of the %s in the database.", id.TableName, t.Name)
		defs.Id(id.TableName).Op("=").Lit(t.Table().Name())
		if !t.Public() {
			defs.Commentf("%s holds the schema of the %s table.", id.SchemaName, t.Name)
			defs.Id(id.SchemaName).Op("=").Lit(t.Table().Schema())
		}
		if a := t.Alias(); a != "" {
			defs.Commentf("%s is the alias the table is selected under.", id.Alias)
			defs.Id(id.Alias).Op("=").Lit(a)
		}
		if t.HasQualifiers() || len(t.Functions) > 0 {
			defs.Commentf("%s references the row in qualifier and derived field calls.", id.Row)
			defs.Id(id.Row).Op("=").Lit(t.Row())
		}
		for _, c := range t.Fields {
			defs.Commentf("%s holds the string denoting the %s field in the database.", c.Const, c.Name)
			defs.Id(c.Const).Op("=").Lit(c.Name)
		}
		for _, q := range t.Qualifiers {
			defs.Commentf("%s holds the name of the %s qualifier function.", q.Const, q.Field)
			defs.Id(q.Const).Op("=").Lit(q.SQLName(t))
		}
		for _, fn := range t.Functions {
			defs.Commentf("%s holds the name of the %s derived field function.", fn.Const, fn.Label())
			defs.Id(fn.Const).Op("=").Lit(fn.SQLName(t))
		}
	})
}

func genTable(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	id := t.Idents
	ref := jen.Qual(h.SQLPkg(), "Table").Call(jen.Id(id.TableName))
	if !t.Public() {
		ref = ref.Dot("Schema").Call(jen.Id(id.SchemaName))
	}
	if t.Alias() != "" {
		ref = ref.Dot("As").Call(jen.Id(id.Alias))
	}
	f.Var().DefsFunc(func(defs *jen.Group) {
		defs.Commentf("%s is the relation %s entities are selected from.", id.Table, t.Name)
		defs.Id(id.Table).Op("=").Add(ref)
		for _, c := range t.Fields {
			defs.Commentf("%s is the typed handle of the %s column.", c.Var, c.Name)
			defs.Id(c.Var).Op("=").Qual(h.SQLPkg(), "Field").Types(c.Mapping.GoType()).Call(jen.Id(c.Const))
		}
	})
}

func genQualifier(h gen.GeneratorHelper, f *jen.File, t *gen.Type, q *gen.Qualifier) {
	call := append([]jen.Code{jen.Id(q.Const), jen.Id(t.Idents.Row)}, args(q.Params)...)
	f.Commentf("%s returns a call of the %s qualifier over the %s row.", q.Func, q.Field, t.Name)
	f.Func().Id(q.Func).Params(params(h, q.Params)...).Op("*").Qual(h.SQLPkg(), "QualifierCall").Block(
		jen.Return(jen.Qual(h.SQLPkg(), "Qualifier").Call(call...)),
	)

	f.Commentf("%s returns the %s calls carried by a request, in request order.", q.Extract, q.Field)
	f.Func().Id(q.Extract).Params(jen.Id("qs").Index().Add(pbType(h, q.Message))).Index().Qual(h.SQLPkg(), "Predicate").Block(
		jen.Id("ps").Op(":=").Make(jen.Index().Qual(h.SQLPkg(), "Predicate"), jen.Lit(0), jen.Len(jen.Id("qs"))),
		jen.For(jen.List(jen.Id("_"), jen.Id("q")).Op(":=").Range().Id("qs")).Block(
			jen.Id("ps").Op("=").Append(jen.Id("ps"), jen.Id(q.Func).CallFunc(func(grp *jen.Group) {
				for _, p := range q.Params {
					grp.Id("q").Dot(p.Getter()).Call()
				}
			})),
		),
		jen.Return(jen.Id("ps")),
	)
}

func genFunction(h gen.GeneratorHelper, f *jen.File, t *gen.Type, fn *gen.Function) {
	call := append([]jen.Code{jen.Id(fn.Const), jen.Id(t.Idents.Row), jen.Lit(fn.Label())}, args(fn.Params)...)
	f.Commentf("%s returns the %s derived field of the %s row, selected as %q.", fn.Func, fn.Label(), t.Name, fn.Label())
	f.Func().Id(fn.Func).Params(params(h, fn.Params)...).Op("*").Qual(h.SQLPkg(), "DerivedFieldCall").Block(
		jen.Return(jen.Qual(h.SQLPkg(), "DerivedField").Call(call...)),
	)
	if fn.Reader == "" {
		return
	}
	ret := fn.Returns[0]
	f.Commentf("%s reads the %s derived field from a record.", fn.Reader, fn.Label())
	f.Func().Id(fn.Reader).Params(jen.Id("rec").Op("*").Qual(h.SQLPkg(), "Record")).Add(wireGoType(h, ret.Mapping)).Block(
		jen.Return(ret.Mapping.Read(jen.Id("rec"), jen.Lit(fn.Label()))),
	)
}

func genRelationType(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	var (
		rel     = t.Idents.Relation
		recv    = jen.Params(jen.Id(rel))
		ent     = entity(h, t)
		sqlCol  = jen.Qual(h.SQLPkg(), "Column")
		binding = jen.Qual(h.StoragePkg(), "Binding")
	)
	f.Commentf("%s implements storage.Relation for the %s entity.", rel, t.Name)
	f.Type().Id(rel).Struct()
	f.Var().Id("_").Qual(h.StoragePkg(), "Relation").Types(ent).Op("=").Id(rel).Values()

	f.Comment("Table implements storage.Relation.")
	f.Func().Add(recv).Id("Table").Params().Op("*").Qual(h.SQLPkg(), "TableRef").Block(
		jen.Return(jen.Id(t.Idents.Table)),
	)

	f.Comment("Columns implements storage.Relation.")
	f.Func().Add(recv).Id("Columns").Params().Index().Add(sqlCol).Block(
		jen.Return(jen.Index().Add(sqlCol).ValuesFunc(func(vals *jen.Group) {
			for _, c := range t.Fields {
				vals.Id(c.Var).Dot("Col").Call()
			}
		})),
	)

	f.Comment("ID implements storage.Relation.")
	f.Func().Add(recv).Id("ID").Params().Add(sqlCol).Block(
		jen.Return(jen.Id(t.ID.Var).Dot("Col").Call()),
	)

	f.Comment("FromRow implements storage.Relation. Null columns leave their field unset.")
	f.Func().Add(recv).Id("FromRow").Params(jen.Id("rec").Op("*").Qual(h.SQLPkg(), "Record")).Params(ent, jen.Error()).BlockFunc(func(grp *jen.Group) {
		grp.Id("e").Op(":=").Op("&").Qual(h.PBPkg(), t.Name).Values()
		for _, c := range t.Fields {
			read := c.Mapping.Read(jen.Id("rec"), jen.Id(c.Const))
			var set jen.Code
			if c.Repeated() {
				set = jen.Id("e").Dot(c.GoName).Op("=").Append(jen.Id("e").Dot(c.GoName), jen.Add(read).Op("..."))
			} else {
				set = jen.Id("e").Dot(c.GoName).Op("=").Add(read)
			}
			grp.If(jen.Op("!").Id("rec").Dot("IsNull").Call(jen.Id(c.Const))).Block(set)
		}
		grp.Return(jen.Id("e"), jen.Id("rec").Dot("Err").Call())
	})

	f.Comment("Bind implements storage.Relation.")
	f.Func().Add(recv).Id("Bind").Params(jen.Id("e").Add(ent), jen.Id("fields").Index().String()).Params(jen.Index().Add(binding), jen.Error()).Block(
		jen.Id("bs").Op(":=").Make(jen.Index().Add(binding), jen.Lit(0), jen.Len(jen.Id("fields"))),
		jen.For(jen.List(jen.Id("_"), jen.Id("name")).Op(":=").Range().Id("fields")).Block(
			jen.Switch(jen.Id("name")).BlockFunc(func(grp *jen.Group) {
				for _, c := range t.Fields {
					grp.Case(jen.Id(c.Const)).Block(
						jen.Id("bs").Op("=").Append(jen.Id("bs"), jen.Add(binding).Values(jen.Dict{
							jen.Id("Column"): jen.Id(c.Const),
							jen.Id("Value"):  c.Mapping.Write(jen.Id("e").Dot(c.Getter()).Call()),
						})),
					)
				}
				grp.Default().Block(
					jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit(t.Package+": unknown field %q"), jen.Id("name"))),
				)
			}),
		),
		jen.Return(jen.Id("bs"), jen.Nil()),
	)

	f.Comment("Present implements storage.Relation. It reports the fields set on e, in catalog order.")
	f.Func().Add(recv).Id("Present").Params(jen.Id("e").Add(ent)).Index().String().Block(
		jen.Id("m").Op(":=").Id("e").Dot("ProtoReflect").Call(),
		jen.Id("fds").Op(":=").Id("m").Dot("Descriptor").Call().Dot("Fields").Call(),
		jen.Var().Id("present").Index().String(),
		jen.For(jen.List(jen.Id("_"), jen.Id("name")).Op(":=").Range().Id(t.Idents.Columns)).Block(
			jen.If(jen.Id("m").Dot("Has").Call(jen.Id("fds").Dot("ByName").Call(jen.Qual(protoreflPkg, "Name").Call(jen.Id("name"))))).Block(
				jen.Id("present").Op("=").Append(jen.Id("present"), jen.Id("name")),
			),
		),
		jen.Return(jen.Id("present")),
	)
}
