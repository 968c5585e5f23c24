package sql

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/pgproto/compiler/gen"
)

// genStorage generates the storage wiring of a table ({table}/storage.go).
func genStorage(h gen.GeneratorHelper, t *gen.Type) *jen.File {
	f := h.NewFile(t.Package)
	id := t.Idents
	ent := entity(h, t)
	drv := jen.Id("drv").Qual(h.SQLPkg(), "Driver")
	opts := jen.Id("opts").Op("...").Qual(h.StoragePkg(), "Option")

	f.Commentf("%s returns the table-bound storage of %s entities.", id.NewStorage, t.Name)
	f.Func().Id(id.NewStorage).Params(drv, opts).Op("*").Qual(h.StoragePkg(), "Table").Types(ent).Block(
		jen.Id("opts").Op("=").Append(
			jen.Index().Qual(h.StoragePkg(), "Option").Values(jen.Qual(h.StoragePkg(), "WithLabel").Call(jen.Id(id.Label))),
			jen.Id("opts").Op("..."),
		),
		jen.Return(jen.Qual(h.StoragePkg(), "NewTable").Types(ent).Call(jen.Id(id.Relation).Values(), jen.Id("drv"), jen.Id("opts").Op("..."))),
	)

	f.Commentf("%s binds the %s storage in the registry.", id.Register, t.Name)
	f.Func().Id(id.Register).Params(jen.Id("r").Op("*").Qual(h.StoragePkg(), "Registry"), drv, opts).Error().Block(
		jen.Return(jen.Qual(h.StoragePkg(), "Provide").Types(ent).Call(
			jen.Id("r"),
			jen.Id(id.NewStorage).Call(jen.Id("drv"), jen.Id("opts").Op("...")),
		)),
	)

	f.Commentf("%s collects every %s entity matched by q.", id.Collect, t.Name)
	f.Func().Id(id.Collect).Params(
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("s").Qual(h.StoragePkg(), "Storage").Types(ent),
		jen.Id("q").Op("*").Qual(h.SQLPkg(), "SelectBuilder"),
	).Params(jen.Index().Add(ent), jen.Error()).Block(
		jen.Var().Id("out").Index().Add(ent),
		jen.For(jen.List(jen.Id("e"), jen.Err()).Op(":=").Range().Id("s").Dot("Query").Call(jen.Id("ctx"), jen.Id("q"))).Block(
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.Id("out").Op("=").Append(jen.Id("out"), jen.Id("e")),
		),
		jen.Return(jen.Id("out"), jen.Nil()),
	)
	return f
}
