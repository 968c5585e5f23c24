package sql

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/pgproto/compiler/gen"
)

// genService generates the CRUD service scaffold of a table ({table}/service.go).
func genService(h gen.GeneratorHelper, t *gen.Type) *jen.File {
	f := h.NewFile(t.Package)
	genHooks(h, f, t)
	genServiceType(h, f, t)
	genCreate(h, f, t)
	genGet(h, f, t)
	genUpdate(h, f, t)
	genDelete(h, f, t)
	genList(h, f, t)
	genQuery(h, f, t)
	genID(h, f, t)
	genEntity(h, f, t)
	genValidators(h, f, t)
	return f
}

func validator(h gen.GeneratorHelper, m jen.Code) *jen.Statement {
	return jen.Qual(h.CrudPkg(), "Validator").Types(m)
}

func genHooks(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Commentf("%s customize the generated %s service. Nil hooks are skipped.", t.Idents.Hooks, t.Name)
	f.Type().Id(t.Idents.Hooks).Struct(
		jen.Comment("PreSave adjusts the entity of a create or update request before it is validated."),
		jen.Id("PreSave").Func().Params(jen.Qual("context", "Context"), entity(h, t)).Params(entity(h, t), jen.Error()),
		jen.Comment("Request validators, run after the built-in checks of each shape."),
		jen.Id("ValidateList").Add(validator(h, pbType(h, t.Request("List")))),
		jen.Id("ValidateCreate").Add(validator(h, pbType(h, t.Request("Create")))),
		jen.Id("ValidateUpdate").Add(validator(h, pbType(h, t.Request("Update")))),
		jen.Id("ValidateDelete").Add(validator(h, pbType(h, t.Request("Delete")))),
		jen.Comment("ValidateEntity validates the entity of create and update requests."),
		jen.Id("ValidateEntity").Add(validator(h, entity(h, t))),
	)
}

func genServiceType(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	id := t.Idents
	store := jen.Qual(h.StoragePkg(), "Storage").Types(entity(h, t))
	f.Commentf("%s implements pb.%sServer over a %s storage.", id.Service, t.ServiceName(), t.Name)
	f.Type().Id(id.Service).Struct(
		jen.Qual(h.PBPkg(), "Unimplemented"+t.ServiceName()+"Server"),
		jen.Line(),
		jen.Id("Storage").Add(store),
		jen.Id("Policy").Qual(h.PrivacyPkg(), "Policy"),
		jen.Id("Hooks").Id(id.Hooks),
		jen.Id("Log").Op("*").Qual(zapPkg, "Logger"),
		jen.Comment("ViewerSetting, when set, names the session setting carrying the"),
		jen.Comment("request viewer id to row level security policies."),
		jen.Id("ViewerSetting").String(),
	)
	f.Var().Id("_").Qual(h.PBPkg(), t.ServiceName()+"Server").Op("=").Parens(jen.Op("*").Id(id.Service)).Parens(jen.Nil())

	f.Commentf("%s returns a service over the storage. A nil policy allows every operation.", id.NewService)
	f.Func().Id(id.NewService).Params(jen.Id("store").Add(store), jen.Id("policy").Qual(h.PrivacyPkg(), "Policy")).Op("*").Id(id.Service).Block(
		jen.Return(jen.Op("&").Id(id.Service).Values(jen.Dict{
			jen.Id("Storage"): jen.Id("store"),
			jen.Id("Policy"):  jen.Id("policy"),
			jen.Id("Log"):     jen.Qual(zapPkg, "NewNop").Call(),
		})),
	)

	f.Func().Params(jen.Id("s").Op("*").Id(id.Service)).Id("handler").Params().Op("*").Qual(h.CrudPkg(), "Handler").Types(entity(h, t)).Block(
		jen.Return(jen.Op("&").Qual(h.CrudPkg(), "Handler").Types(entity(h, t)).Values(jen.Dict{
			jen.Id("Entity"):   jen.Id(id.Label),
			jen.Id("Relation"): jen.Id(id.Relation).Values(),
			jen.Id("Storage"):  jen.Id("s").Dot("Storage"),
			jen.Id("Policy"):   jen.Id("s").Dot("Policy"),
			jen.Id("Log"):           jen.Id("s").Dot("Log"),
			jen.Id("ViewerSetting"): jen.Id("s").Dot("ViewerSetting"),
		})),
	)
}

// method adds a method of the service to the file and returns its statement.
func method(f *jen.File, t *gen.Type, verb string) *jen.Statement {
	return f.Func().Params(jen.Id("s").Op("*").Id(t.Idents.Service)).Id(verb)
}

// status returns the statement converting err at the RPC boundary.
func status(h gen.GeneratorHelper) *jen.Statement {
	return jen.Qual(h.CrudPkg(), "Status").Call(jen.Id("s").Dot("Log"), jen.Err())
}

// prepare returns the closure extracting and validating the request entity.
func prepare(h gen.GeneratorHelper, t *gen.Type, validate string) *jen.Statement {
	return jen.Func().Params(jen.Id("ctx").Qual("context", "Context")).Params(entity(h, t), jen.Error()).Block(
		jen.List(jen.Id("e"), jen.Err()).Op(":=").Id("s").Dot("Entity").Call(jen.Id("ctx"), jen.Id("req")),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
		jen.Return(jen.Id("e"), jen.Id("s").Dot(validate).Call(jen.Id("ctx"), jen.Id("req"), jen.Id("e"))),
	)
}

// where returns the statements collecting the qualifier predicates of an
// Update or Delete request into the where variable.
func where(h gen.GeneratorHelper, t *gen.Type, goName func(*gen.Qualifier) string) []jen.Code {
	if !t.HasQualifiers() {
		return nil
	}
	codes := []jen.Code{jen.Var().Id("where").Index().Qual(h.SQLPkg(), "Predicate")}
	for _, q := range t.Qualifiers {
		codes = append(codes, jen.Id("where").Op("=").Append(jen.Id("where"), jen.Id(q.Extract).Call(jen.Id("req").Dot("Get"+goName(q)).Call()).Op("...")))
	}
	return codes
}

// stmts adds each code item to the group as its own statement.
func stmts(grp *jen.Group, codes []jen.Code) {
	for _, c := range codes {
		grp.Add(c)
	}
}

func whereArg(t *gen.Type) []jen.Code {
	if !t.HasQualifiers() {
		return nil
	}
	return []jen.Code{jen.Id("where").Op("...")}
}

func idStmt(h gen.GeneratorHelper) []jen.Code {
	return []jen.Code{
		jen.List(jen.Id("id"), jen.Err()).Op(":=").Id("s").Dot("ID").Call(jen.Id("req")),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), status(h))),
	}
}

func genCreate(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Commentf("Create implements pb.%sServer.", t.ServiceName())
	method(f, t, "Create").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request("Create")))).Params(pbType(h, t.Response("Create")), jen.Error()).Block(
		jen.List(jen.Id("e"), jen.Err()).Op(":=").Qual(h.CrudPkg(), "Create").Call(jen.Id("ctx"), jen.Id("s").Dot("handler").Call(), jen.Id("req"), prepare(h, t, "ValidateCreate")),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), status(h))),
		jen.Return(jen.Op("&").Qual(h.PBPkg(), t.Response("Create")).Values(jen.Dict{jen.Id("Entity"): jen.Id("e")}), jen.Nil()),
	)
}

func genGet(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Commentf("Get implements pb.%sServer.", t.ServiceName())
	method(f, t, "Get").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request("Get")))).Params(pbType(h, t.Response("Get")), jen.Error()).BlockFunc(func(grp *jen.Group) {
		stmts(grp, idStmt(h))
		grp.List(jen.Id("e"), jen.Err()).Op(":=").Qual(h.CrudPkg(), "Get").Call(jen.Id("ctx"), jen.Id("s").Dot("handler").Call(), jen.Id("req"), jen.Id("id"))
		grp.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), status(h)))
		grp.Return(jen.Op("&").Qual(h.PBPkg(), t.Response("Get")).Values(jen.Dict{jen.Id("Entity"): jen.Id("e")}), jen.Nil())
	})
}

func genUpdate(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Commentf("Update implements pb.%sServer. Sparse requests only write the fields set on the entity.", t.ServiceName())
	method(f, t, "Update").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request("Update")))).Params(pbType(h, t.Response("Update")), jen.Error()).BlockFunc(func(grp *jen.Group) {
		stmts(grp, idStmt(h))
		stmts(grp, where(h, t, func(q *gen.Qualifier) string { return q.UpdateGoName }))
		call := append([]jen.Code{
			jen.Id("ctx"), jen.Id("s").Dot("handler").Call(), jen.Id("req"), jen.Id("id"),
			prepare(h, t, "ValidateUpdate"),
			jen.Id("req").Dot("GetSparse").Call(),
		}, whereArg(t)...)
		grp.List(jen.Id("e"), jen.Err()).Op(":=").Qual(h.CrudPkg(), "Update").Call(call...)
		grp.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), status(h)))
		grp.Return(jen.Op("&").Qual(h.PBPkg(), t.Response("Update")).Values(jen.Dict{jen.Id("Entity"): jen.Id("e")}), jen.Nil())
	})
}

func genDelete(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Commentf("Delete implements pb.%sServer.", t.ServiceName())
	method(f, t, "Delete").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request("Delete")))).Params(pbType(h, t.Response("Delete")), jen.Error()).BlockFunc(func(grp *jen.Group) {
		stmts(grp, idStmt(h))
		stmts(grp, where(h, t, func(q *gen.Qualifier) string { return q.DeleteGoName }))
		check := jen.Func().Params(jen.Id("ctx").Qual("context", "Context")).Error().Block(
			jen.Return(jen.Id("s").Dot("ValidateDelete").Call(jen.Id("ctx"), jen.Id("req"))),
		)
		call := append([]jen.Code{jen.Id("ctx"), jen.Id("s").Dot("handler").Call(), jen.Id("req"), jen.Id("id"), check}, whereArg(t)...)
		grp.If(jen.Err().Op(":=").Qual(h.CrudPkg(), "Delete").Call(call...), jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), status(h)))
		grp.Return(jen.Op("&").Qual(h.PBPkg(), t.Response("Delete")).Values(), jen.Nil())
	})
}

func genList(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	resp := jen.Qual(h.PBPkg(), t.Response("List"))
	f.Commentf("List implements pb.%sServer. Entities are streamed in storage order.", t.ServiceName())
	method(f, t, "List").Params(
		jen.Id("req").Add(pbType(h, t.Request("List"))),
		jen.Id("stream").Qual(grpcPkg, "ServerStreamingServer").Types(resp),
	).Error().Block(
		jen.Id("check").Op(":=").Func().Params(jen.Id("ctx").Qual("context", "Context")).Error().Block(
			jen.Return(jen.Id("s").Dot("ValidateList").Call(jen.Id("ctx"), jen.Id("req"))),
		),
		jen.Id("wrap").Op(":=").Func().Params(jen.Id("e").Add(entity(h, t))).Op("*").Add(resp).Block(
			jen.Return(jen.Op("&").Add(resp).Values(jen.Dict{jen.Id("Entity"): jen.Id("e")})),
		),
		jen.Err().Op(":=").Qual(h.CrudPkg(), "List").Call(
			jen.Id("stream").Dot("Context").Call(), jen.Id("s").Dot("handler").Call(), jen.Id("req"),
			jen.Id("check"), jen.Id("s").Dot("Query").Call(jen.Id("req")), jen.Id("stream"), jen.Id("wrap"),
		),
		jen.Return(status(h)),
	)
}

func genQuery(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Comment("Query returns the select of a List request: every row of the table,")
	f.Comment("paged by limit and offset and filtered by the requested qualifiers.")
	f.Comment("A zero limit selects every row.")
	method(f, t, "Query").Params(jen.Id("req").Add(pbType(h, t.Request("List")))).Op("*").Qual(h.SQLPkg(), "SelectBuilder").BlockFunc(func(grp *jen.Group) {
		grp.Id("q").Op(":=").Qual(h.SQLPkg(), "Select").Call().Dot("From").Call(jen.Id(t.Idents.Table))
		grp.If(jen.Id("n").Op(":=").Id("req").Dot("Get"+t.LimitGoName).Call(), jen.Id("n").Op(">").Lit(0)).Block(
			jen.Id("q").Op("=").Id("q").Dot("Limit").Call(jen.Int().Call(jen.Id("n"))),
		)
		grp.Id("q").Op("=").Id("q").Dot("Offset").Call(jen.Int().Call(jen.Id("req").Dot("Get" + t.OffsetGoName).Call()))
		for _, q := range t.Qualifiers {
			grp.Id("q").Op("=").Id("q").Dot("Where").Call(jen.Id(q.Extract).Call(jen.Id("req").Dot("Get" + q.ListGoName).Call()).Op("..."))
		}
		grp.Return(jen.Id("q"))
	})
}

func genID(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Comment("ID returns the bindable row identifier of a Get, Update or Delete request.")
	method(f, t, "ID").Params(jen.Id("req").Qual(protoPkg, "Message")).Params(jen.Any(), jen.Error()).Block(
		jen.Switch(jen.Id("req").Op(":=").Id("req").Assert(jen.Type())).BlockFunc(func(grp *jen.Group) {
			for _, verb := range []string{"Get", "Update", "Delete"} {
				grp.Case(pbType(h, t.Request(verb))).Block(
					jen.Return(t.ID.Mapping.Write(jen.Id("req").Dot("GetId").Call()), jen.Nil()),
				)
			}
			grp.Default().Block(
				jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit(t.Package+": no identifier in %T"), jen.Id("req"))),
			)
		}),
	)
}

func genEntity(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	f.Comment("Entity returns the entity of a Create or Update request, passed through")
	f.Comment("the PreSave hook.")
	method(f, t, "Entity").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Qual(protoPkg, "Message")).Params(entity(h, t), jen.Error()).Block(
		jen.Var().Id("e").Add(entity(h, t)),
		jen.Switch(jen.Id("req").Op(":=").Id("req").Assert(jen.Type())).BlockFunc(func(grp *jen.Group) {
			for _, verb := range []string{"Create", "Update"} {
				grp.Case(pbType(h, t.Request(verb))).Block(
					jen.Id("e").Op("=").Id("req").Dot("GetEntity").Call(),
				)
			}
			grp.Default().Block(
				jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit(t.Package+": no entity in %T"), jen.Id("req"))),
			)
		}),
		jen.If(jen.Id("e").Op("==").Nil()).Block(
			jen.Return(jen.Nil(), jen.Qual(h.RootPkg(), "NewValidationError").Call(shapeName(jen.Id("req")), jen.Lit("entity is required"))),
		),
		jen.If(jen.Id("s").Dot("Hooks").Dot("PreSave").Op("!=").Nil()).Block(
			jen.Return(jen.Id("s").Dot("Hooks").Dot("PreSave").Call(jen.Id("ctx"), jen.Id("e"))),
		),
		jen.Return(jen.Id("e"), jen.Nil()),
	)
}

func genValidators(h gen.GeneratorHelper, f *jen.File, t *gen.Type) {
	result := func(grp *jen.Group) {
		grp.Id("res").Op(":=").Qual(h.ValidatePkg(), "New").Call(shapeName(jen.Id("req")))
	}
	into := func(v, hook string) *jen.Statement {
		return jen.Qual(h.CrudPkg(), "Into").Call(jen.Id("ctx"), jen.Id("res"), jen.Id(v), jen.Id("s").Dot("Hooks").Dot(hook))
	}

	f.Comment("ValidateList validates a List request.")
	method(f, t, "ValidateList").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request("List")))).Error().BlockFunc(func(grp *jen.Group) {
		result(grp)
		grp.Id("res").Dot("Check").Call(jen.Id("req").Dot("Get"+t.LimitGoName).Call().Op(">=").Lit(0), jen.Lit("limit must not be negative"))
		grp.Id("res").Dot("Check").Call(jen.Id("req").Dot("Get"+t.OffsetGoName).Call().Op(">=").Lit(0), jen.Lit("offset must not be negative"))
		grp.Add(into("req", "ValidateList"))
		grp.Return(jen.Id("res").Dot("Err").Call())
	})

	for _, verb := range []string{"Create", "Update"} {
		f.Commentf("Validate%s validates a %s request and its entity.", verb, verb)
		method(f, t, "Validate"+verb).Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request(verb))), jen.Id("e").Add(entity(h, t))).Error().BlockFunc(func(grp *jen.Group) {
			result(grp)
			grp.Add(into("req", "Validate"+verb))
			grp.Add(into("e", "ValidateEntity"))
			grp.Return(jen.Id("res").Dot("Err").Call())
		})
	}

	f.Comment("ValidateDelete validates a Delete request.")
	method(f, t, "ValidateDelete").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("req").Add(pbType(h, t.Request("Delete")))).Error().BlockFunc(func(grp *jen.Group) {
		result(grp)
		grp.Add(into("req", "ValidateDelete"))
		grp.Return(jen.Id("res").Dot("Err").Call())
	})
}
