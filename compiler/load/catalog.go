// Package load reads the PostgreSQL system catalog into the descriptor model.
//
// An Inspector resolves a Selection of schemas and tables into
// []*schema.Schema. Schemas are checked sequentially; tables are then
// introspected concurrently and placed back in selection order.
package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/pgproto/schema"
)

// Querier is the subset of *sql.DB the inspector needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Inspector introspects selected tables from the catalog.
type Inspector struct {
	db      Querier
	log     *zap.Logger
	workers int
}

// NewInspector returns an Inspector reading through db.
func NewInspector(db Querier, opts ...Option) (*Inspector, error) {
	if db == nil {
		return nil, fmt.Errorf("pgproto/load: nil querier")
	}
	i := &Inspector{db: db, log: zap.NewNop(), workers: defaultWorkers()}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Catalog queries. Every query is a plain read of pg_catalog.
const (
	schemaExistsQuery = `select exists (select 1 from pg_catalog.pg_namespace where nspname = $1)`

	relationQuery = `select c.oid, c.reltype
from pg_catalog.pg_class c
join pg_catalog.pg_namespace n on n.oid = c.relnamespace
where n.nspname = $1 and c.relname = $2 and c.relkind in ('r', 'p', 'v', 'm')`

	columnsQuery = `select a.attname, a.attnum, a.atttypid, t.typname, tn.nspname, t.typtype, t.typbasetype,
  exists (
    select 1 from pg_catalog.pg_index i
    where i.indrelid = a.attrelid and i.indisprimary and a.attnum = any(i.indkey)
  ) as primary_key
from pg_catalog.pg_attribute a
join pg_catalog.pg_type t on t.oid = a.atttypid
join pg_catalog.pg_namespace tn on tn.oid = t.typnamespace
where a.attrelid = $1 and a.attnum > 0 and not a.attisdropped
order by a.attnum`

	functionsQuery = `select p.proname, n.nspname, p.prorettype, p.proretset,
  rt.typname, rn.nspname, rt.typtype, rt.typrelid,
  p.proargtypes::oid[], p.proallargtypes, p.proargmodes::text[], p.proargnames
from pg_catalog.pg_proc p
join pg_catalog.pg_namespace n on n.oid = p.pronamespace
join pg_catalog.pg_type rt on rt.oid = p.prorettype
join pg_catalog.pg_namespace rn on rn.oid = rt.typnamespace
where p.pronargs >= 1 and p.proargtypes[0] = $1 and p.prokind = 'f'
order by n.nspname, p.proname, p.oid`

	attributesQuery = `select a.attname, a.atttypid
from pg_catalog.pg_attribute a
where a.attrelid = $1 and a.attnum > 0 and not a.attisdropped
order by a.attnum`

	typesQuery = `select t.oid, t.typname, n.nspname, t.typtype, t.typbasetype
from pg_catalog.pg_type t
join pg_catalog.pg_namespace n on n.oid = t.typnamespace
where t.oid = any($1)`
)

const (
	boolOID     = 16
	catalogNS   = "pg_catalog"
	kindDomain  = "d"
	kindComp    = "c"
	kindPseudo  = "p"
	maxTypeHops = 32
)

// Inspect loads every selected table. The result follows selection order.
// The first failure cancels outstanding work and is returned.
func (i *Inspector) Inspect(ctx context.Context, sel Selection) ([]*schema.Schema, error) {
	if len(sel) == 0 {
		return nil, &SelectionError{Message: "no schemas selected"}
	}
	for _, ss := range sel {
		if err := i.schemaExists(ctx, ss.Schema); err != nil {
			return nil, err
		}
		i.log.Debug("schema found", zap.String("schema", ss.Schema), zap.Int("tables", len(ss.Tables)))
	}
	slots := make([][]*schema.Table, len(sel))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for si, ss := range sel {
		slots[si] = make([]*schema.Table, len(ss.Tables))
		for ti, name := range ss.Tables {
			g.Go(func() error {
				t, err := i.inspectTable(gctx, ss.Schema, name)
				if err != nil {
					return err
				}
				slots[si][ti] = t
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	schemas := make([]*schema.Schema, 0, len(sel))
	for si, ss := range sel {
		s, err := schema.NewSchema(ss.Schema, slots[si]...)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func (i *Inspector) schemaExists(ctx context.Context, name string) error {
	var ok bool
	if err := queryRow(ctx, i.db, schemaExistsQuery, []any{name}, &ok); err != nil {
		return &CatalogError{Schema: name, Query: "namespace", Err: err}
	}
	if !ok {
		return &SchemaNotFoundError{Schema: name}
	}
	return nil
}

// inspectTable reads one relation with its columns and row-typed functions.
func (i *Inspector) inspectTable(ctx context.Context, schemaName, name string) (*schema.Table, error) {
	fail := func(query string, err error) error {
		return &CatalogError{Schema: schemaName, Table: name, Query: query, Err: err}
	}
	var relOID, rowType int64
	err := queryRow(ctx, i.db, relationQuery, []any{schemaName, name}, &relOID, &rowType)
	switch {
	case err == sql.ErrNoRows:
		return nil, &TableNotFoundError{Schema: schemaName, Table: name}
	case err != nil:
		return nil, fail("relation", err)
	}
	types := make(typeCache)
	columns, err := i.columns(ctx, relOID, types)
	if err != nil {
		return nil, fail("columns", err)
	}
	procs, err := i.functions(ctx, rowType)
	if err != nil {
		return nil, fail("functions", err)
	}
	var (
		qualifiers []*schema.Qualifier
		functions  []*schema.Function
		wanted     []int64
	)
	for _, p := range procs {
		if p.retKind == kindComp && len(p.outputs()) == 0 {
			attrs, err := i.attributes(ctx, p.retRel)
			if err != nil {
				return nil, fail("return type of "+p.name, err)
			}
			p.composite = attrs
		}
		wanted = append(wanted, p.typeOIDs()...)
	}
	if err := types.resolve(ctx, i.db, wanted); err != nil {
		return nil, fail("types", err)
	}
	for _, p := range procs {
		q, f, err := p.build(types)
		if err != nil {
			return nil, err
		}
		if q != nil {
			qualifiers = append(qualifiers, q)
		}
		if f != nil {
			functions = append(functions, f)
		}
	}
	t, err := schema.NewTable(schemaName, name, columns, qualifiers, functions)
	if err != nil {
		return nil, err
	}
	i.log.Debug("table introspected",
		zap.String("schema", schemaName),
		zap.String("table", name),
		zap.Int("columns", len(columns)),
		zap.Int("qualifiers", len(qualifiers)),
		zap.Int("functions", len(functions)),
	)
	return t, nil
}

func (i *Inspector) columns(ctx context.Context, relOID int64, types typeCache) ([]*schema.Column, error) {
	rows, err := i.db.QueryContext(ctx, columnsQuery, relOID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	type pending struct {
		name    string
		typeOID int64
		pk      bool
		pos     int
	}
	var (
		list  []pending
		bases []int64
	)
	for rows.Next() {
		var (
			p  pending
			ti typeInfo
		)
		if err := rows.Scan(&p.name, &p.pos, &p.typeOID, &ti.name, &ti.schema, &ti.kind, &ti.base, &p.pk); err != nil {
			return nil, err
		}
		types[p.typeOID] = ti
		if ti.kind == kindDomain {
			bases = append(bases, ti.base)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := types.resolve(ctx, i.db, bases); err != nil {
		return nil, err
	}
	columns := make([]*schema.Column, 0, len(list))
	for _, p := range list {
		native, err := types.native(p.typeOID)
		if err != nil {
			return nil, err
		}
		opts := []schema.ColumnOption{schema.Position(p.pos)}
		if p.pk {
			opts = append(opts, schema.PrimaryKeyPart())
		}
		c, err := schema.NewColumn(p.name, native, opts...)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, nil
}

func (i *Inspector) functions(ctx context.Context, rowType int64) ([]*proc, error) {
	rows, err := i.db.QueryContext(ctx, functionsQuery, rowType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var procs []*proc
	for rows.Next() {
		p := &proc{}
		if err := rows.Scan(
			&p.name, &p.schema, &p.retType, &p.retSet,
			&p.retName, &p.retSchema, &p.retKind, &p.retRel,
			&p.inTypes, &p.allTypes, &p.modes, &p.names,
		); err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, rows.Err()
}

func (i *Inspector) attributes(ctx context.Context, relOID int64) ([]arg, error) {
	rows, err := i.db.QueryContext(ctx, attributesQuery, relOID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attrs []arg
	for rows.Next() {
		var a arg
		if err := rows.Scan(&a.name, &a.typeOID); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

// proc is a pg_proc row whose first argument is a table row type.
type proc struct {
	name, schema       string
	retType            int64
	retSet             bool
	retName, retSchema string
	retKind            string
	retRel             int64
	inTypes            pq.Int64Array
	allTypes           pq.Int64Array
	modes              pq.StringArray
	names              pq.StringArray
	composite          []arg
}

type arg struct {
	name    string
	typeOID int64
}

// inputs returns the input arguments, the row argument included.
func (p *proc) inputs() []arg {
	if len(p.allTypes) == 0 {
		args := make([]arg, len(p.inTypes))
		for n, oid := range p.inTypes {
			args[n] = arg{name: p.argName(n), typeOID: oid}
		}
		return args
	}
	var args []arg
	for n, oid := range p.allTypes {
		switch p.mode(n) {
		case "i", "b", "v":
			args = append(args, arg{name: p.argName(n), typeOID: oid})
		}
	}
	return args
}

// outputs returns the OUT, INOUT and TABLE arguments.
func (p *proc) outputs() []arg {
	var args []arg
	for n, oid := range p.allTypes {
		switch p.mode(n) {
		case "o", "b", "t":
			args = append(args, arg{name: p.argName(n), typeOID: oid})
		}
	}
	return args
}

func (p *proc) mode(n int) string {
	if n < len(p.modes) {
		return p.modes[n]
	}
	return "i"
}

func (p *proc) argName(n int) string {
	if n < len(p.names) && p.names[n] != "" {
		return p.names[n]
	}
	return fmt.Sprintf("arg_%d", n+1)
}

func (p *proc) isQualifier() bool {
	return p.retType == boolOID && !p.retSet && len(p.outputs()) == 0
}

// returns lists the result columns of a derived field.
func (p *proc) returns() []arg {
	if out := p.outputs(); len(out) > 0 {
		return out
	}
	if p.retKind == kindComp {
		return p.composite
	}
	return []arg{{name: p.name, typeOID: p.retType}}
}

func (p *proc) isComposite() bool {
	if len(p.outputs()) > 0 {
		return p.retKind == kindPseudo || p.retKind == kindComp || len(p.outputs()) > 1
	}
	return p.retKind == kindComp
}

func (p *proc) typeOIDs() []int64 {
	var oids []int64
	for _, a := range p.inputs()[1:] {
		oids = append(oids, a.typeOID)
	}
	if !p.isQualifier() {
		for _, a := range p.returns() {
			oids = append(oids, a.typeOID)
		}
	}
	return oids
}

// build converts the row into a qualifier or a derived field.
func (p *proc) build(types typeCache) (*schema.Qualifier, *schema.Function, error) {
	params, err := types.params(p.inputs()[1:])
	if err != nil {
		return nil, nil, err
	}
	if p.isQualifier() {
		q, err := schema.NewQualifier(p.schema, p.name, params...)
		return q, nil, err
	}
	returns, err := types.params(p.returns())
	if err != nil {
		return nil, nil, err
	}
	var opts []schema.FunctionOption
	if p.isComposite() {
		opts = append(opts, schema.ReturnsComposite(nativeName(p.retSchema, p.retName)))
	}
	if p.retSet {
		opts = append(opts, schema.ReturnsSet())
	}
	f, err := schema.NewFunction(p.schema, p.name, params, returns, opts...)
	return nil, f, err
}

type typeInfo struct {
	name, schema, kind string
	base               int64
}

// typeCache holds pg_type rows keyed by oid for one table.
type typeCache map[int64]typeInfo

// resolve loads the given types and, transitively, the base types of domains.
func (c typeCache) resolve(ctx context.Context, db Querier, oids []int64) error {
	for hop := 0; ; hop++ {
		var missing []int64
		seen := make(map[int64]struct{})
		for _, oid := range oids {
			if _, ok := c[oid]; ok {
				continue
			}
			if _, ok := seen[oid]; !ok {
				seen[oid] = struct{}{}
				missing = append(missing, oid)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		if hop == maxTypeHops {
			return fmt.Errorf("domain chain deeper than %d", maxTypeHops)
		}
		rows, err := db.QueryContext(ctx, typesQuery, pq.Array(missing))
		if err != nil {
			return err
		}
		oids = nil
		for rows.Next() {
			var (
				oid int64
				ti  typeInfo
			)
			if err := rows.Scan(&oid, &ti.name, &ti.schema, &ti.kind, &ti.base); err != nil {
				rows.Close()
				return err
			}
			c[oid] = ti
			if ti.kind == kindDomain {
				oids = append(oids, ti.base)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
		for _, oid := range missing {
			if _, ok := c[oid]; !ok {
				return fmt.Errorf("type oid %d not found", oid)
			}
		}
	}
}

// native returns the native type name of oid with domains resolved.
func (c typeCache) native(oid int64) (string, error) {
	for hop := 0; hop <= maxTypeHops; hop++ {
		ti, ok := c[oid]
		if !ok {
			return "", fmt.Errorf("type oid %d not loaded", oid)
		}
		if ti.kind != kindDomain {
			return nativeName(ti.schema, ti.name), nil
		}
		oid = ti.base
	}
	return "", fmt.Errorf("domain chain deeper than %d", maxTypeHops)
}

func (c typeCache) params(args []arg) ([]*schema.Parameter, error) {
	params := make([]*schema.Parameter, 0, len(args))
	for _, a := range args {
		native, err := c.native(a.typeOID)
		if err != nil {
			return nil, err
		}
		p, err := schema.NewParameter(a.name, native)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// nativeName qualifies types outside pg_catalog with their schema.
func nativeName(schemaName, name string) string {
	if schemaName == "" || schemaName == catalogNS {
		return name
	}
	return schemaName + "." + name
}

// queryRow scans a single row, returning sql.ErrNoRows when none matched.
func queryRow(ctx context.Context, db Querier, query string, args []any, dest ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return rows.Close()
}
