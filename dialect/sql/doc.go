// Package sql is the query builder runtime used by generated relation code
// and directly by request handlers.
//
// # Builders
//
// Statements are assembled from immutable builders. Every builder method
// returns a modified copy, so a statement shared by reference is never
// changed:
//
//	sel := sql.Select(sql.Col("id"), sql.Col("name")).
//	    From(sql.Table("person").As("t")).
//	    Where(sql.Qualifier("by_name", "t", "Ann")).
//	    OrderBy(sql.Col("name"), sql.Asc).
//	    Limit(10).
//	    Offset(0)
//	text, params := sel.Query()
//	// select "id", "name" from "person" as t where by_name(t, :p_0) order by "name" asc limit 10 offset 0
//	// params: map[p_0:Ann]
//
// Clauses whose input is empty are omitted. An empty select list renders no
// column clause at all; Wildcard renders as *.
//
// # Parameters
//
// Qualifier and derived field arguments are never inlined. Each is bound
// under a generated name p_0, p_1, ... taken from a counter shared by the
// whole statement, and returned in the parameter map. Positional converts
// the named markers into $n placeholders for execution.
//
// Filter values are rendered as escaped inline literals. Filters are meant
// for server-constructed conditions only; request data belongs in qualifiers.
//
// # Execution
//
// Conn executes statements over a *sql.DB, *sql.Conn or *sql.Tx and returns
// Rows whose current row is read through a Record. StatsDriver and
// DebugDriver decorate any Driver with counters and logging.
package sql
