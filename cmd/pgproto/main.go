// Command pgproto introspects PostgreSQL tables and generates their protobuf
// IDL, query-builder runtime and service scaffolding.
//
// Usage:
//
//	pgproto <out-dir> <namespace> <selection.json> <descriptor-set-out>
//
// The connection is read from DATABASE_URL, or from the libpq PG* variables
// (PGHOST, PGPORT, PGUSER, PGDATABASE, ...) when DATABASE_URL is unset.
// PGPROTO_LOG_LEVEL sets the log level (debug, info, warn, error).
package main

import (
	"os"
)

func main() {
	os.Exit(execute(newRootCmd(defaultEnv()), os.Stderr))
}
