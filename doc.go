// Package pgproto holds the request-time error taxonomy shared by the
// storage, crud and generated service packages.
//
// The code generator lives under compiler/, the query builder runtime under
// dialect/sql and the pgproto command under cmd/pgproto.
//
// Errors are matched with errors.Is against the sentinels or with the Is*
// helpers:
//
//	if pgproto.IsNotFound(err) {
//		...
//	}
package pgproto
