// Package permission defines the console's closed role enumeration, the
// permission-tag set carried by a session, and the catalog of permission tags
// route tables may reference.
//
// # Roles
//
// [Role] is a closed enumeration. [ParseRole] and the text unmarshaler reject
// tags outside it, so a misspelled role fails when a session or route table is
// decoded instead of silently failing every check afterwards.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The session
// package stores values of these types; the guard and fields packages read
// them.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import portalAuth, session, guard or fields.
//   - Grant permissions implicitly (no wildcard tags, no role-derived tags).
package permission
