// Package session models the operator session and its durable persistence.
//
// # Session model
//
// [State] has two variants: [Anonymous] and [*Active]. An Active session
// always carries a non-empty token and a valid [User]; there is no way to
// build one without both, so "token without user" cannot grant access.
//
// # Persistence
//
// [Encode] renders a session into one [Batch] over the fixed keys in [Keys];
// [Decode] rebuilds it and reports [ErrNoSession] or [ErrMalformed]. Every
// [Storage] applies a Batch atomically:
//
//   - [MemoryStorage] — mutex-guarded map.
//   - [FileStorage] — JSON document replaced by rename, optionally sealed.
//   - [RedisStorage] — MULTI/EXEC transaction under a key prefix.
//
// # Architecture boundaries
//
// This package owns the session value and its storage layout. It does NOT
// talk to the authentication API, decide navigation, or filter records.
//
// # What this package must NOT do
//
//   - Import portalAuth, guard, fields or authclient (no upward imports).
//   - Log or otherwise expose token values.
package session
