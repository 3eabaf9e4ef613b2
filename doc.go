// Package portalAuth is the access-control core of the DVSS-PPA admin
// console: it owns the signed-in session and answers who may see what.
//
// A [Manager], assembled through [Builder.Build], logs in against the
// primary API, refreshes and clears the session, and mirrors it into a
// session.Storage so that a restarted console resumes where it left off.
// Callers take immutable snapshots ([Manager.Snapshot]) and pass them to
// the guard package for navigation decisions and to the fields package for
// record projection.
//
// # Architecture boundaries
//
// portalAuth owns session transitions and the [AuthError] taxonomy. The
// wire protocol lives in authclient, route tables in guard, persistence
// formats in session and the role/permission model in permission.
//
// # What this package must NOT do
//
//   - Log or audit tokens and passwords.
//   - Leave a torn session behind: token, user, roles and permissions are
//     persisted and cleared together.
//   - Import authclient or middleware (they import portalAuth).
package portalAuth
