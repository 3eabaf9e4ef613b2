// Package guard decides, for every console navigation, whether to allow it or
// where to redirect.
//
// [Decide] is a pure function of a [Route] and a session.State. [Table]
// supplies routes: it compiles nested declarations (children inherit the
// parent's meta), resolves locations, follows declared redirects and turns an
// [Action] into a concrete location through [Table.Navigate].
//
// # What this package must NOT do
//
//   - Read the session from anywhere but its arguments.
//   - Perform the redirect itself (the HTTP middleware or CLI does that).
package guard
