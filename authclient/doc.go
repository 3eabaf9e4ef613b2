// Package authclient is the HTTP collaborator of the session manager.
//
// [Auth] implements portalAuth.Authenticator against the primary API's
// /auth endpoints. [JSON] issues authenticated calls to the primary and
// ledger APIs through Manager.Call, so a rejected token clears the session.
// Every request carries an X-Request-ID and may be paced by a token bucket.
//
// # What this package must NOT do
//
//   - Hold session state; tokens are passed in per call.
//   - Retry requests.
package authclient
