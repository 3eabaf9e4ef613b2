// Package middleware adapts the console session to net/http: route
// guarding for page requests, field projection for data answers, and an
// outgoing transport that authenticates calls and reports rejections.
//
// # Handlers
//
//   - [Navigation] runs the route guard for each request and redirects.
//   - [RequireSession] rejects API requests made without a session.
//   - [ProjectFields] reduces JSON answers to the fields the role may see.
//   - [RequestID] tags each request with an id carried into audit events.
//
// # Transport
//
// [BearerTransport] attaches the current access token and hands a 401
// answer back to the Manager, which clears the session only if the
// rejected token is still the current one.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Manager, guard and fields
// calls. Access decisions are made by guard.Decide; visibility by
// fields.Policy.
//
// # What this package must NOT do
//
//   - Mutate the session other than through the Manager.
//   - Parse or verify tokens.
//   - Decide access with rules of its own.
package middleware
