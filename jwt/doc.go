// Package jwt reads and, where a key is available, issues and verifies the
// primary API's bearer tokens.
//
// [Inspect] decodes claims without verification and is the only function the
// session manager uses. [Manager] signs and verifies tokens for the in-process
// fake API and for deployments that share the verification key.
package jwt
