// Package limiters throttles repeated failed sign-ins per username.
//
// A [Lockout] counts failures in a window that opens with the first
// failure; once the threshold is reached further attempts are refused until
// the window ends. Counts live in a [Counter]: [RedisCounter] shares a
// Redis session backend, [StorageCounter] keeps them next to the session
// in any session.Storage.
//
// All methods are nil-safe: a nil *Lockout never refuses and never counts.
//
// # What this package must NOT do
//
//   - Talk to the primary API. The caller decides what counts as a failure.
//   - Touch session keys.
package limiters
