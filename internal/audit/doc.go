// Package audit delivers session lifecycle events to a sink without
// blocking the session manager.
//
// # Components
//
//   - [Sink] consumes events (channel, JSON lines, no-op).
//   - [Dispatcher] is a bounded async relay that either drops or blocks when full.
//   - [Event] is the record: id, timestamp, type, user, outcome, metadata.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. Deciding which events to emit
// belongs to the Manager.
//
// # What this package must NOT do
//
//   - Record tokens or passwords.
//   - Import portalAuth or any sibling internal package.
package audit
