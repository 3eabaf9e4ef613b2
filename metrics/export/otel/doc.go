// Package otel exposes the console's session counters to an OpenTelemetry
// Meter.
//
// Counters become Int64ObservableCounters. Each latency histogram becomes
// a set of cumulative bucket gauges plus a count gauge, and
// dvss_session_active reports whether an operator is signed in. All values
// come from a single MetricsSnapshot taken in one registered callback.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate Manager state.
package otel
