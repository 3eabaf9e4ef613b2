// Package prometheus publishes console session metrics through
// client_golang.
//
// [Collector] implements prometheus.Collector over Manager.MetricsSnapshot.
// Counter names are prefixed dvss_*_total; the login and refresh latency
// histograms are dvss_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register
//     the Collector or mount [Handler].
//   - Mutate Manager state.
package prometheus
