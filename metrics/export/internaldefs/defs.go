package internaldefs

import (
	portalAuth "github.com/MrEthical07/portalAuth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   portalAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   portalAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every session and navigation counter in export order.
var CounterDefs = []CounterDef{
	{ID: portalAuth.MetricLoginSuccess, Name: "dvss_login_success_total", Help: "Logins that established a session."},
	{ID: portalAuth.MetricLoginFailure, Name: "dvss_login_failure_total", Help: "Rejected or failed logins."},
	{ID: portalAuth.MetricLoginThrottled, Name: "dvss_login_throttled_total", Help: "Logins refused after repeated failed attempts."},
	{ID: portalAuth.MetricLogout, Name: "dvss_logout_total", Help: "Explicit logouts."},
	{ID: portalAuth.MetricRefreshSuccess, Name: "dvss_refresh_success_total", Help: "Successful token refreshes."},
	{ID: portalAuth.MetricRefreshFailure, Name: "dvss_refresh_failure_total", Help: "Failed token refreshes; each cleared the session."},
	{ID: portalAuth.MetricRefreshDiscarded, Name: "dvss_refresh_discarded_total", Help: "Refresh results dropped because the session changed in flight."},
	{ID: portalAuth.MetricProfileSuccess, Name: "dvss_profile_success_total", Help: "Successful profile reloads."},
	{ID: portalAuth.MetricProfileFailure, Name: "dvss_profile_failure_total", Help: "Failed profile reloads."},
	{ID: portalAuth.MetricSessionRestored, Name: "dvss_session_restored_total", Help: "Sessions restored from storage."},
	{ID: portalAuth.MetricSessionRestoreDiscarded, Name: "dvss_session_restore_discarded_total", Help: "Malformed persisted sessions discarded."},
	{ID: portalAuth.MetricUnauthorized, Name: "dvss_unauthorized_total", Help: "Sessions cleared by a rejected call."},
	{ID: portalAuth.MetricUnauthorizedStale, Name: "dvss_unauthorized_stale_total", Help: "Rejections of an already replaced token."},
	{ID: portalAuth.MetricStorageFailure, Name: "dvss_storage_failure_total", Help: "Failed session storage operations."},
	{ID: portalAuth.MetricNavigationAllowed, Name: "dvss_navigation_allowed_total", Help: "Navigations the guard allowed."},
	{ID: portalAuth.MetricNavigationRedirectLogin, Name: "dvss_navigation_redirect_login_total", Help: "Navigations redirected to sign-in."},
	{ID: portalAuth.MetricNavigationForbidden, Name: "dvss_navigation_forbidden_total", Help: "Navigations redirected to the forbidden page."},
	{ID: portalAuth.MetricNavigationDashboard, Name: "dvss_navigation_dashboard_total", Help: "Sign-in visits redirected to the dashboard."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: portalAuth.MetricLoginLatency, Name: "dvss_login_latency_seconds", Help: "Latency of login calls to the primary API."},
	{ID: portalAuth.MetricRefreshLatency, Name: "dvss_refresh_latency_seconds", Help: "Latency of refresh calls to the primary API."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "dvss_audit_dropped_total"

// SessionActiveName is the gauge that is 1 while a session is established.
const SessionActiveName = "dvss_session_active"

// HistogramUpperBounds are the bucket bounds in seconds. The last bucket
// is unbounded.
var HistogramUpperBounds = [7]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = [8]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies up to eight raw bucket counts.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
