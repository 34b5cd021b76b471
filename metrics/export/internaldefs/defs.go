package internaldefs

import (
	"github.com/casedock/authgate/internal/metrics"
)

// CounterDef binds one gate counter to its stable exposition name.
type CounterDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

// HistogramDef binds one gate latency histogram to its stable exposition name.
type HistogramDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in snapshot order.
var CounterDefs = []CounterDef{
	{ID: metrics.MetricSignInSuccess, Name: "authgate_sign_in_success_total", Help: "Successful sign-in grants."},
	{ID: metrics.MetricSignInFailure, Name: "authgate_sign_in_failure_total", Help: "Failed sign-in attempts."},
	{ID: metrics.MetricSignOutSuccess, Name: "authgate_sign_out_success_total", Help: "Sign-outs acknowledged by the provider."},
	{ID: metrics.MetricSignOutFallback, Name: "authgate_sign_out_fallback_total", Help: "Sign-outs completed locally after a provider failure."},
	{ID: metrics.MetricSignOutFailure, Name: "authgate_sign_out_failure_total", Help: "Sign-outs that failed on both the provider and local legs."},
	{ID: metrics.MetricSessionRestored, Name: "authgate_session_restored_total", Help: "Sessions restored from the provider or mirror during bootstrap."},
	{ID: metrics.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful background token refreshes."},
	{ID: metrics.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Background token refreshes that exhausted their retries."},
	{ID: metrics.MetricProfileFetchSuccess, Name: "authgate_profile_fetch_success_total", Help: "Successful profile fetches."},
	{ID: metrics.MetricProfileFetchFailure, Name: "authgate_profile_fetch_failure_total", Help: "Failed profile fetches."},
	{ID: metrics.MetricImpersonationStarted, Name: "authgate_impersonation_started_total", Help: "Impersonation sessions started."},
	{ID: metrics.MetricImpersonationEnded, Name: "authgate_impersonation_ended_total", Help: "Impersonation sessions ended normally."},
	{ID: metrics.MetricImpersonationDenied, Name: "authgate_impersonation_denied_total", Help: "Impersonation attempts denied by the role check."},
	{ID: metrics.MetricImpersonationFailed, Name: "authgate_impersonation_failed_total", Help: "Impersonation endings that could not restore the original profile."},
	{ID: metrics.MetricResetSuccess, Name: "authgate_reset_success_total", Help: "Error-state resets that re-bootstrapped cleanly."},
	{ID: metrics.MetricResetFailure, Name: "authgate_reset_failure_total", Help: "Error-state resets that failed."},
	{ID: metrics.MetricStateErrorEntered, Name: "authgate_state_error_entered_total", Help: "Transitions into the error state."},
	{ID: metrics.MetricGuardRedirectScheduled, Name: "authgate_guard_redirect_scheduled_total", Help: "Debounced sign-in redirects scheduled by the route guard."},
	{ID: metrics.MetricGuardRedirectFired, Name: "authgate_guard_redirect_fired_total", Help: "Sign-in redirects delivered after the debounce window."},
	{ID: metrics.MetricGuardRedirectCancelled, Name: "authgate_guard_redirect_cancelled_total", Help: "Scheduled sign-in redirects cancelled before firing."},
	{ID: metrics.MetricGuardRoleDenied, Name: "authgate_guard_role_denied_total", Help: "Routes denied by the guard's role check."},
	{ID: metrics.MetricNavDispatched, Name: "authgate_nav_dispatched_total", Help: "Navigations delivered to the registered router."},
	{ID: metrics.MetricNavQueued, Name: "authgate_nav_queued_total", Help: "Navigations queued while no router was registered."},
	{ID: metrics.MetricNavReplayed, Name: "authgate_nav_replayed_total", Help: "Queued navigations replayed on router registration."},
	{ID: metrics.MetricNavSuperseded, Name: "authgate_nav_superseded_total", Help: "Queued navigations superseded before a router registered."},
	{ID: metrics.MetricNavRouterFailure, Name: "authgate_nav_router_failure_total", Help: "Router dispatches that failed and fell back to a hard redirect."},
	{ID: metrics.MetricNavHardRedirect, Name: "authgate_nav_hard_redirect_total", Help: "Hard redirects issued."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: metrics.MetricGuardEvaluateLatency, Name: "authgate_guard_evaluate_latency_seconds", Help: "Route guard evaluation latency."},
}

// AuditDroppedName is the counter tracking audit events discarded under
// dispatcher backpressure. It lives outside the snapshot, so exporters read
// it separately.
const (
	AuditDroppedName = "authgate_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."
)

// HistogramBounds are the upper bucket bounds in seconds, as exposition text.
// They must match the core histogram's bucketing exactly.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite upper bounds as floats, for exporters
// that build native histogram types. The +Inf bucket is implied by the total
// sample count.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix gives each bound a name-safe suffix for exporters that
// must flatten buckets into individual instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed bucket
// count. A nil slice (latency collection disabled) becomes all zeroes.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exposition formats expect. The last element is the total sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
