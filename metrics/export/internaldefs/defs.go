package internaldefs

import (
	"github.com/modernwms/wmsauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   wmsauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram. Buckets follow
// HistogramBoundValues plus a final +Inf bucket.
type HistogramDef struct {
	ID   wmsauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: wmsauth.MetricLoginSuccess, Name: "wmsauth_login_success_total", Help: "Successful logins."},
	{ID: wmsauth.MetricLoginFailure, Name: "wmsauth_login_failure_total", Help: "Failed logins."},
	{ID: wmsauth.MetricLoginRateLimited, Name: "wmsauth_login_rate_limited_total", Help: "Logins rejected by the attempt limiter."},
	{ID: wmsauth.MetricRefreshSuccess, Name: "wmsauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: wmsauth.MetricRefreshFailure, Name: "wmsauth_refresh_failure_total", Help: "Failed refreshes."},
	{ID: wmsauth.MetricRefreshRevoked, Name: "wmsauth_refresh_revoked_total", Help: "Well-formed refresh tokens rejected because they are no longer the live session."},
	{ID: wmsauth.MetricRefreshRotated, Name: "wmsauth_refresh_rotated_total", Help: "Refreshes that minted a new refresh token."},
	{ID: wmsauth.MetricSessionCreated, Name: "wmsauth_session_created_total", Help: "Refresh sessions written."},
	{ID: wmsauth.MetricSessionInvalidated, Name: "wmsauth_session_invalidated_total", Help: "Refresh sessions removed by logout or password change."},
	{ID: wmsauth.MetricSessionSwept, Name: "wmsauth_session_swept_total", Help: "Expired or orphaned sessions removed by sweeps."},
	{ID: wmsauth.MetricLogout, Name: "wmsauth_logout_total", Help: "Logout calls."},
	{ID: wmsauth.MetricPasswordChangeSuccess, Name: "wmsauth_password_change_success_total", Help: "Successful password changes."},
	{ID: wmsauth.MetricPasswordChangeInvalidOld, Name: "wmsauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: wmsauth.MetricPasswordChangeReuseRejected, Name: "wmsauth_password_change_reuse_rejected_total", Help: "Password changes rejected for reusing the current password."},
	{ID: wmsauth.MetricPasswordHashUpgraded, Name: "wmsauth_password_hash_upgraded_total", Help: "Legacy password hashes upgraded on login."},
	{ID: wmsauth.MetricAuthorizeSuccess, Name: "wmsauth_authorize_success_total", Help: "Authorized requests."},
	{ID: wmsauth.MetricAuthorizeUnauthenticated, Name: "wmsauth_authorize_unauthenticated_total", Help: "Requests with a missing or invalid access token."},
	{ID: wmsauth.MetricAuthorizeForbidden, Name: "wmsauth_authorize_forbidden_total", Help: "Requests lacking a required scope."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: wmsauth.MetricAuthorizeLatency, Name: "wmsauth_authorize_latency_seconds", Help: "AuthorizeRequest latency."},
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const AuditDroppedName = "wmsauth_audit_dropped_total"

// HistogramBoundSuffix spells each bound as a metric-name suffix for
// exporters without native histograms.
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

// HistogramBoundValues are the finite bucket bounds in seconds.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling gaps.
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
