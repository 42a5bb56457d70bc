package internaldefs

import (
	adminAuth "github.com/MrEthical07/adminAuth"
)

// CounterDef names one adminAuth counter for export.
type CounterDef struct {
	ID   adminAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one adminAuth histogram for export.
type HistogramDef struct {
	ID   adminAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the counters.
const (
	AuditDroppedName = "adminauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: adminAuth.MetricLoginSuccess, Name: "adminauth_login_success_total", Help: "Logins that produced a session."},
	{ID: adminAuth.MetricLoginFailure, Name: "adminauth_login_failure_total", Help: "Logins rejected by the credential backend."},
	{ID: adminAuth.MetricLoginSuperseded, Name: "adminauth_login_superseded_total", Help: "Logins discarded after a logout or newer login."},
	{ID: adminAuth.MetricRegisterSuccess, Name: "adminauth_register_success_total", Help: "Accounts registered as pending."},
	{ID: adminAuth.MetricRegisterDuplicate, Name: "adminauth_register_duplicate_total", Help: "Registrations rejected for a duplicate email."},
	{ID: adminAuth.MetricLogout, Name: "adminauth_logout_total", Help: "Logouts."},
	{ID: adminAuth.MetricSessionRestored, Name: "adminauth_session_restored_total", Help: "Sessions restored at startup."},
	{ID: adminAuth.MetricSessionCorrupt, Name: "adminauth_session_corrupt_total", Help: "Stored sessions discarded as unreadable."},
	{ID: adminAuth.MetricRoleChangeSuccess, Name: "adminauth_role_change_success_total", Help: "Role changes applied by administrators."},
	{ID: adminAuth.MetricRoleChangeDenied, Name: "adminauth_role_change_denied_total", Help: "Role changes denied."},
	{ID: adminAuth.MetricProfileUpdate, Name: "adminauth_profile_update_total", Help: "Profile updates."},
	{ID: adminAuth.MetricPasswordChangeSuccess, Name: "adminauth_password_change_success_total", Help: "Secret changes."},
	{ID: adminAuth.MetricPasswordChangeInvalidOld, Name: "adminauth_password_change_invalid_old_total", Help: "Secret changes rejected for a wrong old secret."},
	{ID: adminAuth.MetricBootstrapAdminCreated, Name: "adminauth_bootstrap_admin_created_total", Help: "Default administrators created on an empty store."},
	{ID: adminAuth.MetricBackendUnavailable, Name: "adminauth_backend_unavailable_total", Help: "Operations that failed because a backend was unreachable."},
	{ID: adminAuth.MetricLoginThrottled, Name: "adminauth_login_throttled_total", Help: "Logins refused after too many failed attempts."},
}

var HistogramDefs = []HistogramDef{
	{ID: adminAuth.MetricLoginLatency, Name: "adminauth_login_latency_seconds", Help: "Login latency, end to end."},
}

// HistogramBounds are the upper bounds of adminAuth's latency buckets, in seconds.
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

// HistogramBoundSuffix spells HistogramBounds for use inside instrument names.
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

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into "less than or equal" counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
