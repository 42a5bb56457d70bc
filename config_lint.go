package adminAuth

import (
	"errors"
	"fmt"
	"strings"
)

// LintSeverity ranks a configuration warning.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// LintWarning is a configuration that is valid but probably not intended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings produced by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	var msgs []string
	for _, w := range r {
		if w.Severity >= min {
			msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports settings that pass Validate but weaken a deployment.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Backend.Mode == BackendLocal && c.Storage.Driver == StorageMemory {
		add("storage_ephemeral", LintWarn, "memory storage loses accounts and sessions on restart")
	}
	if c.Bootstrap.Enabled && c.Bootstrap.AdminSecret == defaultConfig().Bootstrap.AdminSecret {
		add("bootstrap_default_secret", LintHigh, "default administrator secret is publicly known; change it after first login")
	}
	if c.Bootstrap.Enabled && c.Backend.Mode == BackendRemote {
		add("bootstrap_remote_noop", LintInfo, "bootstrap is a no-op for the remote backend")
	}
	if c.Password.Memory < 19*1024 {
		add("argon2_memory_low", LintWarn, "argon2id memory below 19 MiB")
	}
	if c.Password.MinPasswordBytes < 8 {
		add("password_min_short", LintInfo, "secrets shorter than 8 bytes are accepted")
	}
	if !c.Throttle.Enabled {
		add("login_throttle_disabled", LintInfo, "failed logins are not throttled")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "role and secret changes are not audited")
	}

	return ws
}
