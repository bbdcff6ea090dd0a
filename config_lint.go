package wmsauth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo marks a setting worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that weakens security.
	LintWarn
	// LintHigh marks a setting that should never reach production.
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
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding of [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	codes := make([]string, 0, len(r))
	for _, w := range r {
		codes = append(codes, w.Code)
	}
	return codes
}

// BySeverity returns the warnings at or above floor.
func (r LintResult) BySeverity(floor LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= floor {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above floor into one error, or returns nil.
func (r LintResult) AsError(floor LintSeverity) error {
	matched := r.BySeverity(floor)
	if len(matched) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matched))
	for _, w := range matched {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but deserve attention.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.DevMode {
		add("dev_mode_enabled", LintHigh, "DevMode relaxes the signing-secret floor")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above 1m widens the replay window")
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked; keep them short")
	}
	if c.JWT.RefreshTTL > 90*24*time.Hour {
		add("refresh_ttl_long", LintInfo, "refresh sessions outlive 90 days")
	}
	if !c.JWT.RequireIAT {
		add("iat_not_required", LintInfo, "tokens without iat are accepted")
	}
	if !c.LoginLimit.Enabled {
		add("login_limit_disabled", LintWarn, "password guessing is not throttled")
	} else if !c.LoginLimit.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "login throttling is per identifier only")
	}
	if !c.Session.RotateRefreshTokens {
		add("refresh_rotation_disabled", LintInfo, "a leaked refresh token stays usable until logout or expiry")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory below 64 MB")
	}
	if c.Password.ClientPrehash {
		add("client_prehash_enabled", LintInfo, "md5 client digests are accepted as password input")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication events are not audited")
	}

	return ws
}
