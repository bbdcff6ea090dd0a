package security

import "time"

// PasswordReport lists the argon2id parameters new hashes are built with.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is a read-only summary of the engine's security posture.
type Report struct {
	DevMode                   bool
	SigningAlgorithm          string
	KeyRotation               bool
	AccessTTL                 time.Duration
	RefreshTTL                time.Duration
	Leeway                    time.Duration
	Argon2                    PasswordReport
	ClientPrehash             bool
	HashUpgradeOnLogin        bool
	RefreshRotationEnabled    bool
	SingleSessionPerPrincipal bool
	RateLimitingActive        bool
	IPThrottleActive          bool
	AuditEnabled              bool
	LintWarnings              int
}

// ReportInput carries the configuration facts the report is derived from.
type ReportInput struct {
	DevMode             bool
	SigningAlgorithm    string
	VerifySecrets       int
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Leeway              time.Duration
	Password            PasswordReport
	ClientPrehash       bool
	UpgradeOnLogin      bool
	RotateRefreshTokens bool
	LimiterConfigured   bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	EnableIPThrottle    bool
	AuditEnabled        bool
	LintWarnings        int
}

// BuildReport derives a [Report]. Rate limiting counts as active only with
// a limiter and a positive budget and cooldown.
func BuildReport(input ReportInput) Report {
	rateLimiting := input.LimiterConfigured &&
		input.MaxLoginAttempts > 0 &&
		input.LoginCooldown > 0

	return Report{
		DevMode:                   input.DevMode,
		SigningAlgorithm:          input.SigningAlgorithm,
		KeyRotation:               input.VerifySecrets > 0,
		AccessTTL:                 input.AccessTTL,
		RefreshTTL:                input.RefreshTTL,
		Leeway:                    input.Leeway,
		Argon2:                    input.Password,
		ClientPrehash:             input.ClientPrehash,
		HashUpgradeOnLogin:        input.UpgradeOnLogin,
		RefreshRotationEnabled:    input.RotateRefreshTokens,
		SingleSessionPerPrincipal: true,
		RateLimitingActive:        rateLimiting,
		IPThrottleActive:          rateLimiting && input.EnableIPThrottle,
		AuditEnabled:              input.AuditEnabled,
		LintWarnings:              input.LintWarnings,
	}
}
