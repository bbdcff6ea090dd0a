package wmsauth

import "github.com/modernwms/wmsauth/internal/security"

// SecurityReport summarizes the security-relevant configuration of a
// built engine.
type SecurityReport = security.Report

// PasswordConfigReport lists the argon2id parameters in a [SecurityReport].
type PasswordConfigReport = security.PasswordReport

// SecurityReport returns the engine's security posture. A zero engine
// returns a zero report.
func (e *Engine) SecurityReport() SecurityReport {
	if !e.ready() {
		return SecurityReport{}
	}
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		DevMode:          cfg.DevMode,
		SigningAlgorithm: "HS256",
		VerifySecrets:    len(cfg.JWT.VerifySecrets),
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		Leeway:           cfg.JWT.Leeway,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		ClientPrehash:       cfg.Password.ClientPrehash,
		UpgradeOnLogin:      cfg.Password.UpgradeOnLogin,
		RotateRefreshTokens: cfg.Session.RotateRefreshTokens,
		LimiterConfigured:   e.limiter != nil,
		MaxLoginAttempts:    cfg.LoginLimit.MaxAttempts,
		LoginCooldown:       cfg.LoginLimit.Cooldown,
		EnableIPThrottle:    cfg.LoginLimit.EnableIPThrottle,
		AuditEnabled:        cfg.Audit.Enabled,
		LintWarnings:        len(cfg.Lint()),
	})
}
