package security

import (
	"testing"
	"time"
)

func TestBuildReportRateLimiting(t *testing.T) {
	base := ReportInput{
		SigningAlgorithm:  "HS256",
		LimiterConfigured: true,
		MaxLoginAttempts:  5,
		LoginCooldown:     time.Minute,
		EnableIPThrottle:  true,
	}

	r := BuildReport(base)
	if !r.RateLimitingActive || !r.IPThrottleActive {
		t.Fatalf("expected rate limiting and ip throttle active, got %+v", r)
	}
	if !r.SingleSessionPerPrincipal {
		t.Fatal("expected single session per principal")
	}

	noLimiter := base
	noLimiter.LimiterConfigured = false
	if r := BuildReport(noLimiter); r.RateLimitingActive || r.IPThrottleActive {
		t.Fatalf("expected inactive without limiter, got %+v", r)
	}

	noCooldown := base
	noCooldown.LoginCooldown = 0
	if r := BuildReport(noCooldown); r.RateLimitingActive {
		t.Fatal("expected inactive without cooldown")
	}
}

func TestBuildReportKeyRotation(t *testing.T) {
	if BuildReport(ReportInput{}).KeyRotation {
		t.Fatal("expected no key rotation without verify secrets")
	}
	if !BuildReport(ReportInput{VerifySecrets: 2}).KeyRotation {
		t.Fatal("expected key rotation with verify secrets")
	}
}
