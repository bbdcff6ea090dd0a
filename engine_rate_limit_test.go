package wmsauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginRateLimited(t *testing.T) {
	ctx := WithClientIP(context.Background(), "10.0.0.7")
	env := newTestEnv(t, func(c *Config) {
		c.LoginLimit.MaxAttempts = 3
		c.LoginLimit.Cooldown = time.Minute
	}, func(b *Builder) { b.WithMetricsEnabled(true) })

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, "picker", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	// The attempt that exhausts the budget is already reported as throttled.
	if _, err := env.engine.Login(ctx, "picker", "wrong"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected correct password to be throttled too, got %v", err)
	}

	attempts, err := env.engine.GetLoginAttempts(ctx, "picker")
	if err != nil || attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d %v", attempts, err)
	}

	env.clock.Advance(time.Minute + time.Second)
	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); err != nil {
		t.Fatalf("expected login after cooldown: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 2 {
		t.Fatalf("expected 2 rate-limited logins, got %d", got)
	}
}

func TestLoginSuccessResetsBudget(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(c *Config) { c.LoginLimit.MaxAttempts = 3 })

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, "picker", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if attempts, _ := env.engine.GetLoginAttempts(ctx, "picker"); attempts != 0 {
		t.Fatalf("expected budget reset, got %d", attempts)
	}
}

func TestLoginLimitDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(c *Config) { c.LoginLimit.Enabled = false })

	for i := 0; i < 10; i++ {
		if _, err := env.engine.Login(ctx, "picker", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.GetLoginAttempts(ctx, "picker"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without a limiter, got %v", err)
	}
}
