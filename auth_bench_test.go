package wmsauth

import (
	"context"
	"testing"

	"github.com/modernwms/wmsauth/permission"
)

func BenchmarkAuthorizeStrict(b *testing.B) {
	env := newTestEnv(b, nil)
	login, err := env.engine.Login(context.Background(), "picker", "picker-pw")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.AuthorizeRequest(context.Background(), login.AccessToken, permission.ScopeUser); err != nil {
			b.Fatalf("authorize failed: %v", err)
		}
	}
}

func BenchmarkValidateJWTOnly(b *testing.B) {
	env := newTestEnv(b, nil)
	login, err := env.engine.Login(context.Background(), "picker", "picker-pw")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Validate(context.Background(), login.AccessToken, ModeJWTOnly); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env := newTestEnv(b, nil)
	login, err := env.engine.Login(context.Background(), "picker", "picker-pw")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Refresh(context.Background(), login.RefreshToken); err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	env := newTestEnv(b, func(c *Config) { c.LoginLimit.Enabled = false })

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Login(context.Background(), "picker", "picker-pw"); err != nil {
			b.Fatalf("login failed: %v", err)
		}
	}
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricAuthorizeSuccess)
		}
	})
}
