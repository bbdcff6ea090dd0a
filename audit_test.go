package wmsauth

import (
	"context"
	"testing"
	"time"
)

func auditEnv(t *testing.T, sink AuditSink) *testEnv {
	t.Helper()
	return newTestEnv(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 64
	}, func(b *Builder) { b.WithAuditSink(sink) })
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLoginSuccessAndFailure(t *testing.T) {
	sink := NewChannelSink(16)
	env := auditEnv(t, sink)
	ctx := WithClientIP(context.Background(), "192.0.2.10")

	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	ev := nextEvent(t, sink)
	if ev.EventType != auditEventLoginSuccess || !ev.Success || ev.PrincipalID != "3" {
		t.Fatalf("unexpected success event %+v", ev)
	}
	if ev.IP != "192.0.2.10" {
		t.Fatalf("expected client ip in event, got %q", ev.IP)
	}

	_, _ = env.engine.Login(ctx, "picker", "wrong")
	ev = nextEvent(t, sink)
	if ev.EventType != auditEventLoginFailure || ev.Success {
		t.Fatalf("unexpected failure event %+v", ev)
	}
	if ev.Error != string(auditErrInvalidCredentials) || ev.Metadata["reason"] != "password_mismatch" {
		t.Fatalf("unexpected failure detail %+v", ev)
	}
}

func TestAuditRefreshInvalidAndAccessDenied(t *testing.T) {
	sink := NewChannelSink(16)
	env := auditEnv(t, sink)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = nextEvent(t, sink)

	if err := env.engine.Logout(ctx, "3"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ev := nextEvent(t, sink); ev.EventType != auditEventLogout || ev.Metadata["removed"] != "true" {
		t.Fatalf("unexpected logout event %+v", ev)
	}

	_, _ = env.engine.Refresh(ctx, login.RefreshToken)
	if ev := nextEvent(t, sink); ev.EventType != auditEventRefreshInvalid || ev.Error != string(auditErrInvalidToken) {
		t.Fatalf("unexpected refresh event %+v", ev)
	}

	_, _ = env.engine.AuthorizeRequest(ctx, login.AccessToken, "admin")
	ev := nextEvent(t, sink)
	if ev.EventType != auditEventAccessDenied || ev.Metadata["missing_scope"] != "admin" {
		t.Fatalf("unexpected access denied event %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(4)
	env := newTestEnv(t, nil, func(b *Builder) { b.WithAuditSink(sink) })

	if _, err := env.engine.Login(context.Background(), "picker", "picker-pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	env.engine.Close()
	select {
	case ev := <-sink.Events():
		t.Fatalf("expected no events, got %+v", ev)
	default:
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("expected no drops")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                          "",
		ErrInvalidCredentials:        auditErrInvalidCredentials,
		ErrLoginRateLimited:          auditErrRateLimited,
		ErrSessionInvalidationFailed: auditErrSessionInvalidation,
		ErrDirectoryUnavailable:      auditErrUnavailable,
		context.Canceled:             auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Errorf("%v: got %q want %q", err, got, want)
		}
	}
}
