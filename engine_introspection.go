package wmsauth

import (
	"context"
	"time"

	"github.com/modernwms/wmsauth/session"
)

// SessionInfo is the safe introspection view of a refresh session. It
// never carries the token itself.
type SessionInfo struct {
	PrincipalID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Expired     bool
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	SessionsAvailable bool
	SessionsLatency   time.Duration
}

type sessionLookup interface {
	Lookup(ctx context.Context, principalID string) (session.Record, bool, error)
}

type sessionPinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type attemptCounter interface {
	Attempts(ctx context.Context, identifier string) (int, error)
}

// GetSessionInfo reports the principal's current refresh session. It
// returns (nil, nil) when the principal has none, and [ErrEngineNotReady]
// when the session backend does not support lookups.
func (e *Engine) GetSessionInfo(ctx context.Context, principalID string) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrPrincipalNotFound
	}
	lookup, ok := e.sessions.(sessionLookup)
	if !ok {
		return nil, ErrEngineNotReady
	}

	rec, found, err := lookup.Lookup(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &SessionInfo{
		PrincipalID: rec.PrincipalID,
		IssuedAt:    rec.IssuedAt,
		ExpiresAt:   rec.ExpiresAt,
		Expired:     rec.Expired(e.now()),
	}, nil
}

// Health pings the session backend when it supports it. Backends without
// a ping are reported available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}
	pinger, ok := e.sessions.(sessionPinger)
	if !ok {
		return HealthStatus{SessionsAvailable: true}
	}

	latency, err := pinger.Ping(ctx)
	return HealthStatus{
		SessionsAvailable: err == nil,
		SessionsLatency:   latency,
	}
}

// GetLoginAttempts returns the failed-login count for identifier in the
// current window.
func (e *Engine) GetLoginAttempts(ctx context.Context, identifier string) (int, error) {
	if e == nil || e.limiter == nil {
		return 0, ErrEngineNotReady
	}
	if identifier == "" {
		return 0, nil
	}
	counter, ok := e.limiter.(attemptCounter)
	if !ok {
		return 0, ErrEngineNotReady
	}
	return counter.Attempts(ctx, identifier)
}
