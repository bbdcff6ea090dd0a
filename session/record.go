package session

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by distributed backends when the storage
// server cannot be reached. The in-memory [Store] never returns it.
var ErrUnavailable = errors.New("session backend unavailable")

// Record is the live refresh-token entry for one principal.
type Record struct {
	PrincipalID string
	Token       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the record has reached its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

type indexEntry struct {
	principalID string
	expiresAt   time.Time
}

// Backend is the contract the authentication engine relies on. Every
// implementation must keep the principal record and the token index in
// lockstep: each live record has exactly one index entry and vice versa.
type Backend interface {
	// Put registers token for principalID, superseding any prior token.
	Put(ctx context.Context, principalID, token string, ttl time.Duration) error
	// ResolvePrincipal returns the owner of token when the token is the
	// current, unexpired entry. Expired entries are evicted on the way.
	ResolvePrincipal(ctx context.Context, token string) (string, bool, error)
	// InvalidateByPrincipal removes the principal's record and index entry.
	InvalidateByPrincipal(ctx context.Context, principalID string) (bool, error)
	// Sweep removes every expired or orphaned entry and reports how many
	// sessions were removed.
	Sweep(ctx context.Context) (int, error)
}
