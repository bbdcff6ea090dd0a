package wmsauth

import (
	"context"
	"time"

	"github.com/modernwms/wmsauth/directory"
	"github.com/modernwms/wmsauth/session"
)

// Principal is an account that can authenticate.
type Principal = directory.Principal

// PrincipalSummary is the public projection of a [Principal].
type PrincipalSummary = directory.Summary

// Directory resolves principals. Implementations must return
// [directory.ErrNotFound] for absent principals and should return inactive
// or deleted principals unfiltered; the engine decides usability.
//
// [directory.Memory] and [sqlstore.Store] implement it.
//
// [sqlstore.Store]: github.com/modernwms/wmsauth/directory/sqlstore
type Directory interface {
	FindByIdentifier(ctx context.Context, identifier string) (Principal, error)
	FindByID(ctx context.Context, id string) (Principal, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// PasswordHasher hashes and verifies secrets. [password.Chain] is the
// default implementation.
//
// [password.Chain]: github.com/modernwms/wmsauth/password
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
}

// LoginLimiter throttles failed logins. IncrementLogin must return an error
// once the attempt budget is exceeded.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
}

// SessionBackend is the refresh-session store the engine writes to.
type SessionBackend = session.Backend

// TokenTypeBearer is the only token_type the engine issues.
const TokenTypeBearer = "bearer"

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64 // access token lifetime in seconds
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Scopes           []string
	Principal        PrincipalSummary
}

// RefreshResult is returned by [Engine.Refresh]. RefreshToken equals the
// presented token unless rotation is enabled.
type RefreshResult struct {
	PrincipalID      string
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Scopes           []string
	Rotated          bool
}

// AuthResult is returned by [Engine.AuthorizeRequest]. It describes the
// principal behind a validated access token.
type AuthResult struct {
	PrincipalID string
	TokenID     string
	Role        string
	Scopes      []string
	Permissions []string
	ExpiresAt   time.Time
	Principal   PrincipalSummary
}

// HasScope reports whether the access token carried scope.
func (r *AuthResult) HasScope(scope string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
