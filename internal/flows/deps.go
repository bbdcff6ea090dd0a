package flows

import (
	"context"
	"time"
)

// Sessions is the subset of session.Backend the flows use.
type Sessions interface {
	Put(ctx context.Context, principalID, token string, ttl time.Duration) error
	ResolvePrincipal(ctx context.Context, token string) (string, bool, error)
	InvalidateByPrincipal(ctx context.Context, principalID string) (bool, error)
}

// AccessClaims is the flow-local view of a decoded access token.
type AccessClaims struct {
	PrincipalID string
	TokenID     string
	Scopes      []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// IssueAccessFunc mints an access token and reports its expiry.
type IssueAccessFunc func(principalID string, scopes []string) (string, time.Time, error)

// IssueRefreshFunc mints a refresh token and reports its expiry.
type IssueRefreshFunc func(principalID string) (string, time.Time, error)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login          LoginDeps
	Refresh        RefreshDeps
	Logout         LogoutDeps
	ChangePassword ChangePasswordDeps
	Authorize      AuthorizeDeps
}
