package flows

import (
	"context"
	"errors"
	"time"

	"github.com/modernwms/wmsauth/directory"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRevoked
	RefreshFailureSessionStore
	RefreshFailurePrincipalNotFound
	RefreshFailureDirectory
	RefreshFailureIssueAccess
	RefreshFailureIssueRefresh
	RefreshFailureSessionWrite
)

// RefreshResult carries the new access token or failure metadata.
type RefreshResult struct {
	Failure          RefreshFailureKind
	Err              error
	PrincipalID      string
	Principal        directory.Principal
	Scopes           []string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Rotated          bool
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	DecodeRefresh       func(token string) (principalID string, expiresAt time.Time, err error)
	Sessions            Sessions
	FindByID            func(context.Context, string) (directory.Principal, error)
	ScopesForRole       func(role string) []string
	IssueAccess         IssueAccessFunc
	IssueRefresh        IssueRefreshFunc
	RotateRefreshTokens bool
	RefreshTTL          time.Duration
	Warn                func(msg string, err error)
}

// Ready reports whether the mandatory dependencies are wired.
func (d RefreshDeps) Ready() bool {
	return d.DecodeRefresh != nil &&
		d.Sessions != nil &&
		d.FindByID != nil &&
		d.ScopesForRole != nil &&
		d.IssueAccess != nil &&
		(!d.RotateRefreshTokens || d.IssueRefresh != nil)
}

// RunRefresh mints a new access token for a refresh token that is both
// cryptographically valid and still the live session of its principal.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}

	principalID, refreshExp, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	// A valid signature is not enough: logout, password change and re-login
	// all revoke by removing the store entry.
	owner, ok, err := deps.Sessions.ResolvePrincipal(ctx, refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSessionStore, Err: err, PrincipalID: principalID}
	}
	if !ok || owner != principalID {
		return RefreshResult{Failure: RefreshFailureRevoked, PrincipalID: principalID}
	}

	p, err := deps.FindByID(ctx, principalID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		deps.dropSession(ctx, principalID)
		return RefreshResult{Failure: RefreshFailurePrincipalNotFound, Err: err, PrincipalID: principalID}
	case err != nil:
		return RefreshResult{Failure: RefreshFailureDirectory, Err: err, PrincipalID: principalID}
	case !p.Usable():
		deps.dropSession(ctx, principalID)
		return RefreshResult{Failure: RefreshFailurePrincipalNotFound, PrincipalID: principalID, Principal: p}
	}

	scopes := deps.ScopesForRole(p.Role)
	access, accessExp, err := deps.IssueAccess(p.ID, scopes)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, PrincipalID: principalID, Principal: p}
	}

	result := RefreshResult{
		PrincipalID:      principalID,
		Principal:        p,
		Scopes:           scopes,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}
	if !deps.RotateRefreshTokens {
		return result
	}

	next, nextExp, err := deps.IssueRefresh(p.ID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueRefresh, Err: err, PrincipalID: principalID, Principal: p}
	}
	if err := deps.Sessions.Put(ctx, p.ID, next, deps.RefreshTTL); err != nil {
		return RefreshResult{Failure: RefreshFailureSessionWrite, Err: err, PrincipalID: principalID, Principal: p}
	}
	result.RefreshToken = next
	result.RefreshExpiresAt = nextExp
	result.Rotated = true
	return result
}

func (d RefreshDeps) dropSession(ctx context.Context, principalID string) {
	if _, err := d.Sessions.InvalidateByPrincipal(ctx, principalID); err != nil {
		d.Warn("session invalidation for unusable principal failed", err)
	}
}
