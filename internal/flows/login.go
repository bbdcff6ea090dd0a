package flows

import (
	"context"
	"errors"
	"time"

	"github.com/modernwms/wmsauth/directory"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureEmptyCredentials
	LoginFailurePrincipalNotFound
	LoginFailureDirectory
	LoginFailurePasswordMismatch
	LoginFailurePrincipalDisabled
	LoginFailureIssueAccess
	LoginFailureIssueRefresh
	LoginFailureSessionStore
)

// LoginResult carries the issued token pair or failure metadata.
type LoginResult struct {
	Failure          LoginFailureKind
	Err              error
	Principal        directory.Principal
	Scopes           []string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	HashUpgraded     bool
}

// LoginDeps captures login dependencies. The rate hooks are optional.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string
	CheckLoginRate      func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate  func(ctx context.Context, identifier, ip string) error
	ResetLoginRate      func(ctx context.Context, identifier, ip string) error

	FindByIdentifier   func(context.Context, string) (directory.Principal, error)
	UpdatePasswordHash func(ctx context.Context, id, hash string) error

	VerifyPassword       func(secret, hash string) (bool, error)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(secret string) (string, error)
	UpgradeHashOnLogin   bool

	// DummyHash is verified against when the identifier is unknown, so
	// unknown and known identifiers cost the same hashing work.
	DummyHash string

	ScopesForRole func(role string) []string
	IssueAccess   IssueAccessFunc
	IssueRefresh  IssueRefreshFunc
	RefreshTTL    time.Duration
	Sessions      Sessions

	Warn func(msg string, err error)
}

// Ready reports whether the mandatory dependencies are wired.
func (d LoginDeps) Ready() bool {
	return d.FindByIdentifier != nil &&
		d.VerifyPassword != nil &&
		d.ScopesForRole != nil &&
		d.IssueAccess != nil &&
		d.IssueRefresh != nil &&
		d.Sessions != nil
}

// RunLogin verifies credentials, mints an access/refresh pair and records
// the refresh token as the principal's only live session.
func RunLogin(ctx context.Context, identifier, secret string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	fail := func(kind LoginFailureKind, err error, p directory.Principal) LoginResult {
		if deps.IncrementLoginRate != nil {
			if rerr := deps.IncrementLoginRate(ctx, identifier, ip); rerr != nil {
				return LoginResult{Failure: LoginFailureRateLimited, Err: rerr, Principal: p}
			}
		}
		return LoginResult{Failure: kind, Err: err, Principal: p}
	}

	if identifier == "" || secret == "" {
		return fail(LoginFailureEmptyCredentials, nil, directory.Principal{})
	}

	p, err := deps.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(secret, deps.DummyHash)
			}
			return fail(LoginFailurePrincipalNotFound, err, directory.Principal{})
		}
		return LoginResult{Failure: LoginFailureDirectory, Err: err}
	}

	ok, err := deps.VerifyPassword(secret, p.PasswordHash)
	if err != nil || !ok {
		return fail(LoginFailurePasswordMismatch, err, p)
	}
	if !p.Usable() {
		return fail(LoginFailurePrincipalDisabled, nil, p)
	}

	upgraded := false
	if deps.UpgradeHashOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needs, err := deps.PasswordNeedsUpgrade(p.PasswordHash); err == nil && needs {
			if hash, err := deps.HashPassword(secret); err != nil {
				deps.Warn("password hash upgrade generation failed", err)
			} else if err := deps.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
				deps.Warn("password hash upgrade update failed", err)
			} else {
				p.PasswordHash = hash
				upgraded = true
			}
		}
	}

	scopes := deps.ScopesForRole(p.Role)
	access, accessExp, err := deps.IssueAccess(p.ID, scopes)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueAccess, Err: err, Principal: p}
	}
	refresh, refreshExp, err := deps.IssueRefresh(p.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueRefresh, Err: err, Principal: p}
	}
	if err := deps.Sessions.Put(ctx, p.ID, refresh, deps.RefreshTTL); err != nil {
		return LoginResult{Failure: LoginFailureSessionStore, Err: err, Principal: p}
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("login limiter reset failed", err)
		}
	}

	return LoginResult{
		Principal:        p,
		Scopes:           scopes,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		HashUpgraded:     upgraded,
	}
}
