package flows

import (
	"context"
	"errors"

	"github.com/modernwms/wmsauth/directory"
)

// ChangePasswordFailureKind classifies change-password failures.
type ChangePasswordFailureKind int

const (
	ChangePasswordFailureNone ChangePasswordFailureKind = iota
	ChangePasswordFailurePrincipalNotFound
	ChangePasswordFailureDirectory
	ChangePasswordFailureMismatch
	ChangePasswordFailurePolicy
	ChangePasswordFailureReuse
	ChangePasswordFailureHash
	ChangePasswordFailureUpdate
	ChangePasswordFailureInvalidate
)

// ChangePasswordDeps captures change-password dependencies.
type ChangePasswordDeps struct {
	FindByID           func(context.Context, string) (directory.Principal, error)
	UpdatePasswordHash func(ctx context.Context, id, hash string) error
	VerifyPassword     func(secret, hash string) (bool, error)
	HashPassword       func(secret string) (string, error)
	Sessions           Sessions
	MinLength          int
	MaxLength          int
}

// ChangePasswordResult reports the outcome.
type ChangePasswordResult struct {
	Failure        ChangePasswordFailureKind
	Err            error
	SessionRemoved bool
}

// RunChangePassword replaces the stored hash after re-verifying the current
// secret, then revokes the principal's session. The new hash stays stored
// even when revocation fails; the caller must surface that failure.
func RunChangePassword(ctx context.Context, principalID, current, next string, deps ChangePasswordDeps) ChangePasswordResult {
	p, err := deps.FindByID(ctx, principalID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return ChangePasswordResult{Failure: ChangePasswordFailurePrincipalNotFound, Err: err}
	case err != nil:
		return ChangePasswordResult{Failure: ChangePasswordFailureDirectory, Err: err}
	case !p.Usable():
		return ChangePasswordResult{Failure: ChangePasswordFailurePrincipalNotFound}
	}

	ok, err := deps.VerifyPassword(current, p.PasswordHash)
	if err != nil || !ok {
		return ChangePasswordResult{Failure: ChangePasswordFailureMismatch, Err: err}
	}

	if next == "" || len(next) < deps.MinLength || (deps.MaxLength > 0 && len(next) > deps.MaxLength) {
		return ChangePasswordResult{Failure: ChangePasswordFailurePolicy}
	}
	if next == current {
		return ChangePasswordResult{Failure: ChangePasswordFailureReuse}
	}
	// Catches reuse through an equivalent encoding, e.g. a client-side digest.
	if same, err := deps.VerifyPassword(next, p.PasswordHash); err == nil && same {
		return ChangePasswordResult{Failure: ChangePasswordFailureReuse}
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureHash, Err: err}
	}
	if err := deps.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureUpdate, Err: err}
	}

	removed, err := deps.Sessions.InvalidateByPrincipal(ctx, p.ID)
	if err != nil {
		return ChangePasswordResult{Failure: ChangePasswordFailureInvalidate, Err: err}
	}
	return ChangePasswordResult{SessionRemoved: removed}
}
