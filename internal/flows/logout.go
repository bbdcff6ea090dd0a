package flows

import "context"

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureSessionStore
)

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	DecodeAccess func(string) (AccessClaims, error)
	Sessions     Sessions
}

// LogoutResult reports whether a session was actually removed.
type LogoutResult struct {
	Failure     LogoutFailureKind
	Err         error
	PrincipalID string
	Removed     bool
}

// RunLogout drops the principal's session. Repeating it is harmless.
func RunLogout(ctx context.Context, principalID string, deps LogoutDeps) LogoutResult {
	removed, err := deps.Sessions.InvalidateByPrincipal(ctx, principalID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureSessionStore, Err: err, PrincipalID: principalID}
	}
	return LogoutResult{PrincipalID: principalID, Removed: removed}
}

// RunLogoutByAccessToken authenticates tokenStr and logs its principal out.
func RunLogoutByAccessToken(ctx context.Context, tokenStr string, deps LogoutDeps) LogoutResult {
	claims, err := deps.DecodeAccess(tokenStr)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}
	return RunLogout(ctx, claims.PrincipalID, deps)
}
