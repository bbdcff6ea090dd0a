package wmsauth

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for every credential
	// failure: unknown identifier, wrong secret, inactive or deleted
	// principal. The causes are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrInvalidToken is returned by Refresh when the refresh token fails
	// decoding, has the wrong kind, or is no longer the live session.
	ErrInvalidToken = errors.New("invalid refresh token")
	// ErrUnauthenticated is returned when an access token cannot be
	// validated or its principal is no longer usable.
	ErrUnauthenticated = errors.New("could not validate credentials")
	// ErrForbidden is returned when an authenticated principal lacks a
	// required scope.
	ErrForbidden = errors.New("not enough permissions")
	// ErrPrincipalNotFound is returned by Refresh and ChangePassword when the
	// principal named by a valid token has disappeared or been disabled.
	ErrPrincipalNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned while the login attempt budget for an
	// identifier or client IP is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPasswordPolicy rejects a new password that is empty, too short or too long.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse rejects a new password equal to the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrSessionCreationFailed wraps a session backend failure during login
	// or refresh rotation.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed wraps a session backend failure while
	// revoking a session.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrDirectoryUnavailable wraps a principal directory failure other than absence.
	ErrDirectoryUnavailable = errors.New("principal directory unavailable")
	// ErrEngineNotReady is returned by every method of a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
