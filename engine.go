package wmsauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/modernwms/wmsauth/directory"
	internalaudit "github.com/modernwms/wmsauth/internal/audit"
	"github.com/modernwms/wmsauth/internal/flows"
	"github.com/modernwms/wmsauth/internal/rate"
	"github.com/modernwms/wmsauth/jwt"
	"github.com/modernwms/wmsauth/permission"
	"github.com/modernwms/wmsauth/session"
	"go.uber.org/zap"
)

// Engine runs the authentication protocol: login, refresh, logout,
// password change and request authorization.
//
// Engine instances are built once by [Builder.Build] and are safe for
// concurrent use.
type Engine struct {
	config    Config
	codec     *jwt.Codec
	roles     *permission.RoleManager
	sessions  session.Backend
	directory Directory
	hasher    PasswordHasher
	dummyHash string
	limiter   LoginLimiter
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *zap.Logger
	flow      flows.Service
	now       func() time.Time
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Close drains the audit dispatcher. The session backend and directory
// belong to the caller and are left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Roles exposes the frozen role table.
func (e *Engine) Roles() *permission.RoleManager {
	if e == nil {
		return nil
	}
	return e.roles
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates identifier (user name or user number) with secret
// and opens the principal's refresh session, replacing any previous one.
//
// Every credential failure returns [ErrInvalidCredentials]. A throttled
// caller gets [ErrLoginRateLimited].
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.Login(ctx, identifier, secret)
	if res.Failure != flows.LoginFailureNone {
		return nil, e.loginFailure(ctx, identifier, res)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	if res.HashUpgraded {
		e.metricInc(MetricPasswordHashUpgraded)
		e.emitAudit(ctx, auditEventPasswordHashUpgraded, true, res.Principal.ID, nil, nil)
	}
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.Principal.ID, nil, nil)

	return &LoginResult{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(e.codec.AccessTTL() / time.Second),
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
		Scopes:           res.Scopes,
		Principal:        res.Principal.Summary(),
	}, nil
}

func (e *Engine) loginFailure(ctx context.Context, identifier string, res flows.LoginResult) error {
	identity := func() map[string]string {
		return map[string]string{"identifier": identifier}
	}

	switch res.Failure {
	case flows.LoginFailureRateLimited:
		if res.Err != nil && !errors.Is(res.Err, rate.ErrRateLimited) {
			e.logger.Warn("login limiter unavailable", zap.Error(res.Err))
		}
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, res.Principal.ID, ErrLoginRateLimited, identity)
		return ErrLoginRateLimited

	case flows.LoginFailureEmptyCredentials,
		flows.LoginFailurePrincipalNotFound,
		flows.LoginFailurePasswordMismatch,
		flows.LoginFailurePrincipalDisabled:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     loginFailureReason(res.Failure),
			}
		})
		return ErrInvalidCredentials

	case flows.LoginFailureDirectory:
		e.metricInc(MetricLoginFailure)
		err := errors.Join(ErrDirectoryUnavailable, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", err, identity)
		return err

	case flows.LoginFailureSessionStore:
		e.metricInc(MetricLoginFailure)
		err := errors.Join(ErrSessionCreationFailed, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, err, identity)
		return err

	default:
		e.metricInc(MetricLoginFailure)
		err := fmt.Errorf("issue token: %w", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, err, identity)
		return err
	}
}

func loginFailureReason(kind flows.LoginFailureKind) string {
	switch kind {
	case flows.LoginFailureEmptyCredentials:
		return "empty_credentials"
	case flows.LoginFailurePrincipalNotFound:
		return "unknown_principal"
	case flows.LoginFailurePasswordMismatch:
		return "password_mismatch"
	case flows.LoginFailurePrincipalDisabled:
		return "principal_disabled"
	default:
		return "other"
	}
}

/*
====================================
REFRESH
====================================
*/

// Refresh exchanges a live refresh token for a new access token. The token
// must verify and must still be the principal's current session; a token
// superseded by a later login or revoked by logout fails with
// [ErrInvalidToken] even though its signature is valid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.Refresh(ctx, refreshToken)
	if res.Failure != flows.RefreshFailureNone {
		return nil, e.refreshFailure(ctx, res)
	}

	e.metricInc(MetricRefreshSuccess)
	if res.Rotated {
		e.metricInc(MetricRefreshRotated)
		e.metricInc(MetricSessionCreated)
	}
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.PrincipalID, nil, func() map[string]string {
		return map[string]string{"rotated": strconv.FormatBool(res.Rotated)}
	})

	return &RefreshResult{
		PrincipalID:      res.PrincipalID,
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(e.codec.AccessTTL() / time.Second),
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
		Scopes:           res.Scopes,
		Rotated:          res.Rotated,
	}, nil
}

func (e *Engine) refreshFailure(ctx context.Context, res flows.RefreshResult) error {
	e.metricInc(MetricRefreshFailure)

	var err error
	switch res.Failure {
	case flows.RefreshFailureDecode:
		err = ErrInvalidToken
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshRevoked)
		err = ErrInvalidToken
	case flows.RefreshFailurePrincipalNotFound:
		err = ErrPrincipalNotFound
	case flows.RefreshFailureDirectory:
		err = errors.Join(ErrDirectoryUnavailable, res.Err)
	case flows.RefreshFailureSessionStore:
		err = fmt.Errorf("resolve session: %w", res.Err)
	case flows.RefreshFailureSessionWrite:
		err = errors.Join(ErrSessionCreationFailed, res.Err)
	default:
		err = fmt.Errorf("issue token: %w", res.Err)
	}

	e.emitAudit(ctx, auditEventRefreshInvalid, false, res.PrincipalID, err, nil)
	return err
}

/*
====================================
LOGOUT
====================================
*/

// Logout removes the principal's refresh session. Calling it again, or for
// a principal without a session, succeeds. Access tokens already issued
// remain valid until they expire.
func (e *Engine) Logout(ctx context.Context, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.logoutResult(ctx, e.flow.Logout(ctx, principalID))
}

// LogoutByAccessToken authenticates accessToken and logs its principal out.
func (e *Engine) LogoutByAccessToken(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.logoutResult(ctx, e.flow.LogoutByAccessToken(ctx, accessToken))
}

func (e *Engine) logoutResult(ctx context.Context, res flows.LogoutResult) error {
	switch res.Failure {
	case flows.LogoutFailureDecode:
		e.metricInc(MetricAuthorizeUnauthenticated)
		return ErrUnauthenticated
	case flows.LogoutFailureSessionStore:
		err := errors.Join(ErrSessionInvalidationFailed, res.Err)
		e.emitAudit(ctx, auditEventLogout, false, res.PrincipalID, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	if res.Removed {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogout, true, res.PrincipalID, nil, func() map[string]string {
		return map[string]string{"removed": strconv.FormatBool(res.Removed)}
	})
	return nil
}

/*
====================================
CHANGE PASSWORD
====================================
*/

// ChangePassword replaces the principal's password after verifying current
// and then revokes the principal's refresh session. When revocation fails
// the new password is already stored and the returned error wraps
// [ErrSessionInvalidationFailed].
func (e *Engine) ChangePassword(ctx context.Context, principalID, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flow.ChangePassword(ctx, principalID, current, next)

	var err error
	switch res.Failure {
	case flows.ChangePasswordFailureNone:
		e.metricInc(MetricPasswordChangeSuccess)
		if res.SessionRemoved {
			e.metricInc(MetricSessionInvalidated)
		}
		e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, principalID, nil, nil)
		return nil

	case flows.ChangePasswordFailurePrincipalNotFound:
		err = ErrPrincipalNotFound
	case flows.ChangePasswordFailureDirectory:
		err = errors.Join(ErrDirectoryUnavailable, res.Err)
	case flows.ChangePasswordFailureMismatch:
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, principalID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	case flows.ChangePasswordFailurePolicy:
		err = ErrPasswordPolicy
	case flows.ChangePasswordFailureReuse:
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, principalID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	case flows.ChangePasswordFailureHash:
		err = fmt.Errorf("hash password: %w", res.Err)
	case flows.ChangePasswordFailureUpdate:
		if errors.Is(res.Err, directory.ErrNotFound) {
			err = ErrPrincipalNotFound
		} else {
			err = errors.Join(ErrDirectoryUnavailable, res.Err)
		}
	case flows.ChangePasswordFailureInvalidate:
		e.metricInc(MetricPasswordChangeSuccess)
		err = errors.Join(ErrSessionInvalidationFailed, res.Err)
		e.logger.Warn("password changed but session invalidation failed",
			zap.String("principal_id", principalID), zap.Error(res.Err))
	default:
		err = fmt.Errorf("change password: %w", res.Err)
	}

	e.emitAudit(ctx, auditEventPasswordChangeFailure, false, principalID, err, nil)
	return err
}

/*
====================================
AUTHORIZE
====================================
*/

// AuthorizeRequest validates accessToken and checks that it carries every
// scope in required. Authorization is stateless with respect to sessions:
// a logged-out principal's access token stays valid until it expires, but
// a principal that was disabled or deleted is rejected immediately.
//
// Failures are [ErrUnauthenticated] (bad token or unusable principal) and
// [ErrForbidden] (missing scope).
func (e *Engine) AuthorizeRequest(ctx context.Context, accessToken string, required ...string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res := e.flow.Authorize(ctx, accessToken, required)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.AuthorizeFailureNone:
	case flows.AuthorizeFailureDecode, flows.AuthorizeFailurePrincipalNotFound:
		e.metricInc(MetricAuthorizeUnauthenticated)
		return nil, ErrUnauthenticated
	case flows.AuthorizeFailureMissingScope:
		e.metricInc(MetricAuthorizeForbidden)
		e.emitAudit(ctx, auditEventAccessDenied, false, res.Principal.ID, ErrForbidden, func() map[string]string {
			return map[string]string{"missing_scope": res.MissingScope}
		})
		return nil, fmt.Errorf("%w: missing scope %q", ErrForbidden, res.MissingScope)
	default:
		return nil, errors.Join(ErrDirectoryUnavailable, res.Err)
	}

	e.metricInc(MetricAuthorizeSuccess)
	return &AuthResult{
		PrincipalID: res.Principal.ID,
		TokenID:     res.Claims.TokenID,
		Role:        res.Principal.Role,
		Scopes:      res.Claims.Scopes,
		Permissions: res.Permissions,
		ExpiresAt:   res.Claims.ExpiresAt,
		Principal:   res.Principal.Summary(),
	}, nil
}

// Me returns the summary of the principal behind accessToken. It requires
// the base user scope.
func (e *Engine) Me(ctx context.Context, accessToken string) (*PrincipalSummary, error) {
	res, err := e.AuthorizeRequest(ctx, accessToken, permission.ScopeUser)
	if err != nil {
		return nil, err
	}
	return &res.Principal, nil
}

/*
====================================
SESSION MAINTENANCE
====================================
*/

// SweepSessions removes every expired or orphaned session once and returns
// how many were removed.
func (e *Engine) SweepSessions(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	removed, err := e.sessions.Sweep(ctx)
	e.recordSweep(ctx, removed, err)
	return removed, err
}

// NewSweeper returns a background sweeper over the engine's session
// backend, using the configured interval. The caller owns its lifetime.
func (e *Engine) NewSweeper() (*session.Sweeper, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	sw := session.NewSweeper(e.sessions, e.config.Session.SweepInterval, e.logger)
	sw.OnSweep(func(removed int, err error) {
		e.recordSweep(context.Background(), removed, err)
	})
	return sw, nil
}

func (e *Engine) recordSweep(ctx context.Context, removed int, err error) {
	if removed > 0 && e.metrics != nil {
		e.metrics.Add(MetricSessionSwept, uint64(removed))
	}
	if err == nil && removed == 0 {
		return
	}
	e.emitAudit(ctx, auditEventSessionSweep, err == nil, "", err, func() map[string]string {
		return map[string]string{"removed": strconv.Itoa(removed)}
	})
}
