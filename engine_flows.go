package wmsauth

import (
	"time"

	"github.com/modernwms/wmsauth/internal/flows"
	"github.com/modernwms/wmsauth/jwt"
	"go.uber.org/zap"
)

func (e *Engine) initFlows() {
	e.flow = flows.New(e.flowDeps())
}

func (e *Engine) flowDeps() flows.Deps {
	warn := func(msg string, err error) {
		e.logger.Warn(msg, zap.Error(err))
	}

	login := flows.LoginDeps{
		ClientIPFromContext:  ClientIPFromContext,
		FindByIdentifier:     e.directory.FindByIdentifier,
		UpdatePasswordHash:   e.directory.UpdatePasswordHash,
		VerifyPassword:       e.hasher.Verify,
		DummyHash:            e.dummyHash,
		PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
		HashPassword:         e.hasher.Hash,
		UpgradeHashOnLogin:   e.config.Password.UpgradeOnLogin,
		ScopesForRole:        e.roles.Scopes,
		IssueAccess:          e.issueAccess,
		IssueRefresh:         e.issueRefresh,
		RefreshTTL:           e.codec.RefreshTTL(),
		Sessions:             e.sessions,
		Warn:                 warn,
	}
	if e.limiter != nil {
		login.CheckLoginRate = e.limiter.CheckLogin
		login.IncrementLoginRate = e.limiter.IncrementLogin
		login.ResetLoginRate = e.limiter.ResetLogin
	}

	return flows.Deps{
		Login: login,
		Refresh: flows.RefreshDeps{
			DecodeRefresh:       e.decodeRefresh,
			Sessions:            e.sessions,
			FindByID:            e.directory.FindByID,
			ScopesForRole:       e.roles.Scopes,
			IssueAccess:         e.issueAccess,
			IssueRefresh:        e.issueRefresh,
			RotateRefreshTokens: e.config.Session.RotateRefreshTokens,
			RefreshTTL:          e.codec.RefreshTTL(),
			Warn:                warn,
		},
		Logout: flows.LogoutDeps{
			DecodeAccess: e.decodeAccess,
			Sessions:     e.sessions,
		},
		ChangePassword: flows.ChangePasswordDeps{
			FindByID:           e.directory.FindByID,
			UpdatePasswordHash: e.directory.UpdatePasswordHash,
			VerifyPassword:     e.hasher.Verify,
			HashPassword:       e.hasher.Hash,
			Sessions:           e.sessions,
			MinLength:          e.config.Password.MinLength,
			MaxLength:          e.config.Password.MaxLength,
		},
		Authorize: flows.AuthorizeDeps{
			DecodeAccess:       e.decodeAccess,
			FindByID:           e.directory.FindByID,
			PermissionsForRole: e.roles.Permissions,
		},
	}
}

func (e *Engine) issueAccess(principalID string, scopes []string) (string, time.Time, error) {
	token, claims, err := e.codec.IssueAccess(principalID, scopes)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (e *Engine) issueRefresh(principalID string) (string, time.Time, error) {
	token, claims, err := e.codec.IssueRefresh(principalID)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (e *Engine) decodeRefresh(token string) (string, time.Time, error) {
	claims, err := e.codec.DecodeKind(token, jwt.KindRefresh)
	if err != nil {
		return "", time.Time{}, err
	}
	return claims.PrincipalID(), claims.ExpiresAt.Time, nil
}

func (e *Engine) decodeAccess(token string) (flows.AccessClaims, error) {
	claims, err := e.codec.DecodeKind(token, jwt.KindAccess)
	if err != nil {
		return flows.AccessClaims{}, err
	}
	out := flows.AccessClaims{
		PrincipalID: claims.PrincipalID(),
		TokenID:     claims.ID,
		Scopes:      claims.Scopes,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
