package wmsauth

import (
	"context"
	"fmt"

	"github.com/modernwms/wmsauth/jwt"
)

// ValidationMode selects how much work [Engine.Validate] does per request.
type ValidationMode int

const (
	// ModeStrict decodes the token and looks the principal up, so disabled
	// or deleted principals are rejected immediately.
	ModeStrict ValidationMode = iota
	// ModeJWTOnly trusts the token alone until it expires. The result
	// carries no role, permissions or principal summary.
	ModeJWTOnly
)

func (m ValidationMode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeJWTOnly:
		return "jwt_only"
	default:
		return fmt.Sprintf("ValidationMode(%d)", int(m))
	}
}

// Validate authenticates accessToken in the given mode and checks scopes.
func (e *Engine) Validate(ctx context.Context, accessToken string, mode ValidationMode, required ...string) (*AuthResult, error) {
	switch mode {
	case ModeStrict:
		return e.AuthorizeRequest(ctx, accessToken, required...)
	case ModeJWTOnly:
	default:
		return nil, fmt.Errorf("unknown validation mode %v", mode)
	}

	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	claims, err := e.codec.DecodeKind(accessToken, jwt.KindAccess)
	if err != nil {
		e.metricInc(MetricAuthorizeUnauthenticated)
		return nil, ErrUnauthenticated
	}

	res := &AuthResult{
		PrincipalID: claims.PrincipalID(),
		TokenID:     claims.ID,
		Scopes:      claims.Scopes,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	for _, scope := range required {
		if !res.HasScope(scope) {
			e.metricInc(MetricAuthorizeForbidden)
			return nil, fmt.Errorf("%w: missing scope %q", ErrForbidden, scope)
		}
	}
	e.metricInc(MetricAuthorizeSuccess)
	return res, nil
}
