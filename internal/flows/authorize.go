package flows

import (
	"context"
	"errors"

	"github.com/modernwms/wmsauth/directory"
)

// AuthorizeFailureKind classifies authorization failures.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureDecode
	AuthorizeFailurePrincipalNotFound
	AuthorizeFailureDirectory
	AuthorizeFailureMissingScope
)

// AuthorizeDeps captures authorization dependencies. The session store is
// deliberately absent: access tokens are checked statelessly.
type AuthorizeDeps struct {
	DecodeAccess       func(string) (AccessClaims, error)
	FindByID           func(context.Context, string) (directory.Principal, error)
	PermissionsForRole func(role string) []string
}

// AuthorizeResult carries the authenticated principal or failure metadata.
type AuthorizeResult struct {
	Failure      AuthorizeFailureKind
	Err          error
	Claims       AccessClaims
	Principal    directory.Principal
	Permissions  []string
	MissingScope string
}

// RunAuthorize authenticates an access token and checks that it carries
// every required scope.
func RunAuthorize(ctx context.Context, tokenStr string, required []string, deps AuthorizeDeps) AuthorizeResult {
	claims, err := deps.DecodeAccess(tokenStr)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureDecode, Err: err}
	}

	p, err := deps.FindByID(ctx, claims.PrincipalID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return AuthorizeResult{Failure: AuthorizeFailurePrincipalNotFound, Err: err, Claims: claims}
	case err != nil:
		return AuthorizeResult{Failure: AuthorizeFailureDirectory, Err: err, Claims: claims}
	case !p.Usable():
		return AuthorizeResult{Failure: AuthorizeFailurePrincipalNotFound, Claims: claims, Principal: p}
	}

	if missing, ok := missingScope(claims.Scopes, required); ok {
		return AuthorizeResult{Failure: AuthorizeFailureMissingScope, Claims: claims, Principal: p, MissingScope: missing}
	}

	var perms []string
	if deps.PermissionsForRole != nil {
		perms = deps.PermissionsForRole(p.Role)
	}
	return AuthorizeResult{Claims: claims, Principal: p, Permissions: perms}
}

func missingScope(granted, required []string) (string, bool) {
	for _, want := range required {
		found := false
		for _, have := range granted {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return want, true
		}
	}
	return "", false
}
