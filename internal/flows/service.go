package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether every flow has its mandatory dependencies.
func (s Service) Initialized() bool {
	return s.deps.Login.Ready() &&
		s.deps.Refresh.Ready() &&
		s.deps.Logout.Sessions != nil &&
		s.deps.Logout.DecodeAccess != nil &&
		s.deps.ChangePassword.FindByID != nil &&
		s.deps.Authorize.DecodeAccess != nil &&
		s.deps.Authorize.FindByID != nil
}

func (s Service) Login(ctx context.Context, identifier, secret string) LoginResult {
	return RunLogin(ctx, identifier, secret, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, principalID string) LogoutResult {
	return RunLogout(ctx, principalID, s.deps.Logout)
}

func (s Service) LogoutByAccessToken(ctx context.Context, tokenStr string) LogoutResult {
	return RunLogoutByAccessToken(ctx, tokenStr, s.deps.Logout)
}

func (s Service) ChangePassword(ctx context.Context, principalID, current, next string) ChangePasswordResult {
	return RunChangePassword(ctx, principalID, current, next, s.deps.ChangePassword)
}

func (s Service) Authorize(ctx context.Context, tokenStr string, required []string) AuthorizeResult {
	return RunAuthorize(ctx, tokenStr, required, s.deps.Authorize)
}
