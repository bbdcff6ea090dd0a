package wmsauth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modernwms/wmsauth/jwt"
	"github.com/modernwms/wmsauth/permission"
)

func TestEngineEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "admin", "admin-pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if login.TokenType != TokenTypeBearer {
		t.Fatalf("unexpected token type %q", login.TokenType)
	}
	if login.ExpiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in %d", login.ExpiresIn)
	}
	if login.Principal.ID != "1" || login.Principal.Name != "admin" {
		t.Fatalf("unexpected principal summary %+v", login.Principal)
	}

	auth, err := env.engine.AuthorizeRequest(ctx, login.AccessToken, permission.ScopeAdmin)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if auth.PrincipalID != "1" || auth.Role != "admin" {
		t.Fatalf("unexpected auth result %+v", auth)
	}

	env.clock.Advance(time.Second)
	refreshed, err := env.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshed.AccessToken == login.AccessToken {
		t.Fatal("expected a new access token")
	}
	if refreshed.RefreshToken != login.RefreshToken || refreshed.Rotated {
		t.Fatal("refresh token must stay stable without rotation")
	}

	// The original refresh token is still the live session.
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	if err := env.engine.Logout(ctx, "1"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
}

func TestLoginByUserNumber(t *testing.T) {
	env := newTestEnv(t, nil)
	res, err := env.engine.Login(context.Background(), "P003", "picker-pw")
	if err != nil {
		t.Fatalf("login by number failed: %v", err)
	}
	if res.Principal.ID != "3" {
		t.Fatalf("expected principal 3, got %q", res.Principal.ID)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := []struct {
		name, identifier, secret string
	}{
		{"unknown user", "nobody", "whatever"},
		{"wrong password", "picker", "not-it"},
		{"inactive user", "retired", "retired-pw"},
		{"empty identifier", "", "x"},
		{"empty password", "picker", ""},
	}
	var messages []string
	for _, tc := range cases {
		_, err := env.engine.Login(ctx, tc.identifier, tc.secret)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
		messages = append(messages, err.Error())
	}
	for _, m := range messages[1:] {
		if m != messages[0] {
			t.Fatalf("login failures leak detail: %q vs %q", m, messages[0])
		}
	}
	if env.store.Len() != 0 {
		t.Fatalf("failed logins must not create sessions, got %d", env.store.Len())
	}
}

type countingHasher struct {
	plainHasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(secret, encoded string) (bool, error) {
	h.verifies.Add(1)
	return h.plainHasher.Verify(secret, encoded)
}

func TestLoginUnknownIdentifierStillVerifies(t *testing.T) {
	hasher := &countingHasher{}
	env := newTestEnv(t, nil, func(b *Builder) { b.WithPasswordHasher(hasher) })
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, "nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := hasher.verifies.Load(); got != 1 {
		t.Fatalf("expected one verify for an unknown identifier, got %d", got)
	}

	if _, err := env.engine.Login(ctx, "picker", "not-it"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := hasher.verifies.Load(); got != 2 {
		t.Fatalf("expected one verify for a known identifier, got %d", got)
	}
}

func TestLoginSupersedesPreviousSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	first, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected superseded refresh token to fail, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("expected current refresh token to work: %v", err)
	}
	if env.store.Len() != 1 {
		t.Fatalf("expected one session, got %d", env.store.Len())
	}
}

func TestRevocationTakesPrecedenceOverSignature(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "manager", "manager-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.store.InvalidateByPrincipal(ctx, "2"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	// The token still verifies on its own.
	if _, err := env.engine.codec.DecodeKind(login.RefreshToken, jwt.KindRefresh); err != nil {
		t.Fatalf("expected refresh token to stay well-formed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshRejectsMalformedAndExpiredTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for name, tok := range map[string]string{
		"garbage":      "not-a-jwt",
		"empty":        "",
		"access token": login.AccessToken,
	} {
		if _, err := env.engine.Refresh(ctx, tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	env.clock.Advance(31 * 24 * time.Hour)
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired refresh token to fail, got %v", err)
	}
}

func TestRefreshForDeletedPrincipal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.dir.Delete("3"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
	if env.store.Len() != 0 {
		t.Fatal("expected the orphaned session to be dropped")
	}
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(c *Config) { c.Session.RotateRefreshTokens = true })

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	rotated, err := env.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !rotated.Rotated || rotated.RefreshToken == login.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected the rotated-out token to fail, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("expected the new token to work: %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := env.engine.Logout(ctx, "3"); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
	}
	if err := env.engine.Logout(ctx, "never-logged-in"); err != nil {
		t.Fatalf("logout of unknown principal: %v", err)
	}
}

func TestLogoutByAccessToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.engine.LogoutByAccessToken(ctx, login.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
	if err := env.engine.LogoutByAccessToken(ctx, "bogus"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAccessTokenOutlivesLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.engine.Logout(ctx, "3"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.engine.AuthorizeRequest(ctx, login.AccessToken, permission.ScopeUser); err != nil {
		t.Fatalf("expected access token to stay valid until expiry: %v", err)
	}

	env.clock.Advance(31 * time.Minute)
	if _, err := env.engine.AuthorizeRequest(ctx, login.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired access token to fail, got %v", err)
	}
}

func TestScopeInheritance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	tokens := map[string]string{}
	for _, who := range []struct{ name, pw string }{
		{"admin", "admin-pw"},
		{"manager", "manager-pw"},
		{"picker", "picker-pw"},
	} {
		res, err := env.engine.Login(ctx, who.name, who.pw)
		if err != nil {
			t.Fatalf("login %s: %v", who.name, err)
		}
		tokens[who.name] = res.AccessToken
	}

	cases := []struct {
		who   string
		scope string
		allow bool
	}{
		{"admin", permission.ScopeAdmin, true},
		{"admin", permission.ScopeManager, true},
		{"admin", permission.ScopeUser, true},
		{"manager", permission.ScopeAdmin, false},
		{"manager", permission.ScopeManager, true},
		{"manager", permission.ScopeUser, true},
		{"picker", permission.ScopeAdmin, false},
		{"picker", permission.ScopeManager, false},
		{"picker", permission.ScopeUser, true},
	}
	for _, tc := range cases {
		_, err := env.engine.AuthorizeRequest(ctx, tokens[tc.who], tc.scope)
		switch {
		case tc.allow && err != nil:
			t.Errorf("%s/%s: expected allow, got %v", tc.who, tc.scope, err)
		case !tc.allow && !errors.Is(err, ErrForbidden):
			t.Errorf("%s/%s: expected ErrForbidden, got %v", tc.who, tc.scope, err)
		}
	}
}

func TestAuthorizeRejectsDisabledPrincipal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.dir.SetActive("3", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := env.engine.AuthorizeRequest(ctx, login.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeRejectsRefreshToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.engine.AuthorizeRequest(ctx, login.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "manager", "manager-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	me, err := env.engine.Me(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ID != "2" || me.Role != "manager" || !me.Active {
		t.Fatalf("unexpected summary %+v", me)
	}
}

func TestSweepSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, func(b *Builder) { b.WithMetricsEnabled(true) })

	for _, who := range []struct{ name, pw string }{{"admin", "admin-pw"}, {"picker", "picker-pw"}} {
		if _, err := env.engine.Login(ctx, who.name, who.pw); err != nil {
			t.Fatalf("login %s: %v", who.name, err)
		}
	}
	env.clock.Advance(31 * 24 * time.Hour)

	removed, err := env.engine.SweepSessions(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSessionSwept]; got != 2 {
		t.Fatalf("expected swept metric 2, got %d", got)
	}
}

func TestNewSweeperUsesEngineBackend(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, func(b *Builder) { b.WithMetricsEnabled(true) })

	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	env.clock.Advance(31 * 24 * time.Hour)

	sw, err := env.engine.NewSweeper()
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	if got := sw.RunOnce(ctx); got != 1 {
		t.Fatalf("expected 1 removed, got %d", got)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSessionSwept]; got != 1 {
		t.Fatalf("expected swept metric 1, got %d", got)
	}
}

func TestGetSessionInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if info, err := env.engine.GetSessionInfo(ctx, "3"); err != nil || info != nil {
		t.Fatalf("expected no session yet, got %+v %v", info, err)
	}
	if _, err := env.engine.Login(ctx, "picker", "picker-pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	info, err := env.engine.GetSessionInfo(ctx, "3")
	if err != nil || info == nil {
		t.Fatalf("expected session info, got %+v %v", info, err)
	}
	if info.Expired || !info.ExpiresAt.Equal(env.clock.Now().Add(30*24*time.Hour)) {
		t.Fatalf("unexpected session info %+v", info)
	}
	if h := env.engine.Health(ctx); !h.SessionsAvailable {
		t.Fatal("expected in-memory backend to be healthy")
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var e Engine
	ctx := context.Background()
	if _, err := e.Login(ctx, "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("login: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Refresh(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("refresh: expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Logout(ctx, "1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("logout: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.AuthorizeRequest(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("authorize: expected ErrEngineNotReady, got %v", err)
	}
	var nilEngine *Engine
	nilEngine.Close()
}

func TestBuilderRequiresDirectory(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected Build to fail without a directory")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	b := New().WithConfig(testConfig()).WithDirectory(env.dir)
	e, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderDefaultHasherChain(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	e, err := New().WithConfig(testConfig()).WithDirectory(env.dir).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	hash, err := e.hasher.Hash("dock-door-7")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := env.dir.Add(directoryPrincipal("10", "loader", "L010", hash)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.Login(ctx, "loader", "dock-door-7"); err != nil {
		t.Fatalf("login with argon2 hash: %v", err)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := testConfig()
	cfg.JWT.Secret = nil
	if _, err := New().WithConfig(cfg).WithDirectory(env.dir).Build(); err == nil {
		t.Fatal("expected Build to reject a missing secret")
	}
}
