package wmsauth

import (
	"context"
	"errors"
	"testing"

	"github.com/modernwms/wmsauth/permission"
)

func TestValidateJWTOnlySkipsDirectory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.dir.SetActive("3", false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	res, err := env.engine.Validate(ctx, login.AccessToken, ModeJWTOnly, permission.ScopeUser)
	if err != nil {
		t.Fatalf("jwt-only validate: %v", err)
	}
	if res.PrincipalID != "3" || res.Role != "" {
		t.Fatalf("unexpected jwt-only result %+v", res)
	}
	if _, err := env.engine.Validate(ctx, login.AccessToken, ModeStrict); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("strict validate should reject a disabled principal, got %v", err)
	}
}

func TestValidateJWTOnlyChecksScopes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(ctx, "picker", "picker-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.engine.Validate(ctx, login.AccessToken, ModeJWTOnly, permission.ScopeAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.engine.Validate(ctx, "junk", ModeJWTOnly); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.engine.Validate(context.Background(), "x", ValidationMode(42)); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
	if got := ValidationMode(42).String(); got != "ValidationMode(42)" {
		t.Fatalf("unexpected String %q", got)
	}
}
