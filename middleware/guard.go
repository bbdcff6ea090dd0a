package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modernwms/wmsauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by a guard.
func AuthResultFromContext(ctx context.Context) (*wmsauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*wmsauth.AuthResult)
	return res, ok
}

// ErrorWriter renders a rejected request. status is 401, 403 or 503.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

// Guard rejects requests whose bearer token fails validation in mode or
// lacks any of scopes.
func Guard(engine *wmsauth.Engine, mode wmsauth.ValidationMode, scopes ...string) func(http.Handler) http.Handler {
	return GuardWith(engine, mode, WriteError, scopes...)
}

// GuardWith is [Guard] with a custom error renderer.
func GuardWith(engine *wmsauth.Engine, mode wmsauth.ValidationMode, onError ErrorWriter, scopes ...string) func(http.Handler) http.Handler {
	if onError == nil {
		onError = WriteError
	}
	challenge := bearerChallenge(scopes)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				w.Header().Set("WWW-Authenticate", challenge)
				onError(w, r, http.StatusUnauthorized, wmsauth.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", challenge)
				onError(w, r, http.StatusUnauthorized, wmsauth.ErrUnauthenticated)
				return
			}

			res, err := engine.Validate(r.Context(), token, mode, scopes...)
			if err != nil {
				status := StatusFor(err)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", challenge)
				}
				onError(w, r, status, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps an engine authorization error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, wmsauth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, wmsauth.ErrUnauthenticated), errors.Is(err, wmsauth.ErrEngineNotReady):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

// WriteError is the default [ErrorWriter]. It writes a plain-text body
// that does not leak the underlying cause.
func WriteError(w http.ResponseWriter, _ *http.Request, status int, _ error) {
	switch status {
	case http.StatusForbidden:
		http.Error(w, "Not enough permissions", status)
	case http.StatusUnauthorized:
		http.Error(w, "Could not validate credentials", status)
	default:
		http.Error(w, http.StatusText(status), status)
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

func bearerChallenge(scopes []string) string {
	if len(scopes) == 0 {
		return "Bearer"
	}
	return `Bearer scope="` + strings.Join(scopes, " ") + `"`
}
