package middleware

import (
	"net/http"

	"github.com/modernwms/wmsauth"
)

// RequireJWTOnly validates with [wmsauth.ModeJWTOnly]: no directory
// lookup, so a disabled principal keeps access until its token expires.
func RequireJWTOnly(engine *wmsauth.Engine, scopes ...string) func(http.Handler) http.Handler {
	return Guard(engine, wmsauth.ModeJWTOnly, scopes...)
}
