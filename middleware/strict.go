package middleware

import (
	"net/http"

	"github.com/modernwms/wmsauth"
)

// RequireStrict validates with [wmsauth.ModeStrict].
func RequireStrict(engine *wmsauth.Engine, scopes ...string) func(http.Handler) http.Handler {
	return Guard(engine, wmsauth.ModeStrict, scopes...)
}
