// Package middleware adapts [wmsauth.Engine] request authorization to
// net/http handlers.
//
// # Guards
//
//   - [RequireStrict] decodes the bearer token and looks the principal up
//     on every request.
//   - [RequireJWTOnly] trusts the token alone until it expires.
//   - [Guard] and [GuardWith] take the mode explicitly.
//
// Each guard reads the Authorization header, calls Engine.Validate with
// the route's required scopes, and stores the result in the request
// context for [AuthResultFromContext].
//
// Authentication failures answer 401 with a Bearer challenge listing the
// required scopes. A missing scope answers 403.
package middleware
