// Package wmsauth is the authentication engine of the warehouse backend.
// It issues HS256 access and refresh tokens, keeps one refresh session per
// principal, and authorizes requests by scope.
//
// Engine methods are safe to call from multiple goroutines once the
// engine has been constructed through [Builder.Build].
//
// # Protocol
//
//   - [Engine.Login] verifies credentials against a [Directory], issues an
//     access/refresh pair and records the refresh token as the principal's
//     only live session.
//   - [Engine.Refresh] decodes a refresh token and cross-checks it against
//     the session store. A well-signed token that is no longer the current
//     session is rejected.
//   - [Engine.Logout] and [Engine.ChangePassword] revoke the session.
//   - [Engine.AuthorizeRequest] validates an access token and checks
//     required scopes. Access tokens outlive logout until they expire.
//
// # Architecture boundaries
//
// The protocol steps live in internal/flows as plain functions over
// injected dependencies. This package maps their outcomes to the exported
// sentinel errors, metrics and audit events. Storage backends live in
// session/ and directory/, token encoding in jwt/, hashing in password/,
// and the role table in permission/.
//
// Runtime failures never panic. A zero or partially built [Engine]
// returns [ErrEngineNotReady].
package wmsauth
