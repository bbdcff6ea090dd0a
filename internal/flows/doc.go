// Package flows contains the orchestration for every Engine operation.
//
// Each Run function (RunLogin, RunRefresh, RunAuthorize, ...) accepts a
// typed dependency struct and returns a result carrying a FailureKind. The
// root engine maps failure kinds to its sentinel errors, metrics and audit
// events, so flows never see those.
//
// # Architecture boundaries
//
// Flows coordinate the session backend, token codec, directory, password
// hasher and login limiter. They do not own any of these; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import wmsauth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency fields.
package flows
