// Package session holds the authoritative record of which refresh tokens are
// currently valid, for which principal, and until when.
//
// # Backends
//
// [Store] is the in-memory backend: one mutex covers both the per-principal
// record map and the token index, so no caller can observe one mutated
// without the other. [RedisStore] keeps the same two structures as Redis
// hashes and mutates them with Lua scripts for deployments that run more
// than one process. Both satisfy [Backend].
//
// # Single session per principal
//
// Keys are principal ids. [Backend.Put] supersedes whatever token the
// principal held before, so at most one refresh token is live per principal.
//
// # Architecture boundaries
//
// This package never decodes tokens. A token is an opaque string here; the
// issuer and the protocol that checks currency live in the root package.
//
// # What this package must NOT do
//
//   - Import wmsauth, jwt, or directory (no upward imports).
//   - Perform I/O while holding the in-memory store lock.
//   - Treat "not found" as an error; absence is a normal result.
package session
