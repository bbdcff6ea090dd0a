// Package rate implements fixed-window login throttling.
//
// # Window semantics
//
// Each failed login increments a counter keyed by identifier (and by client
// IP when enabled). The window starts at the first failure and lasts
// Cooldown; a successful login clears the counters. Once a counter exceeds
// MaxAttempts every check fails with [ErrRateLimited] until the window ends.
//
// Two backends share these semantics: [Limiter] keeps counters in Redis
// (INCR + EXPIRE on first hit) for multi-instance deployments, and
// [MemoryLimiter] keeps them in a bounded expiring LRU.
//
// Key prefixes (Redis):
//   - <prefix>:login:    per identifier
//   - <prefix>:login_ip: per IP
package rate
