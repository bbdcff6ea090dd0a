package rate

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxKeys bounds a [MemoryLimiter] built with MaxKeys <= 0.
const DefaultMaxKeys = 100_000

type window struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter is the single-process counterpart of [Limiter]. Counters
// live in an expiring LRU, so memory stays bounded under identifier
// spraying; an evicted counter simply restarts at zero.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	config  Config
	now     func() time.Time
}

// NewMemory returns an in-process limiter holding at most maxKeys counters.
func NewMemory(cfg Config, maxKeys int) *MemoryLimiter {
	cfg = cfg.withDefaults()
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &MemoryLimiter{
		windows: expirable.NewLRU[string, *window](maxKeys, nil, cfg.Cooldown),
		config:  cfg,
		now:     time.Now,
	}
}

// WithClock overrides the clock used for window expiry.
func (m *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	m.now = now
	return m
}

func (m *MemoryLimiter) CheckLogin(_ context.Context, identifier, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.keys(identifier, ip) {
		if m.current(key) >= m.config.MaxAttempts {
			return ErrRateLimited
		}
	}
	return nil
}

func (m *MemoryLimiter) IncrementLogin(_ context.Context, identifier, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	limited := false
	for _, key := range m.keys(identifier, ip) {
		w, ok := m.windows.Get(key)
		if !ok || !now.Before(w.expiresAt) {
			w = &window{expiresAt: now.Add(m.config.Cooldown)}
			m.windows.Add(key, w)
		}
		w.count++
		if w.count >= m.config.MaxAttempts {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (m *MemoryLimiter) ResetLogin(_ context.Context, identifier, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.keys(identifier, ip) {
		m.windows.Remove(key)
	}
	return nil
}

// Attempts returns the live failure count for identifier.
func (m *MemoryLimiter) Attempts(_ context.Context, identifier string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current("login:" + normalizeIdentifier(identifier)), nil
}

// Len reports the number of tracked counters.
func (m *MemoryLimiter) Len() int {
	return m.windows.Len()
}

// current must be called with m.mu held.
func (m *MemoryLimiter) current(key string) int {
	w, ok := m.windows.Peek(key)
	if !ok {
		return 0
	}
	if !m.now().Before(w.expiresAt) {
		m.windows.Remove(key)
		return 0
	}
	return w.count
}

func (m *MemoryLimiter) keys(identifier, ip string) []string {
	keys := []string{"login:" + normalizeIdentifier(identifier)}
	if m.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "login_ip:"+ip)
	}
	return keys
}
