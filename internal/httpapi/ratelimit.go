package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/modernwms/wmsauth"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerMinute = 120
	defaultLimiterKeys       = 10000
	limiterIdleTTL           = 10 * time.Minute
)

// ipLimiter keeps one token bucket per client IP. Idle buckets expire so
// the table stays bounded.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	perMin  int
	buckets *expirable.LRU[string, *rate.Limiter]
}

func newIPLimiter(perMinute, burst, maxKeys int) *ipLimiter {
	if perMinute <= 0 {
		perMinute = defaultRequestsPerMinute
	}
	if burst <= 0 {
		burst = perMinute
	}
	if maxKeys <= 0 {
		maxKeys = defaultLimiterKeys
	}
	return &ipLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		perMin:  perMinute,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, limiterIdleTTL),
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	if lim, ok := l.buckets.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Add(ip, lim)
	return lim
}

// middleware answers 429 once an IP drains its bucket. /healthz and
// /metrics are exempt.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		lim := l.get(wmsauth.ClientIPFromContext(r.Context()))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.perMin))
		if !lim.Allow() {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeFailure(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}

		remaining := int(lim.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the caller address. Forwarding headers are honored
// only behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := wmsauth.WithClientIP(r.Context(), clientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
