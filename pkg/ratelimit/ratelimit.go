package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry pairs a limiter with its last access time so stale clients
// can be evicted.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter provides per-client rate limiting
type Limiter struct {
	entries map[string]*entry
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
}

// NewLimiter creates a new rate limiter
// rps: requests per second per client
// burst: maximum burst size per client
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// GetLimiter returns the rate limiter for the given key (e.g. an IP address)
func (l *Limiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()

	return e.limiter
}

// Allow checks if a request should be allowed
func (l *Limiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Middleware creates an HTTP middleware for rate limiting
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(keyFunc(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Cleanup removes limiters that have not been used within maxAge and
// returns how many were evicted.
func (l *Limiter) Cleanup(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	evicted := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}

// StartCleanup evicts stale limiters on the given interval until the
// stop channel closes.
func (l *Limiter) StartCleanup(stop <-chan struct{}, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.Cleanup(maxAge)
			}
		}
	}()
}

// IPKeyFunc extracts the client IP from the request as the rate limit key
func IPKeyFunc(r *http.Request) string {
	// Trust the first hop of X-Forwarded-For when present
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// APIKeyFunc keys the limit on the presented API key so clients behind
// one proxy address get separate budgets. Falls back to the client IP
// for unauthenticated requests.
func APIKeyFunc(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return "key:" + key
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return "key:" + strings.TrimPrefix(authz, "Bearer ")
	}
	return IPKeyFunc(r)
}
