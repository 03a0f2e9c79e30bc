package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 30 * time.Minute

type ipLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	last    time.Time
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // map[string]*ipLimiter
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per IP
// with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst, now: time.Now}
}

func (rl *RateLimiter) get(ip string) *ipLimiter {
	if v, ok := rl.limiters.Load(ip); ok {
		return v.(*ipLimiter)
	}
	lim := &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst), last: rl.now()}
	v, _ := rl.limiters.LoadOrStore(ip, lim)
	return v.(*ipLimiter)
}

// Cleanup drops limiters that have been idle for a while.
func (rl *RateLimiter) Cleanup() {
	now := rl.now()
	rl.limiters.Range(func(key, val any) bool {
		il := val.(*ipLimiter)
		il.mu.Lock()
		idle := now.Sub(il.last) > limiterIdleTTL
		il.mu.Unlock()
		if idle {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RunCleanup calls Cleanup every interval until done is closed.
func (rl *RateLimiter) RunCleanup(interval time.Duration, done <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.Cleanup()
		case <-done:
			return
		}
	}
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		il := rl.get(clientIP(r))
		il.mu.Lock()
		il.last = rl.now()
		il.mu.Unlock()

		if !il.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
