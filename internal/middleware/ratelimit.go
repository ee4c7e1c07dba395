package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type rateBucket struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed-window per-address limiter. It guards the auth and
// session-transition endpoints against secret guessing; telemetry ingestion
// is deliberately not behind it.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}

	go func() {
		for {
			time.Sleep(window)
			rl.mu.Lock()
			for addr, b := range rl.buckets {
				if time.Since(b.windowStart) > window {
					delete(rl.buckets, addr)
				}
			}
			rl.mu.Unlock()
		}
	}()

	return rl
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP runs first, so RemoteAddr is the client address; strip the
		// port so one client is one bucket regardless of source port.
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}

		rl.mu.Lock()
		b, ok := rl.buckets[addr]
		if !ok || time.Since(b.windowStart) > rl.window {
			rl.buckets[addr] = &rateBucket{count: 1, windowStart: time.Now()}
			rl.mu.Unlock()
			next.ServeHTTP(w, r)
			return
		}

		b.count++
		count := b.count
		rl.mu.Unlock()

		if count > rl.limit {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
