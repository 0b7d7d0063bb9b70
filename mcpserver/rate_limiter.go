package mcpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing requestsPerSecond per key with
// the given burst. It returns nil when requestsPerSecond <= 0; a nil
// limiter allows everything.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed now. When it may not,
// retryAfter is the wait until the next token.
func (r *RateLimiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	return r.AllowAt(key, time.Now())
}

// AllowAt is Allow evaluated at t
func (r *RateLimiter) AllowAt(key string, t time.Time) (bool, time.Duration) {
	if r == nil {
		return true, 0
	}
	if key == "" {
		key = "default"
	}

	r.mu.Lock()
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = limiter
	}
	r.mu.Unlock()

	reservation := limiter.ReserveN(t, 1)
	delay := reservation.DelayFrom(t)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(t)
	return false, delay
}

// Keys returns the number of tracked client keys
func (r *RateLimiter) Keys() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
