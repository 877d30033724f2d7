package ratelimit

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key starts full and refills at
// refillPerSec up to capacity.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	refill   float64
	now      func() time.Time
}

func New(cfg config.RateLimitConfig) *Limiter {
	capacity := cfg.Capacity
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{m: make(map[string]*bucket), capacity: capacity, refill: cfg.RefillPerSec, now: time.Now}
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*l.refill, l.capacity)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets that have been full for at least idle.
func (l *Limiter) Sweep(idle time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.m {
		refilled := b.tokens + now.Sub(b.last).Seconds()*l.refill
		if refilled >= l.capacity && now.Sub(b.last) >= idle {
			delete(l.m, k)
			n++
		}
	}
	return n
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Middleware limits each client IP per scope and answers 429 when exhausted.
func (l *Limiter) Middleware(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP() + ":" + scope) {
				return xhttp.TooManyRequestsResponse(c, "rate limited")
			}
			return next(c)
		}
	}
}
