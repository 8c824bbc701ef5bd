package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a per-provider token bucket consulted before every
// upstream attempt. Tokens refill continuously at the configured rate up to
// capacity; the bucket starts full.
type RateLimiter struct {
	name     string
	capacity int
	rate     rate.Limit
	limiter  *rate.Limiter
	observer Observer
}

// NewRateLimiter creates a limiter holding capacity tokens and refilling at
// refillPerSecond.
func NewRateLimiter(name string, capacity int, refillPerSecond float64) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	r := rate.Limit(refillPerSecond)
	return &RateLimiter{
		name:     name,
		capacity: capacity,
		rate:     r,
		limiter:  rate.NewLimiter(r, capacity),
		observer: NopObserver{},
	}
}

// NewHourlyRateLimiter mirrors the upstream quota style: requestsPerHour
// tokens of capacity, refilled evenly across the hour.
func NewHourlyRateLimiter(name string, requestsPerHour int) *RateLimiter {
	return NewRateLimiter(name, requestsPerHour, float64(requestsPerHour)/3600.0)
}

// SetObserver installs an observer for wait events.
func (l *RateLimiter) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	l.observer = o
}

// Name returns the provider this limiter throttles.
func (l *RateLimiter) Name() string { return l.name }

// Capacity returns the bucket size.
func (l *RateLimiter) Capacity() int { return l.capacity }

// Tokens reports the currently available tokens.
func (l *RateLimiter) Tokens() float64 { return l.limiter.Tokens() }

// Acquire takes one token, waiting for a refill when the bucket is empty.
// It gives up with a TimeoutError once timeout (if positive) or ctx expires;
// a failed wait consumes nothing.
func (l *RateLimiter) Acquire(ctx context.Context, timeout time.Duration) *Error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := l.limiter.Wait(ctx)
	waited := time.Since(start)

	if err != nil {
		e := NewError(KindTimeout, l.name, "rate limiter: no token available within %s", timeout)
		l.observer.ObserveThrottle(l.name, waited, e)
		return e
	}
	l.observer.ObserveThrottle(l.name, waited, nil)
	return nil
}
