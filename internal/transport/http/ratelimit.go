package http

import (
	"sync"
	"time"
)

// rateLimiter counts events in fixed one-minute windows.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	counter int
	window  time.Time
	now     func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{
		limit: limit,
		now:   time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.window) >= time.Minute {
		r.window = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
