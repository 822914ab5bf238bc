// Package server throttles inbound frames per connection with a token
// bucket so one chatty client cannot monopolize the hub loop.
package server

import (
	"sync"
	"time"
)

// rateLimiter grants one token per inbound frame. The bucket starts full at
// capacity and refills continuously at capacity tokens per interval, so
// short bursts pass and sustained flooding is shed in the read pump.
type rateLimiter struct {
	mu           sync.Mutex
	tokens       float64
	capacity     float64
	refillPerSec float64
	last         time.Time
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	refill := float64(capacity) / interval.Seconds()
	if refill <= 0 {
		refill = float64(capacity)
	}

	return &rateLimiter{
		tokens:       float64(capacity),
		capacity:     float64(capacity),
		refillPerSec: refill,
		last:         time.Now(),
	}
}

// allow consumes one token, reporting false when the bucket is empty.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// refill credits tokens for the time elapsed since the last check, capped
// at the bucket capacity. Callers must hold the mutex.
func (rl *rateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.last).Seconds()
	rl.last = now

	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillPerSec
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
}
