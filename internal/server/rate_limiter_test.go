package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "call %d within burst should pass", i)
	}
	assert.False(t, rl.allow(), "call beyond burst should be rejected")
}

func TestRateLimiterRefill(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	time.Sleep(150 * time.Millisecond)
	assert.True(t, rl.allow(), "tokens should refill over time")
}

func TestRateLimiterZeroConfig(t *testing.T) {
	rl := newRateLimiter(0, 0)
	assert.True(t, rl.allow(), "zero-value configuration still permits traffic")
}
