package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		rate       uint
		burst      uint
		wantTokens float64
		unlimited  bool
	}{
		{name: "rate and burst", rate: 100, burst: 200, wantTokens: 200},
		{name: "burst raised to rate", rate: 100, burst: 10, wantTokens: 100},
		{name: "unlimited", rate: 0, burst: 0, unlimited: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rate, tt.burst)
			assert.Equal(t, tt.unlimited, rl.Unlimited())
			if !tt.unlimited {
				assert.InDelta(t, tt.wantTokens, rl.Tokens(), 1)
			}
		})
	}
}

func TestAllowBurstThenReject(t *testing.T) {
	rl := New(10, 20)

	allowed := 0
	for i := 0; i < 30; i++ {
		if rl.Allow() {
			allowed++
		}
	}
	// The burst plus at most a token refilled while looping.
	assert.GreaterOrEqual(t, allowed, 20)
	assert.LessOrEqual(t, allowed, 21)
	assert.False(t, rl.Allow())
}

func TestAllowRefills(t *testing.T) {
	rl := New(100, 100)
	for rl.Allow() {
	}
	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.Allow(), "tokens should refill at the sustained rate")
}

func TestUnlimited(t *testing.T) {
	rl := New(0, 0)
	for i := 0; i < 100000; i++ {
		if !rl.Allow() {
			t.Fatalf("unlimited limiter rejected packet %d", i)
		}
	}
}

func BenchmarkAllow(b *testing.B) {
	rl := New(1_000_000, 1_000_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Allow()
	}
}
