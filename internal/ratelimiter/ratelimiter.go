// Package ratelimiter bounds how fast a single client may send packets.
package ratelimiter

import (
	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket: tokens are added at a constant rate and
// each packet consumes one. The bucket holds at most burst tokens, so a
// client may exceed the sustained rate briefly (for example while streaming
// movement after login) but not for long.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing packetsPerSecond sustained and burst at
// once. packetsPerSecond = 0 disables limiting. A burst below the rate is
// raised to the rate.
func New(packetsPerSecond, burst uint) *RateLimiter {
	if packetsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < packetsPerSecond {
		burst = packetsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(packetsPerSecond), int(burst)),
	}
}

// Allow consumes one token if available. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Unlimited reports whether the limiter was created with a zero rate.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Tokens returns the tokens currently in the bucket, for tests and debugging.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
