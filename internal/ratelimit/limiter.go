// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned by CheckLimit when a tool's bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// refill brings key's bucket up to date and returns it. Caller holds l.mu.
func (l *Limiter) refill(key string) *bucket {
	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// Allow checks if a request for the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens < 1.0 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter reports how long until key has a whole token again. It is
// zero when a request would be allowed now, and negative when the bucket
// never refills.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens >= 1.0 {
		return 0
	}
	if l.rate <= 0 {
		return -1
	}
	missing := 1.0 - b.tokens
	return time.Duration(missing / l.rate * float64(time.Second))
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// A run spawns one goroutine per agent, so it gets the tightest budget.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"egress_run":     NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"egress_history": NewLimiter(1.0, 10),      // 60/minute, burst 10
		"egress_get_run": NewLimiter(1.0, 10),      // 60/minute, burst 10
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrRateLimited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if !limiter.Allow(toolName) {
		if wait := limiter.RetryAfter(toolName); wait > 0 {
			return fmt.Errorf("%w for %s, retry in %v", ErrRateLimited, toolName, wait.Round(time.Second))
		}
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}
	return nil
}
