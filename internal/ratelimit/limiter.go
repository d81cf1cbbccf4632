// Package ratelimit provides the token bucket shared by callers of rate-limited
// remote APIs (LLM providers and Azure DevOps).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. A nil *Limiter never throttles, so optional
// limits can be passed around without checks.
type Limiter struct {
	mu       sync.Mutex
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
	now      func() time.Time
}

// New returns a bucket holding burst tokens, refilled at perMinute.
// Non-positive arguments fall back to a burst of 10 and 30 per minute.
func New(burst int, perMinute float64) *Limiter {
	if burst <= 0 {
		burst = 10
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Limiter{
		tokens:   float64(burst),
		max:      float64(burst),
		rate:     perMinute / 60.0,
		lastTime: time.Now(),
		now:      time.Now,
	}
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.lastTime).Seconds() * l.rate
	if l.tokens > l.max {
		l.tokens = l.max
	}
	l.lastTime = now
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1.0 {
			l.tokens -= 1.0
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1.0 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available reports the whole tokens currently in the bucket.
func (l *Limiter) Available() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return int(l.tokens)
}
