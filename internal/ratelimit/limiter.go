// Package ratelimit provides a token bucket limiter for gateway calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Gateway defaults: 5 req/sec sustained with bursts of 20.
const (
	GatewayRatePerSec     = 5.0
	GatewayBurstCapacity  = 20.0
	slowWaitWarnThreshold = 2 * time.Second
	warnInterval          = 10 * time.Second
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
// A cooldown, set after the server throttles, blocks every caller until it
// expires.
type RateLimiter struct {
	tokens        float64
	maxTokens     float64
	refillRate    float64
	lastRefill    time.Time
	cooldownUntil time.Time
	lastWarnTime  time.Time
	mu            sync.Mutex
}

// NewRateLimiter creates a limiter that starts with a full bucket.
func NewRateLimiter(tokensPerSecond, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// NewGatewayRateLimiter creates the limiter shared by all gateway calls.
func NewGatewayRateLimiter() *RateLimiter {
	return NewRateLimiter(GatewayRatePerSec, GatewayBurstCapacity)
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rl.TryAcquire() {
			if waited := time.Since(start); waited > slowWaitWarnThreshold {
				log.Debug().Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}

		wait := rl.TimeUntilNextToken()
		rl.warnSlow(wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) warnSlow(wait time.Duration) {
	if wait <= slowWaitWarnThreshold {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.lastWarnTime) > warnInterval {
		log.Warn().Dur("wait", wait).Msg("Rate limited, waiting for gateway capacity")
		rl.lastWarnTime = time.Now()
	}
}

// TryAcquire takes one token without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Before(rl.cooldownUntil) {
		return false
	}
	rl.refillLocked(now)

	if rl.tokens >= 1.0 {
		rl.tokens--
		return true
	}
	return false
}

// TimeUntilNextToken is how long until TryAcquire can succeed.
func (rl *RateLimiter) TimeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if remaining := rl.cooldownUntil.Sub(now); remaining > 0 {
		return remaining
	}
	rl.refillLocked(now)

	needed := 1.0 - rl.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / rl.refillRate * float64(time.Second))
}

// Drain empties the bucket so the next callers pace at the refill rate.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	rl.lastRefill = time.Now()
}

// SetCooldown blocks acquisition for d. A shorter cooldown never cuts an
// existing one.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until := time.Now().Add(d); until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns the time left in the current cooldown.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if remaining := time.Until(rl.cooldownUntil); remaining > 0 {
		return remaining
	}
	return 0
}

// GetCurrentTokens returns the current number of tokens.
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	return rl.tokens
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}
