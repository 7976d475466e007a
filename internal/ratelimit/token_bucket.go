package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket refills continuously at a fixed rate up to a burst capacity.
// A full bucket at start lets short batches run unthrottled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time
}

// PerMinute builds a bucket admitting rate requests per minute with a burst
// of the same size. rate < 1 yields an unlimited bucket.
func PerMinute(rate int) *TokenBucket {
	if rate < 1 {
		return nil
	}
	return &TokenBucket{
		tokens:   float64(rate),
		capacity: float64(rate),
		perSec:   float64(rate) / 60.0,
		last:     time.Now(),
	}
}

// Allow consumes a token if one is available. A nil bucket always allows.
func (b *TokenBucket) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until a token is available or ctx is done. A nil bucket
// returns immediately.
func (b *TokenBucket) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}
	for {
		b.mu.Lock()
		now := time.Now()
		b.refill(now)
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.perSec * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill credits tokens for the time elapsed since the last call.
// Caller holds the lock.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.perSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}
