package tutorapi

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket pacing outgoing attempts. Burst tokens are
// available up front and one token is added every interval.
type RateLimiter struct {
	mu         sync.Mutex
	burst      int
	tokens     int
	interval   time.Duration
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter allows burst attempts at once and one more per interval.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		burst:      burst,
		tokens:     burst,
		interval:   interval,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.reserve()
		if ok {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Tokens reports the tokens currently available.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// reserve takes a token, or reports how long until the next one.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens > 0 {
		rl.tokens--
		return 0, true
	}
	return rl.interval - rl.now().Sub(rl.lastRefill), false
}

func (rl *RateLimiter) refillLocked() {
	if rl.interval <= 0 {
		rl.tokens = rl.burst
		return
	}

	now := rl.now()
	added := int(now.Sub(rl.lastRefill) / rl.interval)
	if added == 0 {
		return
	}
	rl.tokens += added
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = rl.lastRefill.Add(time.Duration(added) * rl.interval)
	if rl.tokens == rl.burst {
		rl.lastRefill = now
	}
}
