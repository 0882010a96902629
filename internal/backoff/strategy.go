// Package backoff computes delays between retry attempts.
package backoff

import (
	"math/rand"
	"time"
)

// Params carries the retry delay settings shared by every strategy.
type Params struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter adds up to Jitter*delay of random extra wait, clamped to [0, 1].
	Jitter float64
}

// Strategy turns an attempt number into a wait duration.
type Strategy interface {
	Delay(attempt int, p Params) time.Duration
}

// Exponential waits min(Base * Multiplier^attempt, Max), plus optional jitter
// that never pushes the delay past Max.
type Exponential struct{}

func (Exponential) Delay(attempt int, p Params) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 2^30 already overflows any sane Max; stop multiplying there
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(p.Base) * Pow(p.Multiplier, attempt))
	if d < 0 || d > p.Max {
		d = p.Max
	}

	if j := clamp(p.Jitter); j > 0 {
		extra := time.Duration(float64(d) * j * rand.Float64())
		if d+extra > p.Max {
			return p.Max
		}
		d += extra
	}
	return d
}

// Decorrelated picks a random delay in [Base, min(Max, Base*3^attempt)].
// See https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type Decorrelated struct{}

func (Decorrelated) Delay(attempt int, p Params) time.Duration {
	if attempt <= 0 {
		return p.Base
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(p.Base)
	upper := base * Pow(3.0, attempt)
	if upper > float64(p.Max) || upper < 0 {
		upper = float64(p.Max)
	}
	if upper < base {
		upper = base
	}

	d := time.Duration(base + rand.Float64()*(upper-base))
	if d < 0 || d > p.Max {
		d = p.Max
	}
	return d
}

func clamp(j float64) float64 {
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}

// Pow is base^exponent for small non-negative integer exponents.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
