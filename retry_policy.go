package tutorapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ambiyansyah-risyal/tutorapi/internal/backoff"
)

// BackoffStrategy selects how retry delays grow.
type BackoffStrategy int

const (
	// ExponentialBackoff waits min(BaseDelay * Multiplier^attempt, MaxDelay).
	ExponentialBackoff BackoffStrategy = iota
	// DecorrelatedJitter spreads retries randomly between BaseDelay and MaxDelay.
	DecorrelatedJitter
)

func (s BackoffStrategy) String() string {
	switch s {
	case DecorrelatedJitter:
		return "decorrelated"
	default:
		return "exponential"
	}
}

// ParseBackoffStrategy maps a config string to a strategy.
func ParseBackoffStrategy(s string) (BackoffStrategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exponential":
		return ExponentialBackoff, true
	case "decorrelated":
		return DecorrelatedJitter, true
	default:
		return ExponentialBackoff, false
	}
}

// RetryPolicy bounds and spaces retries of network and server failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64
	Strategy   BackoffStrategy
}

// DefaultRetryPolicy is 3 retries at 1s, 2s, 4s, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2,
		Strategy:   ExponentialBackoff,
	}
}

// ShouldRetry reports whether a failure of kind at attempt gets another try
// and how long to wait first. A positive hint (from Retry-After) replaces
// the computed delay but is still capped at MaxDelay.
func (p RetryPolicy) ShouldRetry(kind ErrorKind, attempt int, hint time.Duration) (time.Duration, bool) {
	if !kind.Retryable() || attempt >= p.MaxRetries {
		return 0, false
	}
	if hint > 0 {
		if hint > p.MaxDelay {
			return p.MaxDelay, true
		}
		return hint, true
	}
	return p.Delay(attempt), true
}

// Delay is the wait before retry number attempt+1.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	params := backoff.Params{
		Base:       p.BaseDelay,
		Max:        p.MaxDelay,
		Multiplier: p.Multiplier,
		Jitter:     p.Jitter,
	}
	return p.strategy().Delay(attempt, params)
}

func (p RetryPolicy) strategy() backoff.Strategy {
	if p.Strategy == DecorrelatedJitter {
		return backoff.Decorrelated{}
	}
	return backoff.Exponential{}
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds format and HTTP-date format.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
