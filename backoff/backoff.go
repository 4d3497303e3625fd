// Package backoff computes the pause a tenant worker takes after an
// infrastructure error, so a failing store is not retried in a tight
// loop. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy computes the pause before retrying after consecutive
// failures.
type Strategy interface {
	// Delay returns how long to wait after failure n (1-indexed).
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant pauses the same amount no matter how many failures preceded.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter doubles a base delay per failure, caps it at
// Max, and picks a uniform random pause up to that bound so workers
// recovering at the same moment do not retry in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)).
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	bound := e.Initial
	for i := 1; i < attempt; i++ {
		bound *= 2
		if e.Max > 0 && bound >= e.Max {
			bound = e.Max
			break
		}
	}
	if bound <= 0 {
		return 0
	}
	return rand.N(bound) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the backoff workers use when none is
// configured: Constant at one second, matching the queue poll cadence.
func DefaultStrategy() Strategy {
	return NewConstant(1 * time.Second)
}
