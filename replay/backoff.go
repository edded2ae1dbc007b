package replay

import (
	"math"
	"math/rand/v2"
	"time"
)

/* Exponential backoff with uniform jitter, consumed by the worker that
 * drives the replay queue. The jitter spreads retries of many
 * concurrently-failing deliveries so they do not storm in lockstep.
 */

type Backoff struct {
	opts Options

	// rnd returns a uniform float in [0, 1); replaceable in tests.
	rnd func() float64
}

// NewBackoff creates the policy. Options must already be validated.
func NewBackoff(opts Options) *Backoff {
	return &Backoff{
		opts: opts,
		rnd:  rand.Float64,
	}
}

// Base returns the pre-jitter delay for an attempt:
// min(max, initial × multiplier^attempt). Monotonically non-decreasing
// in attempt while below the cap.
func (b *Backoff) Base(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.opts.InitialBackoff) * math.Pow(b.opts.BackoffMultiplier, float64(attempt))
	if d > float64(b.opts.MaxBackoff) || math.IsInf(d, 1) {
		return b.opts.MaxBackoff
	}
	return time.Duration(d)
}

// Delay returns the base delay perturbed by ±(jitter × delay), drawn
// uniformly. Never negative.
func (b *Backoff) Delay(attempt int) time.Duration {
	base := b.Base(attempt)
	if b.opts.JitterFactor == 0 || base == 0 {
		return base
	}
	spread := (2*b.rnd() - 1) * b.opts.JitterFactor * float64(base)
	d := time.Duration(float64(base) + spread)
	if d < 0 {
		return 0
	}
	return d
}
