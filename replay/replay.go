package replay

import (
	"fmt"
	"time"

	"github.com/hookrelay/hookrelay/delivery"
)

/* Command wraps a processing command with its replay attempt counter.
 * Commands are value objects: NextAttempt returns a new instance and
 * never mutates the original.
 */

type Command struct {
	Process delivery.ProcessCommand
	Attempt int
}

// NewCommand wraps a processing command for its first replay attempt.
func NewCommand(p delivery.ProcessCommand) Command {
	return Command{Process: p, Attempt: 0}
}

// NextAttempt returns a copy with the attempt counter incremented.
func (c Command) NextAttempt() Command {
	c.Attempt++
	return c
}

// Validate checks the command preconditions.
func (c Command) Validate() error {
	if c.Attempt < 0 {
		return fmt.Errorf("validating replay command: attempt must not be negative, got %d", c.Attempt)
	}
	if err := c.Process.Validate(); err != nil {
		return fmt.Errorf("validating replay command: %w", err)
	}
	return nil
}

// Options is the retry policy configuration. Invalid combinations are a
// startup-time error: validate eagerly, before any worker runs.
type Options struct {
	MaxRetryAttempts  int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFactor      float64
	PollInterval      time.Duration
}

// DefaultOptions returns the reference retry policy.
func DefaultOptions() Options {
	return Options{
		MaxRetryAttempts:  5,
		InitialBackoff:    5 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
		PollInterval:      10 * time.Second,
	}
}

// Validate checks every policy constraint.
func (o Options) Validate() error {
	if o.MaxRetryAttempts < 1 {
		return fmt.Errorf("validating replay options: max retry attempts must be at least 1, got %d", o.MaxRetryAttempts)
	}
	if o.InitialBackoff < 0 {
		return fmt.Errorf("validating replay options: initial backoff must not be negative, got %s", o.InitialBackoff)
	}
	if o.MaxBackoff < o.InitialBackoff {
		return fmt.Errorf("validating replay options: max backoff %s must not be below initial backoff %s", o.MaxBackoff, o.InitialBackoff)
	}
	if o.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("validating replay options: backoff multiplier must be greater than 1.0, got %g", o.BackoffMultiplier)
	}
	if o.JitterFactor < 0 || o.JitterFactor > 1 {
		return fmt.Errorf("validating replay options: jitter factor must be within [0, 1], got %g", o.JitterFactor)
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("validating replay options: poll interval must not be negative, got %s", o.PollInterval)
	}
	return nil
}
