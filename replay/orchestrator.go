package replay

import (
	"context"
	"fmt"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/fault"
	"github.com/hookrelay/hookrelay/telemetry"
)

/* Orchestrator re-drives a previously failed delivery through the
 * processing pipeline and decides retry versus permanent failure.
 * The three outcomes carry different operational responses: ack,
 * re-poll later, escalate to the dead-letter store.
 */

// Outcome is the three-way result of one replay attempt. A scheduled
// retry is not an operational error and must not be alerted on.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSucceeded
	OutcomeRetryScheduled
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRetryScheduled:
		return "retry_scheduled"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

type Orchestrator struct {
	store     delivery.Reader
	processor delivery.UseCase
	queue     Queue
	opts      Options
	metrics   *telemetry.Recorder
}

// NewOrchestrator creates the replay orchestrator. Options must already
// be validated.
func NewOrchestrator(store delivery.Reader, processor delivery.UseCase, queue Queue, opts Options, metrics *telemetry.Recorder) *Orchestrator {
	return &Orchestrator{
		store:     store,
		processor: processor,
		queue:     queue,
		opts:      opts,
		metrics:   metrics,
	}
}

// Replay drives one attempt.
//
// Succeeded is terminal (including the case where an earlier attempt
// persisted the delivery but its success signal was lost).
// RetryScheduled means the command was re-enqueued with an incremented
// attempt; the error is nil. Exhausted means the retry budget is spent;
// the returned error carries replay_max_attempts wrapping the last
// pipeline failure, as the human-readable escalation reason.
// OutcomeUnknown with an error reports an infrastructure failure of the
// replay machinery itself; the attempt was neither applied nor consumed.
func (o *Orchestrator) Replay(ctx context.Context, cmd Command) (Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return OutcomeUnknown, err
	}

	event := cmd.Process.EventName.String()

	_, found, err := o.store.Get(ctx, cmd.Process.DeliveryID)
	if err != nil {
		return OutcomeUnknown, fault.Wrap(fault.CodeReplayStorageCheckFailed,
			fmt.Errorf("checking delivery %s before replay: %w", cmd.Process.DeliveryID, err))
	}
	if found {
		return OutcomeSucceeded, nil
	}

	perr := o.processor.Process(ctx, cmd.Process)
	if perr == nil {
		return OutcomeSucceeded, nil
	}

	if cmd.Attempt+1 >= o.opts.MaxRetryAttempts {
		o.metrics.ReplayExhausted(ctx, event)
		return OutcomeExhausted, fault.Wrap(fault.CodeReplayMaxAttempts,
			fmt.Errorf("delivery %s failed after %d attempts: %w", cmd.Process.DeliveryID, cmd.Attempt+1, perr))
	}

	if err := o.queue.Enqueue(ctx, cmd.NextAttempt()); err != nil {
		return OutcomeUnknown, fault.Wrap(fault.CodeReplayEnqueueFailed,
			fmt.Errorf("re-enqueueing delivery %s: %w", cmd.Process.DeliveryID, err))
	}
	o.metrics.ReplayScheduled(ctx, event)
	return OutcomeRetryScheduled, nil
}
