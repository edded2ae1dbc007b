package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hookrelay/hookrelay/deadletter"
	"github.com/hookrelay/hookrelay/replay"
	"github.com/hookrelay/hookrelay/telemetry"
)

/* Worker drives the replay queue: poll, wait out the backoff for the
 * dequeued attempt, re-drive the delivery through the orchestrator, and
 * escalate exhausted commands to the dead-letter store. Multiple
 * workers against the same queue are safe because the queue's claim is
 * exclusive per record.
 */

type Worker struct {
	queue        replay.Queue
	orchestrator *replay.Orchestrator
	deadLetters  deadletter.Store
	backoff      *replay.Backoff
	pollInterval time.Duration
	log          *zap.Logger
	metrics      *telemetry.Recorder
}

// New creates a worker. Options must already be validated.
func New(queue replay.Queue, orchestrator *replay.Orchestrator, deadLetters deadletter.Store, opts replay.Options, log *zap.Logger, metrics *telemetry.Recorder) *Worker {
	return &Worker{
		queue:        queue,
		orchestrator: orchestrator,
		deadLetters:  deadLetters,
		backoff:      replay.NewBackoff(opts),
		pollInterval: opts.PollInterval,
		log:          log,
		metrics:      metrics,
	}
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("replay worker started", zap.Duration("poll_interval", w.pollInterval))

	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("replay worker stopping")
			return err
		}

		cmd, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("dequeueing replay command", zap.Error(err))
			w.sleep(ctx, w.pollInterval)
			continue
		}
		if !ok {
			w.sleep(ctx, w.pollInterval)
			continue
		}

		if !w.sleep(ctx, w.backoff.Delay(cmd.Attempt)) {
			// Shutting down mid-wait: put the claimed command back so
			// it is not lost.
			w.requeue(ctx, cmd)
			continue
		}

		w.handle(ctx, cmd)
	}
}

func (w *Worker) handle(ctx context.Context, cmd replay.Command) {
	log := w.log.With(
		zap.String("delivery_id", cmd.Process.DeliveryID.String()),
		zap.String("event", cmd.Process.EventName.String()),
		zap.Int("attempt", cmd.Attempt),
	)

	outcome, err := w.orchestrator.Replay(ctx, cmd)
	switch outcome {
	case replay.OutcomeSucceeded:
		log.Info("replay succeeded")

	case replay.OutcomeRetryScheduled:
		log.Info("replay failed, retry scheduled")

	case replay.OutcomeExhausted:
		reason := fmt.Sprintf("retry budget exhausted after %d attempts", cmd.Attempt+1)
		item, derr := w.deadLetters.MoveToDeadLetter(ctx, cmd, reason, err)
		if derr != nil {
			// The dead-letter store is the last line of durability; a
			// failed write goes back on the queue rather than vanishing.
			log.Error("moving command to dead letter", zap.Error(derr))
			w.requeue(ctx, cmd)
			return
		}
		w.metrics.DeadLettered(ctx, cmd.Process.EventName.String())
		log.Warn("command moved to dead letter",
			zap.String("dead_letter_id", item.ID),
			zap.Error(err),
		)

	default:
		// Infrastructure failure of the replay machinery itself; the
		// attempt was neither applied nor consumed.
		log.Error("replay attempt failed", zap.Error(err))
		w.requeue(ctx, cmd)
		w.sleep(ctx, w.pollInterval)
	}
}

// requeue puts a claimed command back with its attempt unchanged,
// surviving cancellation of the polling context.
func (w *Worker) requeue(ctx context.Context, cmd replay.Command) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.queue.Enqueue(rctx, cmd); err != nil {
		w.log.Error("re-enqueueing replay command",
			zap.String("delivery_id", cmd.Process.DeliveryID.String()),
			zap.Error(err),
		)
	}
}

// sleep waits for d, returning false when the context is cancelled first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
