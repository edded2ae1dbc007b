package replay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/delivery/memory"
	"github.com/hookrelay/hookrelay/fault"
	"github.com/hookrelay/hookrelay/replay"
)

type fakeProcessor struct {
	err   error
	calls int
}

func (p *fakeProcessor) Process(ctx context.Context, cmd delivery.ProcessCommand) error {
	p.calls++
	return p.err
}

type fakeQueue struct {
	enqueued []replay.Command
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, cmd replay.Command) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, cmd)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (replay.Command, bool, error) {
	if len(q.enqueued) == 0 {
		return replay.Command{}, false, nil
	}
	cmd := q.enqueued[0]
	q.enqueued = q.enqueued[1:]
	return cmd, true, nil
}

type erroringReader struct{ err error }

func (r erroringReader) Get(ctx context.Context, id delivery.ID) (delivery.Delivery, bool, error) {
	return delivery.Delivery{}, false, r.err
}

func options(maxAttempts int) replay.Options {
	return replay.Options{
		MaxRetryAttempts:  maxAttempts,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
		JitterFactor:      0,
		PollInterval:      time.Second,
	}
}

func TestReplay(t *testing.T) {
	ctx := context.Background()

	t.Run("pipeline success is terminal", func(t *testing.T) {
		proc := &fakeProcessor{}
		queue := &fakeQueue{}
		o := replay.NewOrchestrator(memory.NewStore(), proc, queue, options(3), nil)

		outcome, err := o.Replay(ctx, replay.NewCommand(processCommand()))
		require.NoError(t, err)
		assert.Equal(t, replay.OutcomeSucceeded, outcome)
		assert.Empty(t, queue.enqueued)
	})

	t.Run("already persisted delivery short-circuits without reprocessing", func(t *testing.T) {
		store := memory.NewStore()
		cmd := replay.NewCommand(processCommand())
		require.NoError(t, store.Save(ctx, delivery.Delivery{
			ID:        cmd.Process.DeliveryID,
			EventName: cmd.Process.EventName,
		}))

		proc := &fakeProcessor{err: errors.New("must not run")}
		o := replay.NewOrchestrator(store, proc, &fakeQueue{}, options(3), nil)

		outcome, err := o.Replay(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, replay.OutcomeSucceeded, outcome)
		assert.Equal(t, 0, proc.calls)
	})

	t.Run("failure with attempts remaining re-enqueues the next attempt", func(t *testing.T) {
		proc := &fakeProcessor{err: errors.New("handler infra down")}
		queue := &fakeQueue{}
		o := replay.NewOrchestrator(memory.NewStore(), proc, queue, options(3), nil)

		cmd := replay.NewCommand(processCommand())
		outcome, err := o.Replay(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, replay.OutcomeRetryScheduled, outcome)

		require.Len(t, queue.enqueued, 1)
		assert.Equal(t, 1, queue.enqueued[0].Attempt)
		assert.Equal(t, 0, cmd.Attempt)
	})

	t.Run("three attempts with max three: scheduled, scheduled, exhausted", func(t *testing.T) {
		proc := &fakeProcessor{err: errors.New("permanent failure")}
		queue := &fakeQueue{}
		o := replay.NewOrchestrator(memory.NewStore(), proc, queue, options(3), nil)

		cmd := replay.NewCommand(processCommand())

		outcome, err := o.Replay(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, replay.OutcomeRetryScheduled, outcome)

		cmd, ok, err := queue.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		outcome, err = o.Replay(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, replay.OutcomeRetryScheduled, outcome)

		cmd, ok, err = queue.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		outcome, err = o.Replay(ctx, cmd)
		assert.Equal(t, replay.OutcomeExhausted, outcome)
		require.Error(t, err)
		assert.Equal(t, fault.CodeReplayMaxAttempts, fault.CodeOf(err))

		// Re-enqueued exactly max-1 times in total.
		assert.Empty(t, queue.enqueued)
		assert.Equal(t, 3, proc.calls)
	})

	t.Run("storage check failure reports replay_storage_check_failed", func(t *testing.T) {
		o := replay.NewOrchestrator(erroringReader{err: errors.New("db down")}, &fakeProcessor{}, &fakeQueue{}, options(3), nil)

		outcome, err := o.Replay(ctx, replay.NewCommand(processCommand()))
		assert.Equal(t, replay.OutcomeUnknown, outcome)
		require.Error(t, err)
		assert.Equal(t, fault.CodeReplayStorageCheckFailed, fault.CodeOf(err))
	})

	t.Run("enqueue failure reports replay_enqueue_failed", func(t *testing.T) {
		proc := &fakeProcessor{err: errors.New("still failing")}
		queue := &fakeQueue{err: errors.New("queue full")}
		o := replay.NewOrchestrator(memory.NewStore(), proc, queue, options(3), nil)

		outcome, err := o.Replay(ctx, replay.NewCommand(processCommand()))
		assert.Equal(t, replay.OutcomeUnknown, outcome)
		require.Error(t, err)
		assert.Equal(t, fault.CodeReplayEnqueueFailed, fault.CodeOf(err))
	})

	t.Run("invalid command is rejected before any work", func(t *testing.T) {
		proc := &fakeProcessor{}
		o := replay.NewOrchestrator(memory.NewStore(), proc, &fakeQueue{}, options(3), nil)

		_, err := o.Replay(ctx, replay.Command{Process: processCommand(), Attempt: -1})
		require.Error(t, err)
		assert.Equal(t, 0, proc.calls)
	})
}
