package replay

import "context"

// Queue is the durable FIFO of pending replay attempts.
type Queue interface {
	/* Enqueue persists the command as one immutable record. Writers
	 * must use atomic create-or-fail semantics so two concurrent
	 * enqueues never collide on the same identifier.
	 */
	Enqueue(ctx context.Context, cmd Command) error

	/* Dequeue claims and removes the oldest pending record, returning
	 * false when the queue is empty. The claim must be exclusive: two
	 * concurrent consumers never receive the same record. A record
	 * that fails to deserialize is surfaced as an error, not dropped.
	 */
	Dequeue(ctx context.Context) (Command, bool, error)
}
