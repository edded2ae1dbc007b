package delivery

import (
	"context"
	"errors"
	"time"
)

/* Small, focused port interfaces. The store's uniqueness constraint on
 * the delivery id is the true idempotency enforcement point; the
 * pipeline's duplicate check is an optimization in front of it.
 */

// ErrAlreadyProcessed is returned by Save when a row for the delivery
// id already exists. Callers treat it as the duplicate success path.
var ErrAlreadyProcessed = errors.New("delivery already processed")

// Reader provides lookup of processed deliveries.
type Reader interface {
	/* Get returns the delivery and true when the id was already
	 * durably processed, or false with no error on a miss.
	 */
	Get(ctx context.Context, id ID) (Delivery, bool, error)
}

// Writer provides durable persistence of processed deliveries.
type Writer interface {
	/* Save must be atomic create-or-fail on the delivery id:
	 * a second insert of the same id returns ErrAlreadyProcessed,
	 * never a silent overwrite.
	 */
	Save(ctx context.Context, d Delivery) error
}

// Store combines read and write access to processed deliveries.
type Store interface {
	Reader
	Writer
}

// SecretSource retrieves the shared webhook signing secret.
type SecretSource interface {
	WebhookSecret(ctx context.Context) (string, error)
}

// StaticSecretSource serves a fixed secret loaded at startup.
type StaticSecretSource string

func (s StaticSecretSource) WebhookSecret(ctx context.Context) (string, error) {
	return string(s), nil
}

// UnitOfWork wraps an operation in one transactional boundary, so the
// duplicate check and the save are atomic relative to each other.
type UnitOfWork interface {
	Execute(ctx context.Context, op func(ctx context.Context) error) error
}

// PassthroughUnitOfWork runs the operation with no transaction. Used by
// backends whose single-key writes are already atomic (memory, Redis).
type PassthroughUnitOfWork struct{}

func (PassthroughUnitOfWork) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	return op(ctx)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Router dispatches a persisted delivery to its registered handlers.
type Router interface {
	Route(ctx context.Context, d Delivery) error
}
