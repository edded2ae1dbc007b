package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/replay"
)

/* The dead-letter store is the terminal home for deliveries whose retry
 * budget is exhausted, awaiting manual inspection. It must never lose
 * data silently: every write is durable before the call returns, and
 * every failure is surfaced to the caller verbatim.
 */

// IDPrefix prefixes every dead-letter identifier.
const IDPrefix = "dlq-"

// Item is one permanently-quarantined replay command.
type Item struct {
	ID        string
	Command   replay.Command
	Reason    string
	FailedAt  time.Time
	LastError string // optional
}

// NewItemID generates a prefixed, time-ordered identifier.
func NewItemID(now time.Time) string {
	return fmt.Sprintf("%s%020d-%s", IDPrefix, now.UnixNano(), uuid.NewString())
}

// Requeued converts the item back into a fresh replay command with the
// attempt counter reset to zero.
func (i Item) Requeued() replay.Command {
	return replay.NewCommand(i.Command.Process)
}

// Store is the durable quarantine port.
type Store interface {
	// MoveToDeadLetter durably quarantines the command. lastErr may be nil.
	MoveToDeadLetter(ctx context.Context, cmd replay.Command, reason string, lastErr error) (Item, error)

	// GetAll lists items ordered most-recent-failure-first.
	GetAll(ctx context.Context) ([]Item, error)

	// GetByID returns the item, failing with dead_letter_not_found when absent.
	GetByID(ctx context.Context, id string) (Item, error)

	// Requeue removes the item and returns it as a fresh command with
	// attempt zero. Fails with dead_letter_not_found when absent.
	Requeue(ctx context.Context, id string) (replay.Command, error)

	// Delete permanently discards the item. Fails with
	// dead_letter_not_found when absent.
	Delete(ctx context.Context, id string) error
}

// itemRecord is the durable wire form shared by the adapters.
type itemRecord struct {
	ID             string    `json:"id"`
	Reason         string    `json:"reason"`
	FailedAt       time.Time `json:"failed_at"`
	LastError      string    `json:"last_error,omitempty"`
	DeliveryID     string    `json:"delivery_id"`
	EventName      string    `json:"event_name"`
	Payload        []byte    `json:"payload"`
	InstallationID int64     `json:"installation_id,omitempty"`
	Signature      string    `json:"signature"`
	RawPayload     []byte    `json:"raw_payload"`
	Attempt        int       `json:"attempt"`
}

func EncodeItem(i Item) ([]byte, error) {
	data, err := json.Marshal(itemRecord{
		ID:             i.ID,
		Reason:         i.Reason,
		FailedAt:       i.FailedAt,
		LastError:      i.LastError,
		DeliveryID:     i.Command.Process.DeliveryID.String(),
		EventName:      i.Command.Process.EventName.String(),
		Payload:        i.Command.Process.Payload,
		InstallationID: i.Command.Process.InstallationID,
		Signature:      i.Command.Process.Signature,
		RawPayload:     i.Command.Process.RawPayload,
		Attempt:        i.Command.Attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding dead-letter item: %w", err)
	}
	return data, nil
}

func DecodeItem(data []byte) (Item, error) {
	var rec itemRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Item{}, fmt.Errorf("decoding dead-letter item: %w", err)
	}
	return Item{
		ID:        rec.ID,
		Reason:    rec.Reason,
		FailedAt:  rec.FailedAt,
		LastError: rec.LastError,
		Command: replay.Command{
			Process: delivery.ProcessCommand{
				DeliveryID:     delivery.ID(rec.DeliveryID),
				EventName:      delivery.EventName(rec.EventName),
				Payload:        rec.Payload,
				InstallationID: rec.InstallationID,
				Signature:      rec.Signature,
				RawPayload:     rec.RawPayload,
			},
			Attempt: rec.Attempt,
		},
	}, nil
}
