package delivery

import (
	"fmt"
	"strings"
	"time"
)

/* Delivery is the persisted record of one inbound webhook event.
 * Uses value semantics as it represents data, not behavior.
 * Rows are write-once: a DeliveryID is never updated after Save.
 */

// ID is the provider-assigned, opaque identifier of one delivery.
type ID string

// Validate checks the id precondition (non-empty, immutable otherwise).
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("delivery id must not be empty")
	}
	return nil
}

func (id ID) String() string {
	return string(id)
}

// EventName is the dotted event/action taxonomy, e.g. "issues.opened".
type EventName string

// Validate checks the event name precondition.
func (e EventName) Validate() error {
	if e == "" {
		return fmt.Errorf("event name must not be empty")
	}
	return nil
}

// Event returns the event part before the first dot.
func (e EventName) Event() string {
	name, _, _ := strings.Cut(string(e), ".")
	return name
}

// Action returns the action part after the first dot, or "" when the
// name carries no action.
func (e EventName) Action() string {
	_, action, _ := strings.Cut(string(e), ".")
	return action
}

func (e EventName) String() string {
	return string(e)
}

// Delivery is a successfully validated, de-duplicated delivery.
type Delivery struct {
	ID             ID
	EventName      EventName
	ReceivedAt     time.Time // always UTC
	Payload        []byte
	InstallationID int64 // 0 when the event is not installation-scoped
}
