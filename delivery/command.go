package delivery

import "fmt"

// ProcessCommand is the unit of work submitted to the processing
// pipeline. RawPayload holds the exact bytes the sender signed; it must
// never be re-serialized before signature verification.
type ProcessCommand struct {
	DeliveryID     ID
	EventName      EventName
	Payload        []byte
	InstallationID int64
	Signature      string
	RawPayload     []byte
}

// NewProcessCommand builds a command whose persisted payload is the
// signed bytes themselves, which is the common case for JSON webhooks.
func NewProcessCommand(id ID, event EventName, installationID int64, signature string, rawPayload []byte) ProcessCommand {
	return ProcessCommand{
		DeliveryID:     id,
		EventName:      event,
		Payload:        rawPayload,
		InstallationID: installationID,
		Signature:      signature,
		RawPayload:     rawPayload,
	}
}

// Validate checks the command preconditions.
func (c ProcessCommand) Validate() error {
	if err := c.DeliveryID.Validate(); err != nil {
		return fmt.Errorf("validating command: %w", err)
	}
	if err := c.EventName.Validate(); err != nil {
		return fmt.Errorf("validating command: %w", err)
	}
	if c.Signature == "" {
		return fmt.Errorf("validating command: signature must not be empty")
	}
	return nil
}
