package replay

import (
	"encoding/json"
	"fmt"

	"github.com/hookrelay/hookrelay/delivery"
)

// commandRecord is the durable wire form of a Command, shared by the
// queue and dead-letter adapters so records stay interchangeable.
type commandRecord struct {
	DeliveryID     string `json:"delivery_id"`
	EventName      string `json:"event_name"`
	Payload        []byte `json:"payload"`
	InstallationID int64  `json:"installation_id,omitempty"`
	Signature      string `json:"signature"`
	RawPayload     []byte `json:"raw_payload"`
	Attempt        int    `json:"attempt"`
}

// EncodeCommand serializes a command for durable storage.
func EncodeCommand(c Command) ([]byte, error) {
	data, err := json.Marshal(commandRecord{
		DeliveryID:     c.Process.DeliveryID.String(),
		EventName:      c.Process.EventName.String(),
		Payload:        c.Process.Payload,
		InstallationID: c.Process.InstallationID,
		Signature:      c.Process.Signature,
		RawPayload:     c.Process.RawPayload,
		Attempt:        c.Attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding replay command: %w", err)
	}
	return data, nil
}

// DecodeCommand deserializes a stored command.
func DecodeCommand(data []byte) (Command, error) {
	var rec commandRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Command{}, fmt.Errorf("decoding replay command: %w", err)
	}
	return Command{
		Process: delivery.ProcessCommand{
			DeliveryID:     delivery.ID(rec.DeliveryID),
			EventName:      delivery.EventName(rec.EventName),
			Payload:        rec.Payload,
			InstallationID: rec.InstallationID,
			Signature:      rec.Signature,
			RawPayload:     rec.RawPayload,
		},
		Attempt: rec.Attempt,
	}, nil
}
