package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names
const (
	EventMovementUpdate  = "movementUpdate"
	EventJoined          = "joined"
	EventUpdatedMovement = "updatedMovement"
	EventLeft            = "left"
)

var ErrMissingEvent = errors.New("envelope has no event name")

// Envelope is a single named event with its payload
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event and its payload into a frame
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses a frame into an envelope. The payload is left undecoded.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}
