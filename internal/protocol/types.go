package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message types carried on the shared channel. These strings are a
// cross-instance compatibility contract: new types may be added, but
// existing values must never be repurposed.
const (
	TypeRollTrigger          = "roll_trigger"
	TypeAvailabilityRequest  = "availability_request"
	TypeAvailabilityResponse = "availability_response"
	TypeRollComplete         = "roll_complete"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingID      = errors.New("missing correlation id")
	ErrInvalidPayload = errors.New("invalid payload")
)

type Envelope struct {
	MsgID     string          `json:"msg_id"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DieRequest names one kind of die to roll, abstractly: a style every
// instance understands plus an optional type narrowing it down. Count
// defaults to 1 when omitted.
type DieRequest struct {
	Style string `json:"style"`
	Type  string `json:"type,omitempty"`
	Count int    `json:"count,omitempty"`
}

type RollTriggerPayload struct {
	RollID    string       `json:"roll_id"`
	Subject   string       `json:"subject,omitempty"`
	Dice      []DieRequest `json:"dice"`
	Bonus     int          `json:"bonus,omitempty"`
	Advantage string       `json:"advantage,omitempty"`
	Hidden    bool         `json:"hidden,omitempty"`
}

type AvailabilityRequestPayload struct {
	RequestID string `json:"request_id"`
}

type AvailabilityResponsePayload struct {
	RequestID string `json:"request_id"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

// RollCompletePayload is an optional protocol extension: responders may
// announce finished rolls explicitly instead of relying on observers
// polling shared state. Receivers must work without it.
type RollCompletePayload struct {
	RollID  string         `json:"roll_id"`
	Subject string         `json:"subject,omitempty"`
	Results map[string]int `json:"results"`
	Total   int            `json:"total"`
}

// Encode wraps a payload into a fresh envelope with a unique message id.
func Encode(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		MsgID:     uuid.NewString(),
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   data,
	}, nil
}

// Decode returns the typed payload for a known envelope, or ErrUnknownType
// for anything else on the channel. Unknown types and malformed payloads
// are expected steady-state traffic on a shared channel; callers drop them
// silently rather than treat them as failures.
func Decode(env Envelope) (any, error) {
	switch env.Type {
	case TypeRollTrigger:
		var p RollTriggerPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.RollID == "" {
			return nil, ErrMissingID
		}
		return p, nil
	case TypeAvailabilityRequest:
		var p AvailabilityRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.RequestID == "" {
			return nil, ErrMissingID
		}
		return p, nil
	case TypeAvailabilityResponse:
		var p AvailabilityResponsePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.RequestID == "" {
			return nil, ErrMissingID
		}
		return p, nil
	case TypeRollComplete:
		var p RollCompletePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.RollID == "" {
			return nil, ErrMissingID
		}
		return p, nil
	default:
		return nil, ErrUnknownType
	}
}
