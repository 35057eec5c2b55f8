package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer JSON object placed on the Transport.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload []byte      `json:"payload"`
}

// Seal validates msg and wraps its JSON body in an Envelope.
func Seal(msg Message) (Envelope, error) {
	if err := msg.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("invalid %s: %w", msg.MessageType(), err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", msg.MessageType(), err)
	}
	return Envelope{Type: msg.MessageType(), Payload: body}, nil
}

// Open decodes and validates the envelope's body.
func (e Envelope) Open() (Message, error) {
	msg, err := newMessage(e.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(e.Payload, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, e.Type, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, e.Type, err)
	}
	return msg, nil
}

// Encode seals msg and returns the envelope bytes.
func Encode(msg Message) ([]byte, error) {
	env, err := Seal(msg)
	if err != nil {
		return nil, err
	}
	return EncodeEnvelope(env)
}

// Decode decodes envelope bytes and the message body inside them.
func Decode(data []byte) (Message, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return env.Open()
}

// EncodeEnvelope encodes an envelope to bytes.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeEnvelope decodes the outer envelope without touching the payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: envelope without type", ErrMalformed)
	}
	return env, nil
}

// PeekType returns the envelope type without decoding the payload.
func PeekType(data []byte) (MessageType, error) {
	var peek struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return "", fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	return peek.Type, nil
}

func newMessage(t MessageType) (Message, error) {
	switch t {
	case TypeFullSync:
		return &FullSyncPayload{}, nil
	case TypeFullSyncRequest:
		return &FullSyncRequest{}, nil
	case TypeTimerChange:
		return &TimerChangeMessage{}, nil
	case TypeQuickAction:
		return &QuickActionMessage{}, nil
	case TypeRuntimeAction:
		return &RuntimeActionMessage{}, nil
	case TypeContextBundle:
		return &ContextBundle{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}
