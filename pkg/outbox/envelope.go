package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ActorRef identifies who produced the event. Exactly one of UserID or
// SessionID is set for cart activity.
type ActorRef struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Source    string `json:"source,omitempty"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a stored payload. Envelopes written before versioning
// carry no version and are read as version 1.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	env.Version = max(env.Version, defaultVersion)
	return env, nil
}

// HasData reports whether the envelope carries a non-null domain payload.
func (e PayloadEnvelope) HasData() bool {
	data := bytes.TrimSpace(e.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

// Source is the actor's origin tag, e.g. "chatbot_auto", or "".
func (e PayloadEnvelope) Source() string {
	if e.Actor == nil {
		return ""
	}
	return e.Actor.Source
}
