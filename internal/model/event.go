package model

import (
	"encoding/json"
	"time"
)

// Event is a persisted event record, mirroring what is published to NATS.
// Subject names the entity the event concerns, e.g. "stream/7" or
// "account/alice".
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	Subject   string          `json:"subject"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
