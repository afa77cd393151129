package model

import (
	"time"
)

// Message is a note attached to a live stream by its payer. StreamedAmount
// snapshots the stream's accrued total at the moment of attachment and is
// never updated afterward.
type Message struct {
	ID             int64     `json:"id"`
	StreamID       int64     `json:"stream_id"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Content        string    `json:"content"`
	StreamedAmount int64     `json:"streamed_amount"`
	CreatedAt      time.Time `json:"created_at"`
}
