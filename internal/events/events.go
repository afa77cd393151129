package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
)

// Event topic constants
const (
	TopicStreamStarted   = "drip.stream.started"
	TopicStreamStopped   = "drip.stream.stopped"
	TopicStreamWithdrawn = "drip.stream.withdrawn"
	TopicMessageStreamed = "drip.message.streamed"

	// Account events
	TopicAccountCreated  = "drip.account.created"
	TopicAccountCredited = "drip.account.credited"
	TopicAccountFrozen   = "drip.account.frozen"
	TopicAccountUnfrozen = "drip.account.unfrozen"
)

// Event types

type StreamStarted struct {
	StreamID      int64     `json:"stream_id"`
	Payer         string    `json:"payer"`
	Recipient     string    `json:"recipient"`
	RatePerSecond int64     `json:"rate_per_second"`
	Timestamp     time.Time `json:"timestamp"`
}

type StreamStopped struct {
	StreamID       int64     `json:"stream_id"`
	AmountStreamed int64     `json:"amount_streamed"`
	Refund         int64     `json:"refund"`
	Timestamp      time.Time `json:"timestamp"`
}

type StreamWithdrawn struct {
	StreamID  int64     `json:"stream_id"`
	Recipient string    `json:"recipient"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageStreamed struct {
	MessageID      int64     `json:"message_id"`
	StreamID       int64     `json:"stream_id"`
	Content        string    `json:"content"`
	StreamedAmount int64     `json:"streamed_amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// Account events

type AccountCreated struct {
	Account *model.Account `json:"account"`
}

type AccountCredited struct {
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

type AccountFrozen struct {
	AccountID string    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

type AccountUnfrozen struct {
	AccountID string    `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
