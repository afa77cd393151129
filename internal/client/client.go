// Package client provides a transport-agnostic interface for the drip service
// and an HTTP/JSON implementation that talks to the drip REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
)

// DripClient is the interface that drip CLI commands use to communicate with
// the drip server. It is implemented by HTTPClient (default) and can be
// backed by any transport.
type DripClient interface {
	// Streams
	OpenStream(ctx context.Context, req *OpenStreamRequest) (*model.Stream, error)
	GetStream(ctx context.Context, id int64) (*StreamView, error)
	StopStream(ctx context.Context, id int64, caller string) (*StopResult, error)
	Withdraw(ctx context.Context, id int64, caller string) (*WithdrawResult, error)
	StreamBalance(ctx context.Context, id int64) (*StreamBalance, error)
	StreamEvents(ctx context.Context, id int64) ([]*model.Event, error)

	// Messages
	AttachMessage(ctx context.Context, streamID int64, req *AttachMessageRequest) (*model.Message, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)

	// Accounts
	CreateAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*AccountView, error)
	CreditAccount(ctx context.Context, id string, amount int64) (*model.Account, error)
	FreezeAccount(ctx context.Context, id string) (*model.Account, error)
	UnfreezeAccount(ctx context.Context, id string) (*model.Account, error)
	AccountStreams(ctx context.Context, id, role string) ([]int64, error)
	AccountMessages(ctx context.Context, id string) ([]int64, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// OpenStreamRequest holds parameters for opening a stream. Attached is the
// total amount debited from the payer's view of the request; at least Deposit
// must be attached, and only Deposit actually moves to escrow.
type OpenStreamRequest struct {
	Payer         string `json:"payer"`
	Recipient     string `json:"recipient"`
	RatePerSecond int64  `json:"rate_per_second"`
	Deposit       int64  `json:"deposit"`
	Attached      int64  `json:"attached"`
}

// AttachMessageRequest holds parameters for attaching a message to a stream.
type AttachMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// StreamView is a stream with its accrued and withdrawable amounts computed
// at read time.
type StreamView struct {
	model.Stream
	Accrued      int64 `json:"accrued"`
	Withdrawable int64 `json:"withdrawable"`
}

// StopResult is the response from StopStream.
type StopResult struct {
	Stream         *model.Stream `json:"stream"`
	AmountStreamed int64         `json:"amount_streamed"`
	Refund         int64         `json:"refund"`
}

// WithdrawResult is the response from Withdraw.
type WithdrawResult struct {
	Stream *model.Stream `json:"stream"`
	Amount int64         `json:"amount"`
}

// StreamBalance is the response from StreamBalance.
type StreamBalance struct {
	StreamID     int64     `json:"stream_id"`
	Accrued      int64     `json:"accrued"`
	Withdrawn    int64     `json:"withdrawn"`
	Withdrawable int64     `json:"withdrawable"`
	AsOf         time.Time `json:"as_of"`
}

// AccountView is an account stamped with the server time it was read at.
type AccountView struct {
	model.Account
	AsOf time.Time `json:"as_of"`
}
