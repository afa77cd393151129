package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
)

// Names of the persisted id sequences. Each allocates monotonically
// increasing 64-bit ids that are never reused.
const (
	SeqStream  = "stream"
	SeqMessage = "message"
)

// Errors surfaced by account lookups and transfer application. Returned from
// within RunInTransaction they abort the whole transaction.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountFrozen     = errors.New("account frozen")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store defines the persistence interface for the streaming ledger.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]*model.Account, error)

	// ApplyTransfer debits FromAccount and credits ToAccount (either may be
	// nil for value crossing the ledger boundary) and records the audit row.
	// It fails without side effects on a missing or frozen account or an
	// insufficient balance.
	ApplyTransfer(ctx context.Context, transfer *model.Transfer) error
	ListTransfers(ctx context.Context) ([]*model.Transfer, error)

	// NextID allocates the next value of a named id sequence.
	NextID(ctx context.Context, sequence string) (int64, error)

	// Streams
	CreateStream(ctx context.Context, stream *model.Stream) error
	GetStream(ctx context.Context, id int64) (*model.Stream, error)
	MarkStreamStopped(ctx context.Context, id int64, stopTime time.Time) error
	SetStreamWithdrawn(ctx context.Context, id int64, withdrawn int64) error
	ListStreams(ctx context.Context) ([]*model.Stream, error)
	ListStreamIDsByPayer(ctx context.Context, payer string) ([]int64, error)
	ListStreamIDsByRecipient(ctx context.Context, recipient string) ([]int64, error)

	// Messages
	CreateMessage(ctx context.Context, message *model.Message) error
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	ListMessages(ctx context.Context) ([]*model.Message, error)
	ListMessageIDsBySender(ctx context.Context, sender string) ([]int64, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEventsBySubject(ctx context.Context, subject string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
