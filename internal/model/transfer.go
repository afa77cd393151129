package model

import (
	"time"
)

// TransferKind categorizes a fund movement.
type TransferKind string

const (
	// TransferCredit is an external top-up into an account.
	TransferCredit TransferKind = "credit"
	// TransferDeposit moves a stream's deposit from the payer into escrow.
	TransferDeposit TransferKind = "deposit"
	// TransferRefund returns unstreamed deposit from escrow to the payer.
	TransferRefund TransferKind = "refund"
	// TransferWithdrawal pays accrued funds from escrow to the recipient.
	TransferWithdrawal TransferKind = "withdrawal"
)

// String returns the string representation of the transfer kind.
func (k TransferKind) String() string {
	return string(k)
}

// IsValid checks whether the transfer kind is a known value.
func (k TransferKind) IsValid() bool {
	switch k {
	case TransferCredit, TransferDeposit, TransferRefund, TransferWithdrawal:
		return true
	}
	return false
}

// Transfer is an immutable audit row for a single fund movement between two
// accounts. A nil FromAccount marks value entering the ledger from outside
// (an external credit). StreamID is set on deposit, refund and withdrawal
// rows so a stream's full money trail can be reconstructed.
type Transfer struct {
	Ref         string       `json:"ref"`
	FromAccount *string      `json:"from_account,omitempty"`
	ToAccount   *string      `json:"to_account,omitempty"`
	Amount      int64        `json:"amount"`
	Kind        TransferKind `json:"kind"`
	StreamID    *int64       `json:"stream_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
