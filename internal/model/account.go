package model

import (
	"time"
)

// AccountStatus represents the current state of an account.
type AccountStatus string

const (
	AccountOpen   AccountStatus = "open"
	AccountFrozen AccountStatus = "frozen"
)

// String returns the string representation of the account status.
func (s AccountStatus) String() string {
	return string(s)
}

// IsValid checks whether the account status is a known value.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountOpen, AccountFrozen:
		return true
	}
	return false
}

// Account is a balance-bearing ledger account. Balances are 64-bit integers
// in the smallest currency unit and never go negative. Frozen accounts can
// neither send nor receive transfers.
type Account struct {
	ID        string        `json:"id"`
	Balance   int64         `json:"balance"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
