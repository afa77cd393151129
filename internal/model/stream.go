package model

import (
	"time"
)

// Stream is the core payment-stream record. Funds equal to Deposit are held
// in escrow for the stream's lifetime; they accrue to the recipient at
// RatePerSecond and whatever has not accrued when the stream stops is
// refunded to the payer.
type Stream struct {
	ID            int64      `json:"id"`
	Payer         string     `json:"payer"`
	Recipient     string     `json:"recipient"`
	RatePerSecond int64      `json:"rate_per_second"`
	Deposit       int64      `json:"deposit"`
	Withdrawn     int64      `json:"withdrawn"`
	Active        bool       `json:"active"`
	StartTime     time.Time  `json:"start_time"`
	StopTime      *time.Time `json:"stop_time,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Stopped reports whether the stream has been stopped. A stopped stream
// never becomes active again.
func (s *Stream) Stopped() bool {
	return s.StopTime != nil
}
