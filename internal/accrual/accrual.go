// Package accrual computes how much of a stream's deposit has been earned by
// its recipient at a given instant. Amounts never tick in the background;
// they are derived on demand from the stream record and an observation time.
package accrual

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
)

// Accrued returns the total amount streamed to the recipient as of now.
// For an active stream that is elapsed whole seconds times the rate, capped
// at the deposit; once the cap is reached the value holds there. For a
// stopped stream the observation time is pinned to the stop time, so the
// result is frozen. An error means the stored stream record is corrupt.
func Accrued(s *model.Stream, now time.Time) (int64, error) {
	if s.RatePerSecond <= 0 {
		return 0, fmt.Errorf("stream %d: invalid rate_per_second %d", s.ID, s.RatePerSecond)
	}
	if s.Deposit <= 0 {
		return 0, fmt.Errorf("stream %d: invalid deposit %d", s.ID, s.Deposit)
	}
	if s.Withdrawn < 0 || s.Withdrawn > s.Deposit {
		return 0, fmt.Errorf("stream %d: invalid withdrawn %d", s.ID, s.Withdrawn)
	}

	end := now
	if s.StopTime != nil {
		// Stored times are ledger facts; a stop before the start is corruption,
		// unlike a wall clock running behind, which is clamped below.
		if s.StopTime.Before(s.StartTime) {
			return 0, fmt.Errorf("stream %d: stop_time precedes start_time", s.ID)
		}
		end = *s.StopTime
	}

	// Whole seconds only; sub-second remainders do not accrue.
	elapsed := end.Sub(s.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	secs := uint64(elapsed / time.Second)

	// rate*secs can exceed 64 bits long before it matters: anything at or
	// past the deposit caps there. Compare the full 128-bit product.
	hi, lo := bits.Mul64(secs, uint64(s.RatePerSecond))
	if hi != 0 || lo > uint64(s.Deposit) {
		return s.Deposit, nil
	}
	return int64(lo), nil
}

// Withdrawable returns the portion of the accrued amount the recipient has
// not yet withdrawn.
func Withdrawable(s *model.Stream, now time.Time) (int64, error) {
	accrued, err := Accrued(s, now)
	if err != nil {
		return 0, err
	}
	available := accrued - s.Withdrawn
	if available < 0 {
		return 0, fmt.Errorf("stream %d: withdrawn %d exceeds accrued %d", s.ID, s.Withdrawn, accrued)
	}
	return available, nil
}
