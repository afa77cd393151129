package server

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/drip/internal/accrual"
	"github.com/alfredjeanlab/drip/internal/events"
	"github.com/alfredjeanlab/drip/internal/idgen"
	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// openStreamInput holds transport-agnostic parameters for opening a stream.
// Attached is the total amount the payer commits to the call; only Deposit
// actually moves to escrow, any surplus stays in the payer's account.
type openStreamInput struct {
	Payer         string `json:"payer"`
	Recipient     string `json:"recipient"`
	RatePerSecond int64  `json:"rate_per_second"`
	Deposit       int64  `json:"deposit"`
	Attached      int64  `json:"attached"`
}

// openStream validates input, allocates a stream id, persists the stream, and
// moves the deposit from the payer to escrow, all in one transaction. After
// commit it publishes a StreamStarted event.
func (s *Server) openStream(ctx context.Context, in openStreamInput) (*model.Stream, error) {
	defer s.observe("open", time.Now())

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.failed("open", err)
	}
	defer release()

	now := s.clock.Now().UTC()
	stream := &model.Stream{
		Payer:         in.Payer,
		Recipient:     in.Recipient,
		RatePerSecond: in.RatePerSecond,
		Deposit:       in.Deposit,
		Active:        true,
		StartTime:     now,
		UpdatedAt:     now,
	}

	if err := model.ValidateStream(stream, s.limits); err != nil {
		return nil, s.failed("open", inputError(err.Error()))
	}
	if in.Attached < in.Deposit {
		return nil, s.failed("open", inputError(fmt.Sprintf(
			"attached amount %d is less than deposit %d", in.Attached, in.Deposit)))
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		recipient, err := tx.GetAccount(ctx, in.Recipient)
		if err != nil {
			return err
		}
		if recipient.Status == model.AccountFrozen {
			return stateError(fmt.Sprintf("recipient account %q is frozen", recipient.ID))
		}

		id, err := tx.NextID(ctx, store.SeqStream)
		if err != nil {
			return fmt.Errorf("allocating stream id: %w", err)
		}
		stream.ID = id

		if err := tx.CreateStream(ctx, stream); err != nil {
			return fmt.Errorf("creating stream: %w", err)
		}

		ref, err := idgen.TransferRef()
		if err != nil {
			return fmt.Errorf("generating transfer ref: %w", err)
		}
		return tx.ApplyTransfer(ctx, &model.Transfer{
			Ref:         ref,
			FromAccount: &stream.Payer,
			ToAccount:   &s.escrow,
			Amount:      stream.Deposit,
			Kind:        model.TransferDeposit,
			StreamID:    &stream.ID,
		})
	})
	if err != nil {
		return nil, s.failed("open", err)
	}

	s.metrics.StreamsOpened.Inc()
	s.metrics.ActiveStreams.Inc()
	s.metrics.DepositsEscrowed.Add(float64(stream.Deposit))

	s.recordAndPublish(ctx, events.TopicStreamStarted, streamSubject(stream.ID), stream.Payer, events.StreamStarted{
		StreamID:      stream.ID,
		Payer:         stream.Payer,
		Recipient:     stream.Recipient,
		RatePerSecond: stream.RatePerSecond,
		Timestamp:     now,
	})

	return stream, nil
}

// stopResult reports the outcome of stopping a stream.
type stopResult struct {
	Stream         *model.Stream `json:"stream"`
	AmountStreamed int64         `json:"amount_streamed"`
	Refund         int64         `json:"refund"`
}

// stopStream freezes the streamed amount at the stop instant and refunds the
// unstreamed remainder to the payer, all in one transaction. Only the payer
// may stop, and only while the stream is active. Earned-but-unwithdrawn funds
// remain claimable by the recipient afterward.
func (s *Server) stopStream(ctx context.Context, id int64, caller string) (*stopResult, error) {
	defer s.observe("stop", time.Now())

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.failed("stop", err)
	}
	defer release()

	if caller == "" {
		return nil, s.failed("stop", inputError("caller is required"))
	}

	now := s.clock.Now().UTC()
	var result stopResult

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		stream, err := tx.GetStream(ctx, id)
		if err != nil {
			return err
		}
		if stream.Payer != caller {
			return authError(fmt.Sprintf("only the payer may stop stream %d", id))
		}
		if !stream.Active {
			return stateError(fmt.Sprintf("stream %d is already stopped", id))
		}

		// A clock reading before the start would violate stop_time ordering.
		stopAt := now
		if stopAt.Before(stream.StartTime) {
			stopAt = stream.StartTime
		}

		streamed, err := accrual.Accrued(stream, stopAt)
		if err != nil {
			return fmt.Errorf("computing streamed amount: %w", err)
		}

		if err := tx.MarkStreamStopped(ctx, id, stopAt); err != nil {
			return fmt.Errorf("marking stream stopped: %w", err)
		}
		stream.Active = false
		stream.StopTime = &stopAt
		stream.UpdatedAt = stopAt

		refund := stream.Deposit - streamed
		if refund > 0 {
			ref, err := idgen.TransferRef()
			if err != nil {
				return fmt.Errorf("generating transfer ref: %w", err)
			}
			if err := tx.ApplyTransfer(ctx, &model.Transfer{
				Ref:         ref,
				FromAccount: &s.escrow,
				ToAccount:   &stream.Payer,
				Amount:      refund,
				Kind:        model.TransferRefund,
				StreamID:    &stream.ID,
			}); err != nil {
				return err
			}
		}

		result = stopResult{Stream: stream, AmountStreamed: streamed, Refund: refund}
		return nil
	})
	if err != nil {
		return nil, s.failed("stop", err)
	}

	s.metrics.StreamsStopped.Inc()
	s.metrics.ActiveStreams.Dec()
	s.metrics.AmountRefunded.Add(float64(result.Refund))

	s.recordAndPublish(ctx, events.TopicStreamStopped, streamSubject(id), caller, events.StreamStopped{
		StreamID:       id,
		AmountStreamed: result.AmountStreamed,
		Refund:         result.Refund,
		Timestamp:      *result.Stream.StopTime,
	})

	return &result, nil
}

// withdrawResult reports the outcome of a withdrawal.
type withdrawResult struct {
	Stream *model.Stream `json:"stream"`
	Amount int64         `json:"amount"`
}

// withdraw pays the recipient everything accrued so far and not yet withdrawn.
// The withdrawn marker is persisted before the funds move, so a failed
// transfer rolls both back together. Legal while the stream is active and
// after it stops, until the frozen amount is exhausted.
func (s *Server) withdraw(ctx context.Context, id int64, caller string) (*withdrawResult, error) {
	defer s.observe("withdraw", time.Now())

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.failed("withdraw", err)
	}
	defer release()

	if caller == "" {
		return nil, s.failed("withdraw", inputError("caller is required"))
	}

	now := s.clock.Now().UTC()
	var result withdrawResult

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		stream, err := tx.GetStream(ctx, id)
		if err != nil {
			return err
		}
		if stream.Recipient != caller {
			return authError(fmt.Sprintf("only the recipient may withdraw from stream %d", id))
		}

		available, err := accrual.Withdrawable(stream, now)
		if err != nil {
			return fmt.Errorf("computing withdrawable amount: %w", err)
		}
		if available <= 0 {
			return stateError(fmt.Sprintf("nothing to withdraw from stream %d", id))
		}

		if err := tx.SetStreamWithdrawn(ctx, id, stream.Withdrawn+available); err != nil {
			return fmt.Errorf("updating withdrawn amount: %w", err)
		}
		stream.Withdrawn += available
		stream.UpdatedAt = now

		ref, err := idgen.TransferRef()
		if err != nil {
			return fmt.Errorf("generating transfer ref: %w", err)
		}
		if err := tx.ApplyTransfer(ctx, &model.Transfer{
			Ref:         ref,
			FromAccount: &s.escrow,
			ToAccount:   &stream.Recipient,
			Amount:      available,
			Kind:        model.TransferWithdrawal,
			StreamID:    &stream.ID,
		}); err != nil {
			return err
		}

		result = withdrawResult{Stream: stream, Amount: available}
		return nil
	})
	if err != nil {
		return nil, s.failed("withdraw", err)
	}

	s.metrics.Withdrawals.Inc()
	s.metrics.AmountWithdrawn.Add(float64(result.Amount))

	s.recordAndPublish(ctx, events.TopicStreamWithdrawn, streamSubject(id), caller, events.StreamWithdrawn{
		StreamID:  id,
		Recipient: caller,
		Amount:    result.Amount,
		Timestamp: now,
	})

	return &result, nil
}

// streamView is a stream plus its derived amounts at read time.
type streamView struct {
	*model.Stream
	Accrued      int64 `json:"accrued"`
	Withdrawable int64 `json:"withdrawable"`
}

// getStream returns the stream with freshly computed accrued and withdrawable
// amounts. Read-only; never takes the operation lock.
func (s *Server) getStream(ctx context.Context, id int64) (*streamView, error) {
	stream, err := s.store.GetStream(ctx, id)
	if err != nil {
		return nil, err
	}
	accrued, err := accrual.Accrued(stream, s.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("computing accrued amount: %w", err)
	}
	return &streamView{
		Stream:       stream,
		Accrued:      accrued,
		Withdrawable: accrued - stream.Withdrawn,
	}, nil
}
