package server

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/drip/internal/accrual"
	"github.com/alfredjeanlab/drip/internal/events"
	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// attachMessageInput holds transport-agnostic parameters for attaching a
// message to a stream.
type attachMessageInput struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// attachMessage records a message on an active stream, stamping it with the
// amount streamed so far. Only the payer may attach, and the snapshot is
// frozen at attachment time, never recomputed.
func (s *Server) attachMessage(ctx context.Context, streamID int64, in attachMessageInput) (*model.Message, error) {
	defer s.observe("attach", time.Now())

	ctx, release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.failed("attach", err)
	}
	defer release()

	if in.Sender == "" {
		return nil, s.failed("attach", inputError("sender is required"))
	}

	now := s.clock.Now().UTC()
	msg := &model.Message{
		StreamID:  streamID,
		Sender:    in.Sender,
		Content:   in.Content,
		CreatedAt: now,
	}
	if err := model.ValidateMessage(msg, s.limits); err != nil {
		return nil, s.failed("attach", inputError(err.Error()))
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		stream, err := tx.GetStream(ctx, streamID)
		if err != nil {
			return err
		}
		if stream.Payer != in.Sender {
			return authError(fmt.Sprintf("only the payer may attach messages to stream %d", streamID))
		}
		if !stream.Active {
			return stateError(fmt.Sprintf("stream %d is stopped", streamID))
		}

		snapshot, err := accrual.Accrued(stream, now)
		if err != nil {
			return fmt.Errorf("computing streamed snapshot: %w", err)
		}
		msg.Recipient = stream.Recipient
		msg.StreamedAmount = snapshot

		id, err := tx.NextID(ctx, store.SeqMessage)
		if err != nil {
			return fmt.Errorf("allocating message id: %w", err)
		}
		msg.ID = id

		if err := tx.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("creating message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.failed("attach", err)
	}

	s.metrics.MessagesStreamed.Inc()

	s.recordAndPublish(ctx, events.TopicMessageStreamed, streamSubject(streamID), in.Sender, events.MessageStreamed{
		MessageID:      msg.ID,
		StreamID:       streamID,
		Content:        msg.Content,
		StreamedAmount: msg.StreamedAmount,
		Timestamp:      now,
	})

	return msg, nil
}
