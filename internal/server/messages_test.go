package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAttachMessage_SnapshotsAccrual(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	clk.Advance(200 * time.Second)
	msg, err := srv.attachMessage(ctx, stream.ID, attachMessageInput{Sender: "alice", Content: "hello"})
	if err != nil {
		t.Fatalf("attaching: %v", err)
	}
	if msg.StreamedAmount != 200_000 {
		t.Fatalf("expected snapshot 200000, got %d", msg.StreamedAmount)
	}
	if msg.Recipient != "bob" {
		t.Fatalf("expected recipient bob copied from stream, got %q", msg.Recipient)
	}

	// The snapshot is fixed at attachment time; later accrual never touches it.
	clk.Advance(300 * time.Second)
	stored, err := ms.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("getting message: %v", err)
	}
	if stored.StreamedAmount != 200_000 {
		t.Fatalf("expected stored snapshot unchanged at 200000, got %d", stored.StreamedAmount)
	}
}

func TestAttachMessage_SequentialIDs(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	for i, want := range []int64{1, 2, 3} {
		msg, err := srv.attachMessage(ctx, stream.ID, attachMessageInput{Sender: "alice", Content: "msg"})
		if err != nil {
			t.Fatalf("attaching message %d: %v", i, err)
		}
		if msg.ID != want {
			t.Fatalf("expected message id %d, got %d", want, msg.ID)
		}
	}
}

func TestAttachMessage_OnlyPayer(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	_, err := srv.attachMessage(context.Background(), stream.ID, attachMessageInput{Sender: "bob", Content: "hi"})
	var ae authError
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if len(ms.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(ms.messages))
	}
}

func TestAttachMessage_StoppedStream(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	clk.Advance(10 * time.Second)
	if _, err := srv.stopStream(ctx, stream.ID, "alice"); err != nil {
		t.Fatalf("stopping: %v", err)
	}

	_, err := srv.attachMessage(ctx, stream.ID, attachMessageInput{Sender: "alice", Content: "late"})
	var se stateError
	if !errors.As(err, &se) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestAttachMessage_Validation(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		in   attachMessageInput
	}{
		{"EmptySender", attachMessageInput{Sender: "", Content: "hi"}},
		{"EmptyContent", attachMessageInput{Sender: "alice", Content: ""}},
		{"ContentTooLong", attachMessageInput{Sender: "alice", Content: strings.Repeat("x", 1025)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.attachMessage(ctx, stream.ID, tc.in)
			var ie inputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected input error, got %v", err)
			}
		})
	}

	// Validation failures never consume message ids.
	msg, err := srv.attachMessage(ctx, stream.ID, attachMessageInput{Sender: "alice", Content: "ok"})
	if err != nil {
		t.Fatalf("attaching: %v", err)
	}
	if msg.ID != 1 {
		t.Fatalf("expected first message id 1, got %d", msg.ID)
	}
}

func TestAttachMessage_RecordsEvent(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(50 * time.Second)
	if _, err := srv.attachMessage(context.Background(), stream.ID, attachMessageInput{Sender: "alice", Content: "ping"}); err != nil {
		t.Fatalf("attaching: %v", err)
	}

	e := requireEvent(t, ms, "drip.message.streamed")
	if e.Subject != "stream/1" || e.Actor != "alice" {
		t.Fatalf("got subject=%q actor=%q", e.Subject, e.Actor)
	}
	if !strings.Contains(string(e.Payload), `"streamed_amount":50000`) {
		t.Fatalf("expected payload with snapshot, got %s", e.Payload)
	}
}
