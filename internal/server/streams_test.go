package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// standardOpen is a stream paying 1000 units/s from a 1,000,000 deposit, so it
// exhausts after exactly 1000 seconds.
func standardOpen() openStreamInput {
	return openStreamInput{
		Payer:         "alice",
		Recipient:     "bob",
		RatePerSecond: 1000,
		Deposit:       1_000_000,
		Attached:      1_000_000,
	}
}

// openTestStream seeds payer and recipient and opens the standard stream.
func openTestStream(t *testing.T, srv *Server, ms *mockStore) *model.Stream {
	t.Helper()
	seedAccount(ms, "alice", 2_000_000)
	seedAccount(ms, "bob", 0)
	stream, err := srv.openStream(context.Background(), standardOpen())
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	return stream
}

// requireEvent returns the first recorded event with the given topic.
func requireEvent(t *testing.T, ms *mockStore, topic string) *model.Event {
	t.Helper()
	for _, e := range ms.events {
		if e.Topic == topic {
			return e
		}
	}
	t.Fatalf("no event with topic %q recorded", topic)
	return nil
}

// totalFunds sums every account balance, escrow included.
func totalFunds(ms *mockStore) int64 {
	var sum int64
	for _, a := range ms.accounts {
		sum += a.Balance
	}
	return sum
}

func TestOpenStream_ExcessAttachedStaysWithPayer(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 2_000_000)
	seedAccount(ms, "bob", 0)

	in := standardOpen()
	in.Attached = 1_500_000
	if _, err := srv.openStream(context.Background(), in); err != nil {
		t.Fatalf("opening stream: %v", err)
	}

	// Only the deposit moves; the surplus never leaves the payer.
	if got := ms.accounts["alice"].Balance; got != 1_000_000 {
		t.Fatalf("expected payer balance 1000000, got %d", got)
	}
	if got := ms.accounts[DefaultEscrowAccount].Balance; got != 1_000_000 {
		t.Fatalf("expected escrow balance 1000000, got %d", got)
	}
	if len(ms.transfers) != 1 || ms.transfers[0].Kind != model.TransferDeposit {
		t.Fatalf("expected a single deposit transfer, got %+v", ms.transfers)
	}
}

func TestOpenStream_AttachedBelowDeposit(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 2_000_000)
	seedAccount(ms, "bob", 0)

	in := standardOpen()
	in.Attached = 999_999
	_, err := srv.openStream(context.Background(), in)
	var ie inputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestOpenStream_BelowMinimumRate(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 2_000_000)
	seedAccount(ms, "bob", 0)

	in := standardOpen()
	in.RatePerSecond = 0
	_, err := srv.openStream(context.Background(), in)
	var ie inputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected input error, got %v", err)
	}

	// Validation failures happen before any store work.
	if ms.seqs[store.SeqStream] != 0 {
		t.Fatalf("expected stream sequence untouched, got %d", ms.seqs[store.SeqStream])
	}
	if len(ms.streams) != 0 || len(ms.transfers) != 0 {
		t.Fatalf("expected no streams or transfers, got %d/%d", len(ms.streams), len(ms.transfers))
	}
}

func TestOpenStream_InsufficientFundsRollsBack(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 500_000)
	seedAccount(ms, "bob", 0)

	_, err := srv.openStream(context.Background(), standardOpen())
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// The stream row created earlier in the transaction is gone too.
	if _, err := ms.GetStream(context.Background(), 1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no stream row, got %v", err)
	}
	if got := ms.accounts["alice"].Balance; got != 500_000 {
		t.Fatalf("expected payer balance unchanged at 500000, got %d", got)
	}
	if len(ms.events) != 0 {
		t.Fatalf("expected no events after rollback, got %d", len(ms.events))
	}
	if got := testutil.ToFloat64(srv.metrics.ActiveStreams); got != 0 {
		t.Fatalf("expected 0 active streams, got %v", got)
	}
}

func TestOpenStream_RecipientMissing(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 2_000_000)

	_, err := srv.openStream(context.Background(), standardOpen())
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestOpenStream_RecipientFrozen(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 2_000_000)
	seedAccount(ms, "bob", 0)
	ms.accounts["bob"].Status = model.AccountFrozen

	_, err := srv.openStream(context.Background(), standardOpen())
	var se stateError
	if !errors.As(err, &se) {
		t.Fatalf("expected state error, got %v", err)
	}
	if got := ms.accounts["alice"].Balance; got != 2_000_000 {
		t.Fatalf("expected payer balance unchanged, got %d", got)
	}
}

func TestAccrual_LinearThenCapped(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(500 * time.Second)
	view, err := srv.getStream(context.Background(), stream.ID)
	if err != nil {
		t.Fatalf("getting stream: %v", err)
	}
	if view.Accrued != 500_000 {
		t.Fatalf("expected accrued 500000 after 500s, got %d", view.Accrued)
	}

	// Past exhaustion the accrued amount pins to the deposit.
	clk.Advance(700 * time.Second)
	view, err = srv.getStream(context.Background(), stream.ID)
	if err != nil {
		t.Fatalf("getting stream: %v", err)
	}
	if view.Accrued != 1_000_000 {
		t.Fatalf("expected accrued capped at 1000000 after 1200s, got %d", view.Accrued)
	}
}

func TestWithdraw_PaysEverythingAccrued(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(500 * time.Second)
	result, err := srv.withdraw(context.Background(), stream.ID, "bob")
	if err != nil {
		t.Fatalf("withdrawing: %v", err)
	}
	if result.Amount != 500_000 {
		t.Fatalf("expected withdrawal of 500000, got %d", result.Amount)
	}
	if got := ms.accounts["bob"].Balance; got != 500_000 {
		t.Fatalf("expected recipient balance 500000, got %d", got)
	}
	if got := ms.streams[stream.ID].Withdrawn; got != 500_000 {
		t.Fatalf("expected withdrawn marker 500000, got %d", got)
	}

	// A second withdrawal in the same second has nothing to claim.
	_, err = srv.withdraw(context.Background(), stream.ID, "bob")
	var se stateError
	if !errors.As(err, &se) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestWithdraw_OnlyRecipient(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	clk.Advance(100 * time.Second)

	_, err := srv.withdraw(context.Background(), stream.ID, "alice")
	var ae authError
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestWithdrawnGrowsMonotonically(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	clk.Advance(100 * time.Second)
	r1, err := srv.withdraw(ctx, stream.ID, "bob")
	if err != nil {
		t.Fatalf("first withdrawal: %v", err)
	}
	clk.Advance(150 * time.Second)
	r2, err := srv.withdraw(ctx, stream.ID, "bob")
	if err != nil {
		t.Fatalf("second withdrawal: %v", err)
	}
	clk.Advance(350 * time.Second)
	r3, err := srv.withdraw(ctx, stream.ID, "bob")
	if err != nil {
		t.Fatalf("third withdrawal: %v", err)
	}

	if r1.Amount != 100_000 || r2.Amount != 150_000 || r3.Amount != 350_000 {
		t.Fatalf("expected withdrawals 100000/150000/350000, got %d/%d/%d",
			r1.Amount, r2.Amount, r3.Amount)
	}
	if got := ms.streams[stream.ID].Withdrawn; got != 600_000 {
		t.Fatalf("expected cumulative withdrawn 600000, got %d", got)
	}
	if got := ms.accounts["bob"].Balance; got != 600_000 {
		t.Fatalf("expected recipient balance 600000, got %d", got)
	}
}

func TestStopStream_RefundsRemainder(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	clk.Advance(300 * time.Second)
	result, err := srv.stopStream(ctx, stream.ID, "alice")
	if err != nil {
		t.Fatalf("stopping stream: %v", err)
	}
	if result.AmountStreamed != 300_000 || result.Refund != 700_000 {
		t.Fatalf("expected streamed 300000 refund 700000, got %d/%d",
			result.AmountStreamed, result.Refund)
	}
	if result.Stream.Active || result.Stream.StopTime == nil {
		t.Fatalf("expected stopped stream, got active=%v stop_time=%v",
			result.Stream.Active, result.Stream.StopTime)
	}
	if got := ms.accounts["alice"].Balance; got != 1_700_000 {
		t.Fatalf("expected payer balance 1700000 after refund, got %d", got)
	}

	// Accrual is frozen at the stop instant regardless of wall time.
	clk.Advance(500 * time.Second)
	view, err := srv.getStream(ctx, stream.ID)
	if err != nil {
		t.Fatalf("getting stream: %v", err)
	}
	if view.Accrued != 300_000 {
		t.Fatalf("expected accrued frozen at 300000, got %d", view.Accrued)
	}

	// The recipient can still claim what was earned before the stop.
	wr, err := srv.withdraw(ctx, stream.ID, "bob")
	if err != nil {
		t.Fatalf("withdrawing after stop: %v", err)
	}
	if wr.Amount != 300_000 {
		t.Fatalf("expected withdrawal of 300000, got %d", wr.Amount)
	}
	if got := ms.accounts[DefaultEscrowAccount].Balance; got != 0 {
		t.Fatalf("expected empty escrow, got %d", got)
	}

	// Once the frozen amount is exhausted, nothing more ever accrues.
	clk.Advance(time.Hour)
	_, err = srv.withdraw(ctx, stream.ID, "bob")
	var se stateError
	if !errors.As(err, &se) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestStopStream_OnlyPayer(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	_, err := srv.stopStream(context.Background(), stream.ID, "bob")
	var ae authError
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !ms.streams[stream.ID].Active {
		t.Fatal("expected stream still active after rejected stop")
	}
}

func TestStopStream_SecondStopRejected(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	clk.Advance(10 * time.Second)
	if _, err := srv.stopStream(ctx, stream.ID, "alice"); err != nil {
		t.Fatalf("stopping stream: %v", err)
	}

	_, err := srv.stopStream(ctx, stream.ID, "alice")
	var se stateError
	if !errors.As(err, &se) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestStopStream_AtExactExhaustion(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(1000 * time.Second)
	result, err := srv.stopStream(context.Background(), stream.ID, "alice")
	if err != nil {
		t.Fatalf("stopping stream: %v", err)
	}
	if result.AmountStreamed != 1_000_000 || result.Refund != 0 {
		t.Fatalf("expected streamed 1000000 refund 0, got %d/%d",
			result.AmountStreamed, result.Refund)
	}
	// No refund transfer is written when nothing comes back.
	for _, tr := range ms.transfers {
		if tr.Kind == model.TransferRefund {
			t.Fatalf("unexpected refund transfer %+v", tr)
		}
	}
}

func TestStopStream_PastExhaustion(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(1200 * time.Second)
	result, err := srv.stopStream(context.Background(), stream.ID, "alice")
	if err != nil {
		t.Fatalf("stopping stream: %v", err)
	}
	if result.AmountStreamed != 1_000_000 || result.Refund != 0 {
		t.Fatalf("expected streamed capped at 1000000 refund 0, got %d/%d",
			result.AmountStreamed, result.Refund)
	}
	if got := ms.accounts["alice"].Balance; got != 1_000_000 {
		t.Fatalf("expected payer balance 1000000, got %d", got)
	}
}

func TestStopStream_ClockBeforeStartClamps(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(-10 * time.Second)
	result, err := srv.stopStream(context.Background(), stream.ID, "alice")
	if err != nil {
		t.Fatalf("stopping stream: %v", err)
	}
	if result.AmountStreamed != 0 || result.Refund != 1_000_000 {
		t.Fatalf("expected streamed 0 refund 1000000, got %d/%d",
			result.AmountStreamed, result.Refund)
	}
	if !result.Stream.StopTime.Equal(stream.StartTime) {
		t.Fatalf("expected stop time clamped to start %v, got %v",
			stream.StartTime, result.Stream.StopTime)
	}
}

func TestWithdraw_FrozenRecipientRollsBack(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	eventsBefore := len(ms.events)

	clk.Advance(400 * time.Second)
	ms.accounts["bob"].Status = model.AccountFrozen

	_, err := srv.withdraw(context.Background(), stream.ID, "bob")
	if !errors.Is(err, store.ErrAccountFrozen) {
		t.Fatalf("expected frozen account error, got %v", err)
	}

	// The withdrawn marker written earlier in the transaction rolls back with
	// the failed transfer.
	if got := ms.streams[stream.ID].Withdrawn; got != 0 {
		t.Fatalf("expected withdrawn marker unchanged at 0, got %d", got)
	}
	if got := ms.accounts[DefaultEscrowAccount].Balance; got != 1_000_000 {
		t.Fatalf("expected escrow balance unchanged, got %d", got)
	}
	if len(ms.events) != eventsBefore {
		t.Fatalf("expected no new events, got %d", len(ms.events)-eventsBefore)
	}

	// Unfreezing makes the full amount claimable again.
	ms.accounts["bob"].Status = model.AccountOpen
	result, err := srv.withdraw(context.Background(), stream.ID, "bob")
	if err != nil {
		t.Fatalf("withdrawing after unfreeze: %v", err)
	}
	if result.Amount != 400_000 {
		t.Fatalf("expected withdrawal of 400000, got %d", result.Amount)
	}
}

func TestStopStream_FrozenPayerRollsBack(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	clk.Advance(300 * time.Second)
	ms.accounts["alice"].Status = model.AccountFrozen

	_, err := srv.stopStream(context.Background(), stream.ID, "alice")
	if !errors.Is(err, store.ErrAccountFrozen) {
		t.Fatalf("expected frozen account error, got %v", err)
	}
	if !ms.streams[stream.ID].Active {
		t.Fatal("expected stream still active after rolled-back stop")
	}
	if got := ms.accounts[DefaultEscrowAccount].Balance; got != 1_000_000 {
		t.Fatalf("expected escrow balance unchanged, got %d", got)
	}
}

func TestConservationAcrossLifecycle(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	before := totalFunds(ms)

	clk.Advance(250 * time.Second)
	w1, err := srv.withdraw(ctx, stream.ID, "bob")
	if err != nil {
		t.Fatalf("withdrawing: %v", err)
	}
	if got := totalFunds(ms); got != before {
		t.Fatalf("total funds changed after withdrawal: %d -> %d", before, got)
	}

	clk.Advance(350 * time.Second)
	sr, err := srv.stopStream(ctx, stream.ID, "alice")
	if err != nil {
		t.Fatalf("stopping: %v", err)
	}
	if got := totalFunds(ms); got != before {
		t.Fatalf("total funds changed after stop: %d -> %d", before, got)
	}

	w2, err := srv.withdraw(ctx, stream.ID, "bob")
	if err != nil {
		t.Fatalf("final withdrawal: %v", err)
	}

	// Everything the deposit held is accounted for: withdrawn plus refunded.
	if w1.Amount+w2.Amount+sr.Refund != stream.Deposit {
		t.Fatalf("deposit not conserved: %d + %d + %d != %d",
			w1.Amount, w2.Amount, sr.Refund, stream.Deposit)
	}
	if got := ms.accounts[DefaultEscrowAccount].Balance; got != 0 {
		t.Fatalf("expected escrow drained to 0, got %d", got)
	}
	if got := totalFunds(ms); got != before {
		t.Fatalf("total funds changed across lifecycle: %d -> %d", before, got)
	}
}

func TestNestedMutationRejected(t *testing.T) {
	srv, ms, _ := newTestServer(t)
	seedAccount(ms, "alice", 2_000_000)
	seedAccount(ms, "bob", 0)

	ctx, release, err := srv.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquiring: %v", err)
	}
	defer release()

	// A mutating call from inside an in-flight operation fails fast instead
	// of deadlocking on the operation lock.
	_, err = srv.openStream(ctx, standardOpen())
	var se stateError
	if !errors.As(err, &se) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestStreamLifecycleEvents(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)
	ctx := context.Background()

	clk.Advance(100 * time.Second)
	if _, err := srv.withdraw(ctx, stream.ID, "bob"); err != nil {
		t.Fatalf("withdrawing: %v", err)
	}
	if _, err := srv.stopStream(ctx, stream.ID, "alice"); err != nil {
		t.Fatalf("stopping: %v", err)
	}

	started := requireEvent(t, ms, "drip.stream.started")
	if started.Subject != "stream/1" || started.Actor != "alice" {
		t.Fatalf("got subject=%q actor=%q", started.Subject, started.Actor)
	}
	withdrawn := requireEvent(t, ms, "drip.stream.withdrawn")
	if withdrawn.Actor != "bob" {
		t.Fatalf("expected actor bob, got %q", withdrawn.Actor)
	}
	stopped := requireEvent(t, ms, "drip.stream.stopped")
	if stopped.Subject != "stream/1" {
		t.Fatalf("expected subject stream/1, got %q", stopped.Subject)
	}
}

func TestActiveStreamsGauge(t *testing.T) {
	srv, ms, clk := newTestServer(t)
	stream := openTestStream(t, srv, ms)

	if got := testutil.ToFloat64(srv.metrics.ActiveStreams); got != 1 {
		t.Fatalf("expected 1 active stream, got %v", got)
	}

	clk.Advance(10 * time.Second)
	if _, err := srv.stopStream(context.Background(), stream.ID, "alice"); err != nil {
		t.Fatalf("stopping: %v", err)
	}
	if got := testutil.ToFloat64(srv.metrics.ActiveStreams); got != 0 {
		t.Fatalf("expected 0 active streams, got %v", got)
	}
}
