package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// accountColumns is the column list used for SELECT statements on the accounts table.
const accountColumns = `id, balance, status, created_at, updated_at`

// streamColumns is the column list used for SELECT statements on the streams table.
const streamColumns = `id, payer, recipient, rate_per_second, deposit, withdrawn,
	active, start_time, stop_time, updated_at`

// messageColumns is the column list used for SELECT statements on the messages table.
const messageColumns = `id, stream_id, sender, recipient, content, streamed_amount, created_at`

// transferColumns is the column list used for SELECT statements on the transfers table.
const transferColumns = `ref, from_account, to_account, amount, kind, stream_id, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateAccount(ctx context.Context, db executor, a *model.Account) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, balance, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at`,
		a.ID, a.Balance, string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %q: %w", a.ID, store.ErrAccountExists)
	}
	return err
}

func queryGetAccount(ctx context.Context, db executor, id string) (*model.Account, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %q: %w", id, store.ErrAccountNotFound)
	}
	return a, err
}

func querySetAccountStatus(ctx context.Context, db executor, id string, status model.AccountStatus) (*model.Account, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE accounts SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns,
		id, string(status),
	)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %q: %w", id, store.ErrAccountNotFound)
	}
	return a, err
}

func queryListAccounts(ctx context.Context, db executor) ([]*model.Account, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func queryApplyTransfer(ctx context.Context, db executor, t *model.Transfer) error {
	if t.Amount <= 0 {
		return fmt.Errorf("transfer %s: amount must be positive, got %d", t.Ref, t.Amount)
	}
	if t.FromAccount != nil {
		if err := applyBalanceDelta(ctx, db, *t.FromAccount, -t.Amount); err != nil {
			return err
		}
	}
	if t.ToAccount != nil {
		if err := applyBalanceDelta(ctx, db, *t.ToAccount, t.Amount); err != nil {
			return err
		}
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO transfers (ref, from_account, to_account, amount, kind, stream_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		t.Ref,
		nullStringPtr(t.FromAccount),
		nullStringPtr(t.ToAccount),
		t.Amount,
		string(t.Kind),
		nullInt64Ptr(t.StreamID),
	).Scan(&t.CreatedAt)
}

// applyBalanceDelta adjusts one account balance after checking that the
// account exists, is open, and can absorb the change. The row stays locked
// for the remainder of the enclosing transaction.
func applyBalanceDelta(ctx context.Context, db executor, id string, delta int64) error {
	var (
		status  model.AccountStatus
		balance int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT status, balance FROM accounts WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %q: %w", id, store.ErrAccountNotFound)
	}
	if err != nil {
		return err
	}
	if status == model.AccountFrozen {
		return fmt.Errorf("account %q: %w", id, store.ErrAccountFrozen)
	}
	if delta < 0 && balance+delta < 0 {
		return fmt.Errorf("account %q: %w", id, store.ErrInsufficientFunds)
	}
	if delta > 0 && balance > math.MaxInt64-delta {
		return fmt.Errorf("account %q: balance would overflow", id)
	}
	_, err = db.ExecContext(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1`,
		id, delta,
	)
	return err
}

func queryListTransfers(ctx context.Context, db executor) ([]*model.Transfer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+transferColumns+` FROM transfers ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func queryNextID(ctx context.Context, db executor, sequence string) (int64, error) {
	var value int64
	err := db.QueryRowContext(ctx, `
		UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`,
		sequence,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unknown id sequence %q", sequence)
	}
	if err != nil {
		return 0, fmt.Errorf("next id for %q: %w", sequence, err)
	}
	return value, nil
}

func queryCreateStream(ctx context.Context, db executor, s *model.Stream) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO streams (
			id, payer, recipient, rate_per_second, deposit, withdrawn,
			active, start_time, stop_time, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10
		)`,
		s.ID,
		s.Payer,
		s.Recipient,
		s.RatePerSecond,
		s.Deposit,
		s.Withdrawn,
		s.Active,
		s.StartTime,
		nullTimePtr(s.StopTime),
		s.UpdatedAt,
	)
	return err
}

func queryGetStream(ctx context.Context, db executor, id int64) (*model.Stream, error) {
	row := db.QueryRowContext(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1`, id)
	return scanStream(row)
}

func queryMarkStreamStopped(ctx context.Context, db executor, id int64, stopTime time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE streams
		SET active = FALSE, stop_time = $2, updated_at = $2
		WHERE id = $1 AND active`,
		id, stopTime,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func querySetStreamWithdrawn(ctx context.Context, db executor, id int64, withdrawn int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE streams SET withdrawn = $2, updated_at = NOW()
		WHERE id = $1`,
		id, withdrawn,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListStreams(ctx context.Context, db executor) ([]*model.Stream, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+streamColumns+` FROM streams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStreams(rows)
}

func queryListStreamIDsByPayer(ctx context.Context, db executor, payer string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM streams WHERE payer = $1 ORDER BY id`,
		payer,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func queryListStreamIDsByRecipient(ctx context.Context, db executor, recipient string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM streams WHERE recipient = $1 ORDER BY id`,
		recipient,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func queryCreateMessage(ctx context.Context, db executor, m *model.Message) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (
			id, stream_id, sender, recipient, content, streamed_amount, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`,
		m.ID,
		m.StreamID,
		m.Sender,
		m.Recipient,
		m.Content,
		m.StreamedAmount,
		m.CreatedAt,
	)
	return err
}

func queryGetMessage(ctx context.Context, db executor, id int64) (*model.Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

func queryListMessages(ctx context.Context, db executor) ([]*model.Message, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func queryListMessageIDsBySender(ctx context.Context, db executor, sender string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM messages WHERE sender = $1 ORDER BY id`,
		sender,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, subject, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.Subject, e.Actor, []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEventsBySubject(ctx context.Context, db executor, subject string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, subject, actor, payload, created_at
		FROM events
		WHERE subject = $1
		ORDER BY created_at ASC`,
		subject,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
