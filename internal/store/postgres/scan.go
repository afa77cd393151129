package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanAccount scans a single row into a model.Account.
// The row must contain columns in the order defined by accountColumns.
func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Balance,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// scanAccounts scans multiple rows into a slice of model.Account pointers.
func scanAccounts(rows *sql.Rows) ([]*model.Account, error) {
	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// scanStream scans a single row into a model.Stream.
// The row must contain columns in the order defined by streamColumns.
func scanStream(row scannable) (*model.Stream, error) {
	var s model.Stream
	var stopTime sql.NullTime
	err := row.Scan(
		&s.ID,
		&s.Payer,
		&s.Recipient,
		&s.RatePerSecond,
		&s.Deposit,
		&s.Withdrawn,
		&s.Active,
		&s.StartTime,
		&stopTime,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stopTime.Valid {
		t := stopTime.Time
		s.StopTime = &t
	}
	return &s, nil
}

// scanStreams scans multiple rows into a slice of model.Stream pointers.
func scanStreams(rows *sql.Rows) ([]*model.Stream, error) {
	var streams []*model.Stream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return streams, nil
}

// scanMessage scans a single row into a model.Message.
func scanMessage(row scannable) (*model.Message, error) {
	var m model.Message
	err := row.Scan(
		&m.ID,
		&m.StreamID,
		&m.Sender,
		&m.Recipient,
		&m.Content,
		&m.StreamedAmount,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// scanMessages scans multiple rows into a slice of model.Message pointers.
func scanMessages(rows *sql.Rows) ([]*model.Message, error) {
	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// scanTransfer scans a single row into a model.Transfer.
func scanTransfer(row scannable) (*model.Transfer, error) {
	var t model.Transfer
	var (
		from     sql.NullString
		to       sql.NullString
		streamID sql.NullInt64
	)
	err := row.Scan(
		&t.Ref,
		&from,
		&to,
		&t.Amount,
		&t.Kind,
		&streamID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if from.Valid {
		s := from.String
		t.FromAccount = &s
	}
	if to.Valid {
		s := to.String
		t.ToAccount = &s
	}
	if streamID.Valid {
		id := streamID.Int64
		t.StreamID = &id
	}
	return &t, nil
}

// scanTransfers scans multiple rows into a slice of model.Transfer pointers.
func scanTransfers(rows *sql.Rows) ([]*model.Transfer, error) {
	var transfers []*model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.Subject, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanIDs scans single-column id rows into an int64 slice.
func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullStringPtr converts a *string to a sql.NullString.
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullInt64Ptr converts an *int64 to a sql.NullInt64.
func nullInt64Ptr(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
