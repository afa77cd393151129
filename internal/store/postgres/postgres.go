// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *model.Account) error {
	return queryCreateAccount(ctx, s.db, account)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return queryGetAccount(ctx, s.db, id)
}

func (s *PostgresStore) SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) (*model.Account, error) {
	return querySetAccountStatus(ctx, s.db, id, status)
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	return queryListAccounts(ctx, s.db)
}

func (s *PostgresStore) ApplyTransfer(ctx context.Context, transfer *model.Transfer) error {
	return queryApplyTransfer(ctx, s.db, transfer)
}

func (s *PostgresStore) ListTransfers(ctx context.Context) ([]*model.Transfer, error) {
	return queryListTransfers(ctx, s.db)
}

func (s *PostgresStore) NextID(ctx context.Context, sequence string) (int64, error) {
	return queryNextID(ctx, s.db, sequence)
}

func (s *PostgresStore) CreateStream(ctx context.Context, stream *model.Stream) error {
	return queryCreateStream(ctx, s.db, stream)
}

func (s *PostgresStore) GetStream(ctx context.Context, id int64) (*model.Stream, error) {
	return queryGetStream(ctx, s.db, id)
}

func (s *PostgresStore) MarkStreamStopped(ctx context.Context, id int64, stopTime time.Time) error {
	return queryMarkStreamStopped(ctx, s.db, id, stopTime)
}

func (s *PostgresStore) SetStreamWithdrawn(ctx context.Context, id int64, withdrawn int64) error {
	return querySetStreamWithdrawn(ctx, s.db, id, withdrawn)
}

func (s *PostgresStore) ListStreams(ctx context.Context) ([]*model.Stream, error) {
	return queryListStreams(ctx, s.db)
}

func (s *PostgresStore) ListStreamIDsByPayer(ctx context.Context, payer string) ([]int64, error) {
	return queryListStreamIDsByPayer(ctx, s.db, payer)
}

func (s *PostgresStore) ListStreamIDsByRecipient(ctx context.Context, recipient string) ([]int64, error) {
	return queryListStreamIDsByRecipient(ctx, s.db, recipient)
}

func (s *PostgresStore) CreateMessage(ctx context.Context, message *model.Message) error {
	return queryCreateMessage(ctx, s.db, message)
}

func (s *PostgresStore) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	return queryGetMessage(ctx, s.db, id)
}

func (s *PostgresStore) ListMessages(ctx context.Context) ([]*model.Message, error) {
	return queryListMessages(ctx, s.db)
}

func (s *PostgresStore) ListMessageIDsBySender(ctx context.Context, sender string) ([]int64, error) {
	return queryListMessageIDsBySender(ctx, s.db, sender)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEventsBySubject(ctx context.Context, subject string) ([]*model.Event, error) {
	return queryGetEventsBySubject(ctx, s.db, subject)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateAccount(ctx context.Context, account *model.Account) error {
	return queryCreateAccount(ctx, s.tx, account)
}

func (s *txStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return queryGetAccount(ctx, s.tx, id)
}

func (s *txStore) SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) (*model.Account, error) {
	return querySetAccountStatus(ctx, s.tx, id, status)
}

func (s *txStore) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	return queryListAccounts(ctx, s.tx)
}

func (s *txStore) ApplyTransfer(ctx context.Context, transfer *model.Transfer) error {
	return queryApplyTransfer(ctx, s.tx, transfer)
}

func (s *txStore) ListTransfers(ctx context.Context) ([]*model.Transfer, error) {
	return queryListTransfers(ctx, s.tx)
}

func (s *txStore) NextID(ctx context.Context, sequence string) (int64, error) {
	return queryNextID(ctx, s.tx, sequence)
}

func (s *txStore) CreateStream(ctx context.Context, stream *model.Stream) error {
	return queryCreateStream(ctx, s.tx, stream)
}

func (s *txStore) GetStream(ctx context.Context, id int64) (*model.Stream, error) {
	return queryGetStream(ctx, s.tx, id)
}

func (s *txStore) MarkStreamStopped(ctx context.Context, id int64, stopTime time.Time) error {
	return queryMarkStreamStopped(ctx, s.tx, id, stopTime)
}

func (s *txStore) SetStreamWithdrawn(ctx context.Context, id int64, withdrawn int64) error {
	return querySetStreamWithdrawn(ctx, s.tx, id, withdrawn)
}

func (s *txStore) ListStreams(ctx context.Context) ([]*model.Stream, error) {
	return queryListStreams(ctx, s.tx)
}

func (s *txStore) ListStreamIDsByPayer(ctx context.Context, payer string) ([]int64, error) {
	return queryListStreamIDsByPayer(ctx, s.tx, payer)
}

func (s *txStore) ListStreamIDsByRecipient(ctx context.Context, recipient string) ([]int64, error) {
	return queryListStreamIDsByRecipient(ctx, s.tx, recipient)
}

func (s *txStore) CreateMessage(ctx context.Context, message *model.Message) error {
	return queryCreateMessage(ctx, s.tx, message)
}

func (s *txStore) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	return queryGetMessage(ctx, s.tx, id)
}

func (s *txStore) ListMessages(ctx context.Context) ([]*model.Message, error) {
	return queryListMessages(ctx, s.tx)
}

func (s *txStore) ListMessageIDsBySender(ctx context.Context, sender string) ([]int64, error) {
	return queryListMessageIDsBySender(ctx, s.tx, sender)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEventsBySubject(ctx context.Context, subject string) ([]*model.Event, error) {
	return queryGetEventsBySubject(ctx, s.tx, subject)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
