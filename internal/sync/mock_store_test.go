package sync

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// mockStore is a minimal in-memory store for sync tests. Only the List
// methods the exporter reads are backed by data.
type mockStore struct {
	accounts  map[string]*model.Account
	streams   map[int64]*model.Stream
	messages  map[int64]*model.Message
	transfers []*model.Transfer
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: make(map[string]*model.Account),
		streams:  make(map[int64]*model.Stream),
		messages: make(map[int64]*model.Message),
	}
}

func (m *mockStore) CreateAccount(_ context.Context, account *model.Account) error {
	m.accounts[account.ID] = account
	return nil
}

func (m *mockStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockStore) SetAccountStatus(_ context.Context, id string, status model.AccountStatus) (*model.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	a.Status = status
	return a, nil
}

func (m *mockStore) ListAccounts(_ context.Context) ([]*model.Account, error) {
	var result []*model.Account
	for _, a := range m.accounts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockStore) ApplyTransfer(_ context.Context, t *model.Transfer) error {
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *mockStore) ListTransfers(_ context.Context) ([]*model.Transfer, error) {
	return m.transfers, nil
}

func (m *mockStore) NextID(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (m *mockStore) CreateStream(_ context.Context, s *model.Stream) error {
	m.streams[s.ID] = s
	return nil
}

func (m *mockStore) GetStream(_ context.Context, id int64) (*model.Stream, error) {
	s, ok := m.streams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockStore) MarkStreamStopped(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

func (m *mockStore) SetStreamWithdrawn(_ context.Context, _ int64, _ int64) error {
	return nil
}

func (m *mockStore) ListStreams(_ context.Context) ([]*model.Stream, error) {
	var result []*model.Stream
	for _, s := range m.streams {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockStore) ListStreamIDsByPayer(_ context.Context, _ string) ([]int64, error) {
	return nil, nil
}

func (m *mockStore) ListStreamIDsByRecipient(_ context.Context, _ string) ([]int64, error) {
	return nil, nil
}

func (m *mockStore) CreateMessage(_ context.Context, msg *model.Message) error {
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockStore) GetMessage(_ context.Context, id int64) (*model.Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return msg, nil
}

func (m *mockStore) ListMessages(_ context.Context) ([]*model.Message, error) {
	var result []*model.Message
	for _, msg := range m.messages {
		result = append(result, msg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockStore) ListMessageIDsBySender(_ context.Context, _ string) ([]int64, error) {
	return nil, nil
}

func (m *mockStore) RecordEvent(_ context.Context, _ *model.Event) error {
	return nil
}

func (m *mockStore) GetEventsBySubject(_ context.Context, _ string) ([]*model.Event, error) {
	return nil, nil
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error {
	return nil
}
