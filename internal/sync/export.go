package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/drip/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AccountCount  int       `json:"account_count"`
	StreamCount   int       `json:"stream_count"`
	MessageCount  int       `json:"message_count"`
	TransferCount int       `json:"transfer_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes the full ledger state as JSONL to w: a header line
// followed by every account, stream, message, and transfer.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})

	streams, err := s.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}
	sort.Slice(streams, func(i, j int) bool {
		return streams[i].ID < streams[j].ID
	})

	messages, err := s.ListMessages(ctx)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ID < messages[j].ID
	})

	transfers, err := s.ListTransfers(ctx)
	if err != nil {
		return fmt.Errorf("list transfers: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	// Write header.
	if err := enc.Encode(header{
		Version:       "1",
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		AccountCount:  len(accounts),
		StreamCount:   len(streams),
		MessageCount:  len(messages),
		TransferCount: len(transfers),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, a := range accounts {
		if err := enc.Encode(record{Type: "account", Data: a}); err != nil {
			return fmt.Errorf("encode account %s: %w", a.ID, err)
		}
	}
	for _, s := range streams {
		if err := enc.Encode(record{Type: "stream", Data: s}); err != nil {
			return fmt.Errorf("encode stream %d: %w", s.ID, err)
		}
	}
	for _, m := range messages {
		if err := enc.Encode(record{Type: "message", Data: m}); err != nil {
			return fmt.Errorf("encode message %d: %w", m.ID, err)
		}
	}
	for _, t := range transfers {
		if err := enc.Encode(record{Type: "transfer", Data: t}); err != nil {
			return fmt.Errorf("encode transfer %s: %w", t.Ref, err)
		}
	}

	return nil
}
