package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/drip/internal/store"
)

// Destination is the interface for an export target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic ledger exports to one or more destinations.
// Exports are skipped while the ledger content is unchanged, so idle
// intervals cost one store read and no destination traffic.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	// lastDigest covers the export body (everything after the header
	// line, which carries a timestamp). lastClean records whether every
	// destination accepted that export; a failed write forces a retry on
	// the next tick even if the ledger has not moved.
	lastDigest [sha256.Size]byte
	lastClean  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.syncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("sync: export failed", "err", err)
		return
	}
	data := buf.Bytes()

	digest := bodyDigest(data)
	if s.lastClean && digest == s.lastDigest {
		s.logger.Debug("sync: ledger unchanged, skipping", "bytes", len(data))
		return
	}

	clean := true
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			clean = false
			s.logger.Error("sync: destination write failed", "destination", dest.Name(), "err", err)
		}
	}
	s.lastDigest = digest
	s.lastClean = clean

	s.logger.Info("sync: export completed", "destinations", len(s.destinations), "bytes", len(data), "clean", clean)
}

// bodyDigest hashes the export minus its first line. The header is
// re-stamped on every export, so including it would defeat change
// detection.
func bodyDigest(data []byte) [sha256.Size]byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return sha256.Sum256(data)
}
