package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/drip/internal/accrual"
	"github.com/alfredjeanlab/drip/internal/events"
	"github.com/alfredjeanlab/drip/internal/metrics"
	"github.com/alfredjeanlab/drip/internal/model"
	"github.com/alfredjeanlab/drip/internal/store"
)

// DefaultEscrowAccount is the account holding deposits while streams run,
// unless configuration names a different one.
const DefaultEscrowAccount = "escrow"

// Server implements the payment-streaming engine: it opens, stops, and pays
// out streams, attaches messages, and maintains the account registry. Every
// mutating operation runs as one store transaction under a non-reentrant
// operation lock; reads never take the lock.
type Server struct {
	store     store.Store
	publisher events.Publisher
	clock     accrual.Clock
	limits    model.Limits
	escrow    string
	metrics   *metrics.Registry
	sseHub    *sseHub

	// engineMu serializes mutating stream operations.
	engineMu sync.Mutex
}

// Options configures optional Server collaborators. Zero values select
// sensible defaults.
type Options struct {
	Clock   accrual.Clock
	Limits  model.Limits
	Escrow  string
	Metrics *metrics.Registry
}

// NewServer returns a new Server backed by the given store and publisher.
func NewServer(s store.Store, p events.Publisher, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = accrual.SystemClock{}
	}
	if opts.Limits == (model.Limits{}) {
		opts.Limits = model.DefaultLimits
	}
	if opts.Escrow == "" {
		opts.Escrow = DefaultEscrowAccount
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry(prometheus.NewRegistry())
	}
	return &Server{
		store:     s,
		publisher: p,
		clock:     opts.Clock,
		limits:    opts.Limits,
		escrow:    opts.Escrow,
		metrics:   opts.Metrics,
		sseHub:    newSSEHub(),
	}
}

// engineKey marks a context as being inside an in-flight engine operation.
type engineKey struct{}

// acquire takes the operation lock and returns a derived context carrying the
// in-flight marker plus a release func. A context that already carries the
// marker is a nested mutating call from within an operation; it is rejected
// with a state error instead of deadlocking on the lock.
func (s *Server) acquire(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(engineKey{}) != nil {
		return nil, nil, stateError("operation already in progress")
	}
	s.engineMu.Lock()
	return context.WithValue(ctx, engineKey{}, struct{}{}), s.engineMu.Unlock, nil
}

// recordAndPublish persists an event to the store, publishes it to NATS, and
// broadcasts it to SSE clients. All three are best-effort; failures are logged
// but do not block the caller. Call only after the operation's transaction
// has committed.
func (s *Server) recordAndPublish(ctx context.Context, topic, subject, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "subject", subject, "error", err)
		return
	}
	ev := &model.Event{
		Topic:   topic,
		Subject: subject,
		Actor:   actor,
		Payload: payload,
	}
	if err := s.store.RecordEvent(ctx, ev); err != nil {
		// ev.ID stays 0: the event is delivered live but not replayable.
		slog.Warn("failed to record event", "topic", topic, "subject", subject, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "subject", subject, "error", err)
		s.metrics.PublishFailures.WithLabelValues(topic).Inc()
	} else {
		s.metrics.EventsPublished.WithLabelValues(topic).Inc()
	}
	s.broadcastEvent(ev.ID, topic, payload)
}

// streamSubject is the event-log subject for a stream.
func streamSubject(id int64) string {
	return "stream/" + strconv.FormatInt(id, 10)
}

// accountSubject is the event-log subject for an account.
func accountSubject(id string) string {
	return "account/" + id
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// authError indicates the caller is not the party allowed to perform the
// operation. Transport layers map this to 403.
type authError string

func (e authError) Error() string { return string(e) }

// stateError indicates the operation conflicts with the current stream or
// account state. Transport layers map this to 409.
type stateError string

func (e stateError) Error() string { return string(e) }

// failed counts an operation failure by reason and passes the error through.
func (s *Server) failed(op string, err error) error {
	s.metrics.OperationFailures.WithLabelValues(op, failureReason(err)).Inc()
	return err
}

// failureReason buckets an operation error for the failure counter.
func failureReason(err error) string {
	var ie inputError
	var ae authError
	var se stateError
	switch {
	case errors.As(err, &ie):
		return "validation"
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &se):
		return "state"
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, store.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInsufficientFunds), errors.Is(err, store.ErrAccountFrozen):
		return "transfer"
	default:
		return "internal"
	}
}

// observe records an operation's duration. Use with defer at operation entry.
func (s *Server) observe(op string, start time.Time) {
	s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
