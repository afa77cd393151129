package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/drip/internal/config"
	"github.com/alfredjeanlab/drip/internal/events"
)

// Runner executes configured hook commands for matching ledger events.
type Runner struct {
	hooks  []config.Hook
	logger *slog.Logger
}

// NewRunner creates a hook runner for the given hook configuration.
func NewRunner(hooks []config.Hook, logger *slog.Logger) *Runner {
	return &Runner{hooks: hooks, logger: logger}
}

// Dispatch runs every hook whose topic patterns match the given topic.
// The event payload is fed to the command on stdin, and the topic is exposed
// as DRIP_TOPIC in the command's environment. Hooks run sequentially in
// declaration order.
func (r *Runner) Dispatch(ctx context.Context, topic string, payload []byte) {
	for i := range r.hooks {
		h := &r.hooks[i]
		if !matchesAny(h.Topics, topic) {
			continue
		}

		env := map[string]string{"DRIP_TOPIC": topic}
		result := Execute(ctx, h.Command, h.Timeout, payload, env)

		if result.Err != nil && h.OnError == config.OnErrorWarn {
			r.logger.Warn("hooks: command failed",
				"command", h.Command, "topic", topic, "err", result.Err, "output", result.Output)
		}
		r.logger.Info("hooks: executed", "command", h.Command, "topic", topic, "ok", result.Err == nil)
	}
}

func matchesAny(patterns []string, topic string) bool {
	for _, p := range patterns {
		if events.MatchTopic(p, topic) {
			return true
		}
	}
	return false
}

// StartSubscriber listens for ledger events on the event bus and dispatches
// them to configured hooks. It blocks until ctx is cancelled.
func (r *Runner) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	// Subscribe to all ledger events via wildcard; matching against each
	// hook's patterns happens in Dispatch.
	ch, cancel, err := sub.Subscribe("drip.>")
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	r.logger.Info("hooks: subscriber started", "hooks", len(r.hooks))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("hooks: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				r.logger.Info("hooks: subscription channel closed")
				return nil
			}
			r.Dispatch(ctx, msg.Topic, msg.Data)
		}
	}
}
