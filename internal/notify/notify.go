// Package notify delivers lifecycle events to the log and to the message broker.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// LogNotifier writes every event as a structured log line.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, e core.Event) error {
	n.log.InfoContext(ctx, "event",
		"type", e.Type,
		"policy_holder_id", e.PolicyHolderID,
		"policy_number", e.PolicyNumber,
		"at", e.At,
		"data", e.Data)
	return nil
}

// Multi fans an event out to every notifier and joins their failures.
type Multi []core.Notifier

func (m Multi) Notify(ctx context.Context, e core.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
