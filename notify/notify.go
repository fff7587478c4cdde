package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmcleod/signhand/signing"
)

// Logger writes every event to a structured log. Useful on its own in
// development and as one leg of a Multi.
type Logger struct {
	L *slog.Logger
}

var _ signing.NotificationDispatcher = Logger{}

func (l Logger) Notify(ctx context.Context, userID string, ev signing.Event) error {
	logger := l.L
	if logger == nil {
		logger = slog.Default().With("component", "notify")
	}
	logger.InfoContext(ctx, "notification",
		"user_id", userID,
		"kind", ev.Kind,
		"document_id", ev.DocumentID,
		"request_id", ev.RequestID,
		"multi_party_id", ev.MultiPartyID,
		"actor_id", ev.ActorID,
	)
	return nil
}

// Multi fans an event out to several dispatchers. Every dispatcher is
// attempted; their errors are joined.
type Multi []signing.NotificationDispatcher

var _ signing.NotificationDispatcher = Multi(nil)

func (m Multi) Notify(ctx context.Context, userID string, ev signing.Event) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Notify(ctx, userID, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
