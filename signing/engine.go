// Package signing implements signature requests, multi-party signing
// campaigns and the orchestration that turns a stored certificate and a
// password into a signed document.
package signing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/storage"
)

const (
	defaultSignTimeout    = 30 * time.Second
	defaultCommitAttempts = 8
)

// Engine coordinates the certificate vault, the document store and the
// external signer. It is safe for concurrent use.
type Engine struct {
	store     *store
	vault     *certvault.Vault
	docs      DocumentStore
	signer    ExternalSigner
	notifier  NotificationDispatcher
	directory UserDirectory
	system    *SystemCertificate

	logger         *slog.Logger
	now            func() time.Time
	signTimeout    time.Duration
	commitAttempts uint
	locks          *keyedMutex
}

// New returns an Engine persisting requests in repo.
func New(repo storage.Repository, vault *certvault.Vault, docs DocumentStore, signer ExternalSigner, opts ...Option) *Engine {
	e := &Engine{
		store:          &store{repo: repo},
		vault:          vault,
		docs:           docs,
		signer:         signer,
		logger:         slog.Default().With("component", "signing"),
		now:            time.Now,
		signTimeout:    defaultSignTimeout,
		commitAttempts: defaultCommitAttempts,
		locks:          newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// commit runs fn in a storage batch, retrying with exponential backoff when
// a compare-and-swap loses a race. fn must re-read everything it writes.
func (e *Engine) commit(ctx context.Context, fn func(t *txn) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := e.store.update(ctx, fn)
		if err == nil || errors.Is(err, storage.ErrCASFailed) {
			if err != nil {
				e.logger.Debug("commit conflict, retrying", "error", err)
			}
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.commitAttempts))
	return err
}

// notify delivers ev and logs failures; it never returns an error.
func (e *Engine) notify(ctx context.Context, userID string, ev Event) {
	if e.notifier == nil || userID == "" {
		return
	}
	if err := e.notifier.Notify(ctx, userID, ev); err != nil {
		e.logger.Warn("notification failed",
			"kind", string(ev.Kind),
			"user_id", userID,
			"request_id", ev.RequestID,
			"error", err,
		)
	}
}

// lookupUser resolves a user through the directory. Without a directory only
// the id is known.
func (e *Engine) lookupUser(ctx context.Context, userID string) (User, error) {
	if e.directory == nil {
		return User{ID: userID}, nil
	}
	u, err := e.directory.Lookup(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// displayName returns the best known name for userID.
func (e *Engine) displayName(ctx context.Context, userID string) string {
	u, err := e.lookupUser(ctx, userID)
	if err != nil || u.Name == "" {
		return userID
	}
	return u.Name
}

func (e *Engine) documentName(ctx context.Context, documentID string) string {
	name, err := e.docs.GetName(ctx, documentID)
	if err != nil {
		e.logger.Debug("document name unavailable", "document_id", documentID, "error", err)
		return ""
	}
	return name
}

// requireOwner checks that userID owns documentID.
func (e *Engine) requireOwner(ctx context.Context, documentID, userID string) error {
	owner, err := e.docs.GetOwner(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", documentID, err)
	}
	if owner != userID {
		return fmt.Errorf("%w: requester does not own document", ErrNotAuthorized)
	}
	return nil
}
