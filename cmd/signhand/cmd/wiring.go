package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/documents"
	"github.com/jmcleod/signhand/extsigner"
	"github.com/jmcleod/signhand/notify"
	"github.com/jmcleod/signhand/signing"
	"github.com/jmcleod/signhand/storage"
	bboltstorage "github.com/jmcleod/signhand/storage/bbolt"
	"github.com/jmcleod/signhand/storage/postgres"
	"github.com/jmcleod/signhand/users"
)

// openRepository opens the configured backend. The returned func releases it.
func openRepository(ctx context.Context, cfg Config) (storage.Repository, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		repo, err := postgres.NewRepositoryFromDSN(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(cfg.DataDir, "signhand.db"), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		return repo, func() { _ = repo.Close() }, nil
	}
}

// services is the set of components built from one repository.
type services struct {
	repo     storage.Repository
	vault    *certvault.Vault
	docs     *documents.Store
	users    *users.Directory
	engine   *signing.Engine
	webhooks []*notify.Webhook
}

func buildServices(cfg Config, repo storage.Repository, logger *slog.Logger) (*services, error) {
	s := &services{
		repo:  repo,
		vault: certvault.New(certvault.NewRepositoryStore(repo), certvault.WithLogger(logger)),
		docs:  documents.New(repo, documents.WithLogger(logger)),
		users: users.New(repo),
	}

	dispatchers := notify.Multi{notify.Logger{L: logger.With("component", "notify")}}
	for _, wc := range cfg.Notify.Webhooks {
		opts := []notify.WebhookOption{notify.WithWebhookLogger(logger.With("component", "webhook", "url", wc.URL))}
		if wc.AuthHeader != "" {
			opts = append(opts, notify.WithAuthHeader(os.ExpandEnv(wc.AuthHeader)))
		}
		if wc.MaxTries > 0 {
			opts = append(opts, notify.WithMaxTries(wc.MaxTries))
		}
		queue := wc.QueueSize
		if queue <= 0 {
			queue = notify.DefaultQueueSize
		}
		wh := notify.NewWebhook(wc.URL, queue, opts...)
		s.webhooks = append(s.webhooks, wh)
		dispatchers = append(dispatchers, wh)
	}

	engineOpts := []signing.Option{
		signing.WithLogger(logger),
		signing.WithDirectory(s.users),
		signing.WithNotifier(dispatchers),
		signing.WithSignTimeout(cfg.Signer.Timeout),
	}
	if cfg.SystemCertificate.Path != "" {
		container, err := os.ReadFile(cfg.SystemCertificate.Path)
		if err != nil {
			return nil, fmt.Errorf("reading system certificate: %w", err)
		}
		password := os.Getenv(cfg.SystemCertificate.PasswordEnv)
		if _, err := certvault.Inspect(container, password, "system"); err != nil {
			return nil, fmt.Errorf("system certificate: %w", err)
		}
		engineOpts = append(engineOpts, signing.WithSystemCertificate(container, password))
	}

	signer := &extsigner.Command{
		Path:    cfg.Signer.Command,
		Args:    cfg.Signer.Args,
		Timeout: cfg.Signer.Timeout,
		Logger:  logger.With("component", "extsigner"),
	}
	s.engine = signing.New(repo, s.vault, s.docs, signer, engineOpts...)
	return s, nil
}

// closeWebhooks drains the webhook queues.
func (s *services) closeWebhooks(ctx context.Context) {
	for _, wh := range s.webhooks {
		if err := wh.Close(ctx); err != nil {
			slog.Warn("closing webhook", "error", err)
		}
	}
}
