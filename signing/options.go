package signing

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// SystemCertificate is the fallback identity used when a user's stored
// certificate record turns out to be unreadable.
type SystemCertificate struct {
	Container []byte
	Password  string
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("component", "signing")
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSignTimeout bounds each external signer call. Default: 30s.
func WithSignTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.signTimeout = d
		}
	}
}

// WithSystemCertificate configures the fallback certificate.
func WithSystemCertificate(container []byte, password string) Option {
	return func(e *Engine) {
		e.system = &SystemCertificate{Container: container, Password: password}
	}
}

// WithNotifier sets the notification dispatcher.
func WithNotifier(n NotificationDispatcher) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithDirectory sets the user directory used to resolve signer names.
func WithDirectory(d UserDirectory) Option {
	return func(e *Engine) {
		e.directory = d
	}
}

// WithCommitAttempts bounds the compare-and-swap retries of a commit.
// Default: 8.
func WithCommitAttempts(n uint) Option {
	return func(e *Engine) {
		if n > 0 {
			e.commitAttempts = n
		}
	}
}
