package certvault

import (
	"log/slog"
	"time"
)

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		v.logger = logger.With("component", "certvault")
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// WithKDFParams sets the PBKDF2 parameters used for new records. Existing
// records keep the parameters they were written with.
func WithKDFParams(params KDFParams) Option {
	return func(v *Vault) {
		v.kdf = params
	}
}
