// Package api exposes certificates, documents and signature requests over a
// JSON REST interface.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/documents"
	"github.com/jmcleod/signhand/signing"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	vault    *certvault.Vault
	engine   *signing.Engine
	docs     *documents.Store
	secrets  SecretProvider
	profiles ProfileStore
	issuer   string

	limiter *passwordLimiter
	audit   *auditLogger
	alertFn AlertFunc
	now     func() time.Time
}

//go:embed openapi.yaml
var openapiDocument []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithProfiles records the caller's name and email from token claims so
// that signers can be resolved by id.
func WithProfiles(p ProfileStore) Option {
	return func(a *API) { a.profiles = p }
}

// WithIssuer requires tokens to carry the given iss claim.
func WithIssuer(iss string) Option {
	return func(a *API) { a.issuer = iss }
}

// WithAlertFunc registers a callback for anomaly alerts such as a spike of
// wrong certificate passwords.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) { a.alertFn = fn }
}

// WithClock overrides the time source used for token validation and rate
// limiting.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

// New creates a new API instance.
func New(vault *certvault.Vault, engine *signing.Engine, docs *documents.Store, secrets SecretProvider, opts ...Option) *API {
	a := &API{
		vault:   vault,
		engine:  engine,
		docs:    docs,
		secrets: secrets,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.audit.metrics = newMetricsCollector(a.alertFn)
	a.limiter = newPasswordLimiter(a.now)
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiDocument)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/health", a.Health)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)

		r.Get("/me", a.Me)

		r.Post("/certificates", a.UploadCertificate)
		r.Get("/certificates", a.ListCertificates)
		r.Post("/certificates/generate", a.GenerateCertificate)
		r.Get("/certificates/{certID}", a.GetCertificate)
		r.Delete("/certificates/{certID}", a.DeleteCertificate)
		r.Post("/certificates/{certID}/validate", a.ValidateCertificatePassword)

		r.Post("/documents", a.UploadDocument)
		r.Get("/documents", a.ListDocuments)
		r.Get("/documents/{docID}", a.GetDocument)
		r.Get("/documents/{docID}/content", a.GetDocumentContent)
		r.Delete("/documents/{docID}", a.DeleteDocument)

		r.Post("/requests", a.CreateRequest)
		r.Get("/requests", a.ListRequests)
		r.Get("/requests/{requestID}", a.GetRequest)
		r.Post("/requests/{requestID}/sign", a.SignRequest)
		r.Post("/requests/{requestID}/reject", a.RejectRequest)

		r.Post("/multiparty", a.CreateMultiParty)
		r.Get("/multiparty", a.ListMultiParty)
		r.Get("/multiparty/{mpID}", a.GetMultiParty)
		r.Get("/multiparty/{mpID}/requests", a.ListMultiPartyRequests)
		r.Post("/multiparty/{mpID}/sign", a.SignMultiParty)
		r.Post("/multiparty/{mpID}/cancel", a.CancelMultiParty)
	})

	return r
}

// Health reports liveness.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunMaintenance periodically drops stale password limiter state until ctx
// is done.
func (a *API) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.sweep()
		}
	}
}
