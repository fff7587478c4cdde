package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/documents"
)

// maxBodySize bounds JSON bodies; documents travel base64 encoded.
const maxBodySize = documents.MaxSize*4/3 + 64<<10

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, false)
}

// decodeOptionalJSON accepts an empty body and leaves v untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body required")
		default:
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}

// Me returns the authenticated caller.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	c := callerFromContext(r.Context())
	writeJSON(w, http.StatusOK, MeResponse{ID: c.ID, Name: c.Name, Email: c.Email})
}

func (a *API) UploadCertificate(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var req UploadCertificateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = caller.Name
	}
	rec, err := a.vault.Store(r.Context(), certvault.StoreRequest{
		Container:   req.Container,
		Password:    req.Password,
		OwnerID:     caller.ID,
		DisplayName: displayName,
		Label:       req.Label,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditCertificateStored, r, caller.ID, slog.String("certificate_id", rec.ID))
	writeJSON(w, http.StatusCreated, certificateResponse(rec))
}

func (a *API) GenerateCertificate(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var req GenerateCertificateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CommonName == "" {
		req.CommonName = caller.Name
	}
	if req.Email == "" {
		req.Email = caller.Email
	}
	rec, err := a.vault.Generate(r.Context(), certvault.GenerateRequest{
		OwnerID:      caller.ID,
		CommonName:   req.CommonName,
		Organization: req.Organization,
		Email:        req.Email,
		Password:     req.Password,
		Label:        req.Label,
		ValidityDays: req.ValidityDays,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditCertificateGenerated, r, caller.ID, slog.String("certificate_id", rec.ID))
	writeJSON(w, http.StatusCreated, certificateResponse(rec))
}

func (a *API) ListCertificates(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	recs, err := a.vault.List(r.Context(), caller.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	out := ListCertificatesResponse{Certificates: make([]CertificateResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Certificates = append(out.Certificates, certificateResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) GetCertificate(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	rec, err := a.vault.Get(r.Context(), caller.ID, chi.URLParam(r, "certID"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certificateResponse(rec))
}

func (a *API) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	certID := chi.URLParam(r, "certID")
	if err := a.vault.Delete(r.Context(), caller.ID, certID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditCertificateDeleted, r, caller.ID, slog.String("certificate_id", certID))
	w.WriteHeader(http.StatusNoContent)
}

// ValidateCertificatePassword reports whether a password opens the
// certificate. Wrong answers count against the password limiter.
func (a *API) ValidateCertificatePassword(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	certID := chi.URLParam(r, "certID")
	var req PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := limiterKey(caller.ID, certID)
	if !a.allowPassword(w, r, key) {
		return
	}
	rec, err := a.vault.Get(r.Context(), caller.ID, certID)
	if err != nil {
		mapError(w, err)
		return
	}
	valid := a.vault.ValidatePassword(rec, req.Password)
	if valid {
		a.limiter.recordSuccess(key)
	} else {
		a.passwordFailed(r, key, caller.ID, certID)
	}
	writeJSON(w, http.StatusOK, ValidatePasswordResponse{Valid: valid})
}

func (a *API) allowPassword(w http.ResponseWriter, r *http.Request, key string) bool {
	if blocked, retryAfter := a.limiter.check(key); blocked {
		a.audit.logFailure(AuditPasswordRateLimited, r, "locked out", slog.String("key", key))
		writeRateLimited(w, retryAfter)
		return false
	}
	return true
}

func (a *API) passwordFailed(r *http.Request, key, userID, certID string) {
	a.limiter.recordFailure(key)
	a.audit.logFailure(AuditPasswordFailure, r, "wrong certificate password",
		slog.String("user_id", userID),
		slog.String("certificate_id", certID),
	)
}

// trackPassword updates the limiter after an operation that consumed a
// certificate password.
func (a *API) trackPassword(r *http.Request, key, userID, certID string, err error) {
	switch {
	case err == nil:
		a.limiter.recordSuccess(key)
	case errors.Is(err, certvault.ErrInvalidPassword):
		a.passwordFailed(r, key, userID, certID)
	}
}
