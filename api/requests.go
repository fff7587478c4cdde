package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/signhand/signing"
)

func expiry(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (a *API) CreateRequest(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var body CreateRequestRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := a.engine.CreateRequest(r.Context(), signing.CreateRequestInput{
		DocumentID:  body.DocumentID,
		RequesterID: caller.ID,
		SignerID:    body.SignerID,
		Position:    body.Position,
		Message:     body.Message,
		Priority:    body.Priority,
		ExpiresAt:   expiry(body.ExpiresAt),
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditRequestCreated, r, caller.ID,
		slog.String("request_id", req.ID),
		slog.String("signer_id", req.SignerID),
	)
	writeJSON(w, http.StatusCreated, req)
}

// ListRequests lists requests addressed to the caller, or created by the
// caller with role=requester. state filters by lifecycle state.
func (a *API) ListRequests(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var (
		reqs []*signing.Request
		err  error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "", "signer":
		reqs, err = a.engine.ListForSigner(r.Context(), caller.ID)
	case "requester":
		reqs, err = a.engine.ListForRequester(r.Context(), caller.ID)
	default:
		writeError(w, http.StatusBadRequest, "role must be signer or requester")
		return
	}
	if err != nil {
		mapError(w, err)
		return
	}
	if state := signing.State(r.URL.Query().Get("state")); state != "" {
		filtered := reqs[:0]
		for _, req := range reqs {
			if req.State == state {
				filtered = append(filtered, req)
			}
		}
		reqs = filtered
	}
	page, meta := paginate(r, reqs)
	writeJSON(w, http.StatusOK, ListRequestsResponse{Requests: page, PaginationMeta: meta})
}

func (a *API) GetRequest(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	req, err := a.engine.GetRequest(r.Context(), chi.URLParam(r, "requestID"), caller.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) SignRequest(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var body SignRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	key := limiterKey(caller.ID, body.CertificateID)
	if !a.allowPassword(w, r, key) {
		return
	}
	req, err := a.engine.Sign(r.Context(), signing.SignInput{
		RequestID:     chi.URLParam(r, "requestID"),
		SignerID:      caller.ID,
		CertificateID: body.CertificateID,
		Password:      body.Password,
	})
	a.trackPassword(r, key, caller.ID, body.CertificateID, err)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditRequestSigned, r, caller.ID,
		slog.String("request_id", req.ID),
		slog.String("certificate_id", body.CertificateID),
	)
	writeJSON(w, http.StatusOK, req)
}

func (a *API) RejectRequest(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var body ReasonBody
	if !decodeOptionalJSON(w, r, &body) {
		return
	}
	req, err := a.engine.Reject(r.Context(), signing.RejectInput{
		RequestID: chi.URLParam(r, "requestID"),
		SignerID:  caller.ID,
		Reason:    body.Reason,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditRequestRejected, r, caller.ID, slog.String("request_id", req.ID))
	writeJSON(w, http.StatusOK, req)
}
