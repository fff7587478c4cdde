package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/signhand/signing"
)

func (a *API) CreateMultiParty(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var body CreateMultiPartyRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	signers := make([]signing.SignerSpec, len(body.Signers))
	for i, s := range body.Signers {
		signers[i] = signing.SignerSpec{ID: s.ID, Name: s.Name, Email: s.Email, Position: s.Position}
	}
	m, children, err := a.engine.CreateMultiParty(r.Context(), signing.CreateMultiPartyInput{
		DocumentID:  body.DocumentID,
		RequesterID: caller.ID,
		Title:       body.Title,
		Message:     body.Message,
		Signers:     signers,
		Position:    body.Position,
		Priority:    body.Priority,
		ExpiresAt:   expiry(body.ExpiresAt),
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditMultiPartyCreated, r, caller.ID,
		slog.String("multi_party_id", m.ID),
		slog.Int("signers", m.TotalSigners),
	)
	writeJSON(w, http.StatusCreated, MultiPartyResponse{MultiParty: m, Requests: children})
}

func (a *API) ListMultiParty(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	ms, err := a.engine.ListMultiParty(r.Context(), caller.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	page, meta := paginate(r, ms)
	writeJSON(w, http.StatusOK, ListMultiPartyResponse{MultiParty: page, PaginationMeta: meta})
}

func (a *API) GetMultiParty(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	m, err := a.engine.GetMultiParty(r.Context(), chi.URLParam(r, "mpID"), caller.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MultiPartyResponse{MultiParty: m})
}

func (a *API) ListMultiPartyRequests(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	children, err := a.engine.ListChildren(r.Context(), chi.URLParam(r, "mpID"), caller.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	page, meta := paginate(r, children)
	writeJSON(w, http.StatusOK, ListRequestsResponse{Requests: page, PaginationMeta: meta})
}

// SignMultiParty signs the caller's own request within the campaign.
func (a *API) SignMultiParty(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var body SignRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	key := limiterKey(caller.ID, body.CertificateID)
	if !a.allowPassword(w, r, key) {
		return
	}
	req, m, err := a.engine.SignMultiParty(r.Context(), signing.SignMultiPartyInput{
		MultiPartyID:  chi.URLParam(r, "mpID"),
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
		slog.String("multi_party_id", m.ID),
	)
	writeJSON(w, http.StatusOK, SignMultiPartyResponse{Request: req, MultiParty: m})
}

func (a *API) CancelMultiParty(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var body ReasonBody
	if !decodeOptionalJSON(w, r, &body) {
		return
	}
	m, err := a.engine.CancelMultiParty(r.Context(), chi.URLParam(r, "mpID"), caller.ID, body.Reason)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditMultiPartyCancelled, r, caller.ID, slog.String("multi_party_id", m.ID))
	writeJSON(w, http.StatusOK, MultiPartyResponse{MultiParty: m})
}
