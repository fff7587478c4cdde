package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/signhand/documents"
	"github.com/jmcleod/signhand/signing"
)

func (a *API) UploadDocument(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	var req UploadDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := a.docs.Create(r.Context(), caller.ID, req.Name, req.ContentType, req.Content)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditDocumentUploaded, r, caller.ID,
		slog.String("document_id", doc.ID),
		slog.String("sha256", doc.SHA256),
	)
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) ListDocuments(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	docs, err := a.docs.List(r.Context(), caller.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	page, meta := paginate(r, docs)
	writeJSON(w, http.StatusOK, ListDocumentsResponse{Documents: page, PaginationMeta: meta})
}

func (a *API) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := a.readableDocument(r)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) GetDocumentContent(w http.ResponseWriter, r *http.Request) {
	doc, err := a.readableDocument(r)
	if err != nil {
		mapError(w, err)
		return
	}
	data, err := a.docs.GetBytes(r.Context(), doc.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"`+doc.SHA256+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// DeleteDocument removes a document and every signature request on it.
func (a *API) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	docID := chi.URLParam(r, "docID")
	if _, err := a.docs.GetFor(r.Context(), caller.ID, docID); err != nil {
		mapError(w, err)
		return
	}
	purged, err := a.engine.PurgeDocument(r.Context(), docID)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.docs.Delete(r.Context(), caller.ID, docID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditDocumentDeleted, r, caller.ID,
		slog.String("document_id", docID),
		slog.Int("requests_purged", purged),
	)
	w.WriteHeader(http.StatusNoContent)
}

// readableDocument returns the document if the caller owns it or has been
// asked to sign it.
func (a *API) readableDocument(r *http.Request) (*documents.Document, error) {
	caller := callerFromContext(r.Context())
	docID := chi.URLParam(r, "docID")
	doc, err := a.docs.Get(r.Context(), docID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID == caller.ID {
		return doc, nil
	}
	reqs, err := a.engine.ListForSigner(r.Context(), caller.ID)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if req.DocumentID == docID {
			return doc, nil
		}
	}
	return nil, signing.ErrNotAuthorized
}
