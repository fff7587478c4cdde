package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/documents"
	"github.com/jmcleod/signhand/signing"
	"github.com/jmcleod/signhand/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	// Wrong password and unreadable records share one message.
	case errors.Is(err, certvault.ErrInvalidPassword), errors.Is(err, certvault.ErrCorruptRecord):
		writeError(w, http.StatusUnprocessableEntity, certvault.ErrInvalidPassword.Error())
	case errors.Is(err, certvault.ErrMalformedInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, certvault.ErrCertificateNotFound),
		errors.Is(err, documents.ErrDocumentNotFound),
		errors.Is(err, signing.ErrRequestNotFound),
		errors.Is(err, signing.ErrUserNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, certvault.ErrNotOwner),
		errors.Is(err, documents.ErrNotOwner),
		errors.Is(err, signing.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, signing.ErrRequestExpired):
		writeError(w, http.StatusGone, signing.ErrRequestExpired.Error())
	case errors.Is(err, signing.ErrAlreadySigned),
		errors.Is(err, signing.ErrAlreadyRejected),
		errors.Is(err, signing.ErrAlreadyCancelled),
		errors.Is(err, signing.ErrAlreadyCompleted),
		errors.Is(err, signing.ErrDocumentChanged),
		errors.Is(err, storage.ErrCASFailed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, signing.ErrTooManySigners),
		errors.Is(err, signing.ErrNoSigners),
		errors.Is(err, signing.ErrDuplicateSigner),
		errors.Is(err, signing.ErrRequesterCannotSign),
		errors.Is(err, signing.ErrInvalidPosition),
		errors.Is(err, signing.ErrInvalidRequest),
		errors.Is(err, documents.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, signing.ErrSigningFailed):
		writeError(w, http.StatusBadGateway, signing.ErrSigningFailed.Error())
	default:
		slog.Error("unhandled api error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
