package signing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SignerAnnotation is appended to a document after a successful signature.
type SignerAnnotation struct {
	SignerID      string    `json:"signer_id"`
	Name          string    `json:"name,omitzero"`
	Email         string    `json:"email,omitzero"`
	SignedAt      time.Time `json:"signed_at"`
	Position      Position  `json:"position"`
	RequestID     string    `json:"request_id,omitzero"`
	CertificateID string    `json:"certificate_id,omitzero"`
}

// DocumentStore holds document bytes and ownership.
//
// PutBytes replaces the bytes only while the stored bytes still have the
// checksum expectedSHA256 (see DocumentChecksum). Otherwise it returns an
// error wrapping storage.ErrCASFailed and leaves the document unchanged.
type DocumentStore interface {
	GetBytes(ctx context.Context, documentID string) ([]byte, error)
	PutBytes(ctx context.Context, documentID string, data []byte, expectedSHA256 string) error
	GetOwner(ctx context.Context, documentID string) (string, error)
	GetName(ctx context.Context, documentID string) (string, error)
	AddSigner(ctx context.Context, documentID string, a SignerAnnotation) error
}

// SignerInput is everything the external signer needs for one signature.
type SignerInput struct {
	Certificate       []byte
	Password          string
	Document          []byte
	Page              int
	X                 float64
	Y                 float64
	QRSize            float64
	IssuerCertificate []byte
}

// ExternalSigner applies a visible signature to a document and returns the
// signed bytes.
type ExternalSigner interface {
	Sign(ctx context.Context, in SignerInput) ([]byte, error)
}

// EventKind names a notification.
type EventKind string

const (
	EventSignatureRequested  EventKind = "solicitud_firma"
	EventMultiPartyRequested EventKind = "solicitud_multifirma"
	EventSignatureCompleted  EventKind = "firma_completada"
	EventSignatureRejected   EventKind = "firma_rechazada"
	EventMultiPartyCompleted EventKind = "multifirma_completada"
	EventMultiPartyCancelled EventKind = "multifirma_cancelada"
	EventRequestExpired      EventKind = "solicitud_expirada"
)

// Event is the payload handed to a NotificationDispatcher.
type Event struct {
	Kind         EventKind `json:"kind"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name,omitzero"`
	ActorID      string    `json:"actor_id,omitzero"`
	ActorName    string    `json:"actor_name,omitzero"`
	RequestID    string    `json:"request_id,omitzero"`
	MultiPartyID string    `json:"multi_party_id,omitzero"`
	At           time.Time `json:"at"`
	Detail       string    `json:"detail,omitzero"`
}

// NotificationDispatcher delivers events to users. Failures are reported but
// never undo the transition that produced the event.
type NotificationDispatcher interface {
	Notify(ctx context.Context, userID string, ev Event) error
}

// User is a directory entry.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserDirectory resolves user ids to display information.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (User, error)
}

// DocumentChecksum is the lowercase hex SHA-256 of document bytes.
func DocumentChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
