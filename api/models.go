package api

import (
	"time"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/documents"
	"github.com/jmcleod/signhand/signing"
)

// MeResponse describes the authenticated caller.
type MeResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UploadCertificateRequest carries a PKCS#12 container, base64 encoded.
type UploadCertificateRequest struct {
	Container   []byte `json:"container"`
	Password    string `json:"password"`
	Label       string `json:"label,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// GenerateCertificateRequest asks the server to create a certificate.
type GenerateCertificateRequest struct {
	CommonName   string `json:"common_name"`
	Organization string `json:"organization,omitempty"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password"`
	Label        string `json:"label,omitempty"`
	ValidityDays int    `json:"validity_days,omitempty"`
}

// CertificateResponse is the public view of a stored certificate. Key
// material and KDF parameters are never returned.
type CertificateResponse struct {
	ID        string             `json:"id"`
	Label     string             `json:"label,omitempty"`
	System    bool               `json:"system"`
	Metadata  certvault.Metadata `json:"metadata"`
	CreatedAt time.Time          `json:"created_at"`
}

func certificateResponse(rec *certvault.Record) CertificateResponse {
	return CertificateResponse{
		ID:        rec.ID,
		Label:     rec.Label,
		System:    rec.IsSystem(),
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
	}
}

// ListCertificatesResponse lists the caller's certificates.
type ListCertificatesResponse struct {
	Certificates []CertificateResponse `json:"certificates"`
}

// PasswordRequest carries a certificate password.
type PasswordRequest struct {
	Password string `json:"password"`
}

// ValidatePasswordResponse reports whether a password opens a certificate.
type ValidatePasswordResponse struct {
	Valid bool `json:"valid"`
}

// UploadDocumentRequest carries a document, base64 encoded.
type UploadDocumentRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"content"`
}

// ListDocumentsResponse is a page of the caller's documents.
type ListDocumentsResponse struct {
	Documents []*documents.Document `json:"documents"`
	PaginationMeta
}

// CreateRequestRequest opens a single-signer request.
type CreateRequestRequest struct {
	DocumentID string           `json:"document_id"`
	SignerID   string           `json:"signer_id"`
	Position   signing.Position `json:"position"`
	Message    string           `json:"message,omitempty"`
	Priority   signing.Priority `json:"priority,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
}

// ListRequestsResponse is a page of signature requests.
type ListRequestsResponse struct {
	Requests []*signing.Request `json:"requests"`
	PaginationMeta
}

// SignRequestBody selects the certificate to sign with.
type SignRequestBody struct {
	CertificateID string `json:"certificate_id"`
	Password      string `json:"password"`
}

// ReasonBody carries an optional reason for a rejection or cancellation.
type ReasonBody struct {
	Reason string `json:"reason,omitempty"`
}

// SignerBody names one signer of a multi-party request.
type SignerBody struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Email    string            `json:"email,omitempty"`
	Position *signing.Position `json:"position,omitempty"`
}

// CreateMultiPartyRequest opens a multi-party signing campaign.
type CreateMultiPartyRequest struct {
	DocumentID string           `json:"document_id"`
	Title      string           `json:"title"`
	Message    string           `json:"message,omitempty"`
	Signers    []SignerBody     `json:"signers"`
	Position   signing.Position `json:"position"`
	Priority   signing.Priority `json:"priority,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
}

// MultiPartyResponse is an aggregate together with its child requests.
type MultiPartyResponse struct {
	MultiParty *signing.MultiPartyRequest `json:"multi_party"`
	Requests   []*signing.Request         `json:"requests,omitempty"`
}

// ListMultiPartyResponse is a page of the caller's campaigns.
type ListMultiPartyResponse struct {
	MultiParty []*signing.MultiPartyRequest `json:"multi_party"`
	PaginationMeta
}

// SignMultiPartyResponse is the signed child and the updated aggregate.
type SignMultiPartyResponse struct {
	Request    *signing.Request           `json:"request"`
	MultiParty *signing.MultiPartyRequest `json:"multi_party"`
}
