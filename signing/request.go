package signing

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a single signature request.
type State string

const (
	StatePending   State = "pending"
	StateSigned    State = "signed"
	StateRejected  State = "rejected"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Priority is an informational urgency hint shown to the signer.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// DefaultExpiry is how long a request stays open when no expiry is given.
const DefaultExpiry = 7 * 24 * time.Hour

// Request tracks one signer through a single document signature.
type Request struct {
	ID            string     `json:"id"`
	DocumentID    string     `json:"document_id"`
	RequesterID   string     `json:"requester_id"`
	SignerID      string     `json:"signer_id"`
	SignerName    string     `json:"signer_name,omitzero"`
	SignerEmail   string     `json:"signer_email,omitzero"`
	Position      Position   `json:"position"`
	State         State      `json:"state"`
	Message       string     `json:"message,omitzero"`
	Priority      Priority   `json:"priority"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	RejectReason  string     `json:"reject_reason,omitzero"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CertificateID string     `json:"certificate_id,omitzero"`
	ParentID      string     `json:"parent_id,omitzero"`
	Ordinal       int        `json:"ordinal,omitzero"`

	Version uint64 `json:"-"`
}

// Terminal reports whether the request accepts no further transitions.
func (r *Request) Terminal() bool {
	return r.State != StatePending
}

// Due reports whether a pending request has reached its expiry at now.
func (r *Request) Due(now time.Time) bool {
	return r.State == StatePending && !now.Before(r.ExpiresAt)
}

// terminalError explains why a terminal request cannot transition.
func (r *Request) terminalError() error {
	switch r.State {
	case StateSigned:
		return ErrAlreadySigned
	case StateRejected:
		return ErrAlreadyRejected
	case StateExpired:
		return ErrRequestExpired
	case StateCancelled:
		return ErrAlreadyCancelled
	}
	return fmt.Errorf("unknown request state %q", r.State)
}

// CheckExpired moves a due pending request to expired and reports whether it
// did so.
func (r *Request) CheckExpired(now time.Time) bool {
	if !r.Due(now) {
		return false
	}
	r.State = StateExpired
	r.ClosedAt = &now
	return true
}

// Sign marks the request signed with the given certificate. A due request is
// expired instead and ErrRequestExpired is returned.
func (r *Request) Sign(now time.Time, certificateID string) error {
	if r.Terminal() {
		return r.terminalError()
	}
	if r.CheckExpired(now) {
		return ErrRequestExpired
	}
	r.State = StateSigned
	r.SignedAt = &now
	r.CertificateID = certificateID
	return nil
}

// Reject marks the request rejected. The reason may be empty.
func (r *Request) Reject(now time.Time, reason string) error {
	if r.Terminal() {
		return r.terminalError()
	}
	if r.CheckExpired(now) {
		return ErrRequestExpired
	}
	r.State = StateRejected
	r.RejectedAt = &now
	r.RejectReason = reason
	return nil
}

// Expire forces a pending request to expired regardless of its deadline.
func (r *Request) Expire(now time.Time) error {
	if r.Terminal() {
		return r.terminalError()
	}
	r.State = StateExpired
	r.ClosedAt = &now
	return nil
}

// Cancel closes a pending request because its aggregate was cancelled.
func (r *Request) Cancel(now time.Time) error {
	if r.Terminal() {
		return r.terminalError()
	}
	r.State = StateCancelled
	r.ClosedAt = &now
	return nil
}
