package signing

import (
	"fmt"
	"math"
	"time"
)

// MaxSigners bounds the fan-out of a multi-party request.
const MaxSigners = 5

// AggregateState is the derived state of a multi-party request.
type AggregateState string

const (
	AggregatePending         AggregateState = "pending"
	AggregatePartiallySigned AggregateState = "partially_signed"
	AggregateCompleted       AggregateState = "completed"
	AggregateExpired         AggregateState = "expired"
	AggregateCancelled       AggregateState = "cancelled"
)

// History actions.
const (
	ActionCreated   = "created"
	ActionSigned    = "signed"
	ActionCompleted = "completed"
	ActionRejected  = "rejected"
	ActionCancelled = "cancelled"
	ActionExpired   = "expired"
)

// Signer is one participant of a multi-party request.
type Signer struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitzero"`
	Email     string `json:"email,omitzero"`
	RequestID string `json:"request_id"`
}

// HistoryEntry records one state change of an aggregate.
type HistoryEntry struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitzero"`
}

// MultiPartyRequest aggregates the child requests of a signing campaign.
// Children are referenced by id and resolved through the store.
type MultiPartyRequest struct {
	ID                string         `json:"id"`
	DocumentID        string         `json:"document_id"`
	RequesterID       string         `json:"requester_id"`
	Title             string         `json:"title"`
	Message           string         `json:"message,omitzero"`
	Signers           []Signer       `json:"signers"`
	State             AggregateState `json:"state"`
	SignedCount       int            `json:"signed_count"`
	TotalSigners      int            `json:"total_signers"`
	CompletionPercent float64        `json:"completion_percent"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CancelledAt       *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason      string         `json:"cancel_reason,omitzero"`
	History           []HistoryEntry `json:"history"`

	Version uint64 `json:"-"`
}

// ChildIDs returns the ids of the child requests in ordinal order.
func (m *MultiPartyRequest) ChildIDs() []string {
	ids := make([]string, len(m.Signers))
	for i, s := range m.Signers {
		ids[i] = s.RequestID
	}
	return ids
}

// SignerByID returns the signer entry for id.
func (m *MultiPartyRequest) SignerByID(id string) (Signer, bool) {
	for _, s := range m.Signers {
		if s.ID == id {
			return s, true
		}
	}
	return Signer{}, false
}

// CompletionPercent returns signed/total*100 rounded to two decimals.
func CompletionPercent(signed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(signed)*10000/float64(total)) / 100
}

// DeriveState computes the aggregate state from its counters. Cancelled and
// expired are sticky.
func DeriveState(m *MultiPartyRequest) AggregateState {
	switch {
	case m.State == AggregateCancelled || m.State == AggregateExpired:
		return m.State
	case m.TotalSigners > 0 && m.SignedCount >= m.TotalSigners:
		return AggregateCompleted
	case m.SignedCount == 0:
		return AggregatePending
	default:
		return AggregatePartiallySigned
	}
}

// Recompute refreshes the derived fields from the signer set and count.
func (m *MultiPartyRequest) Recompute() {
	m.TotalSigners = len(m.Signers)
	m.CompletionPercent = CompletionPercent(m.SignedCount, m.TotalSigners)
	m.State = DeriveState(m)
}

// Open reports whether the aggregate still accepts signatures.
func (m *MultiPartyRequest) Open() bool {
	return m.State == AggregatePending || m.State == AggregatePartiallySigned
}

// Due reports whether an open aggregate has reached its expiry at now.
func (m *MultiPartyRequest) Due(now time.Time) bool {
	return m.Open() && !now.Before(m.ExpiresAt)
}

func (m *MultiPartyRequest) closedError() error {
	switch m.State {
	case AggregateCompleted:
		return ErrAlreadyCompleted
	case AggregateCancelled:
		return ErrAlreadyCancelled
	case AggregateExpired:
		return ErrRequestExpired
	}
	return fmt.Errorf("unknown aggregate state %q", m.State)
}

func (m *MultiPartyRequest) appendHistory(action, actor string, at time.Time, detail string) {
	m.History = append(m.History, HistoryEntry{Action: action, Actor: actor, At: at, Detail: detail})
}

// RecordSigned counts one more signature. The call appends a single history
// entry, "completed" when this signature completes the aggregate.
func (m *MultiPartyRequest) RecordSigned(now time.Time, signerID string) error {
	if !m.Open() {
		return m.closedError()
	}
	if m.SignedCount >= len(m.Signers) {
		return ErrAlreadyCompleted
	}
	m.SignedCount++
	m.Recompute()

	name := signerID
	if s, ok := m.SignerByID(signerID); ok && s.Name != "" {
		name = s.Name
	}
	if m.State == AggregateCompleted {
		m.CompletedAt = &now
		m.appendHistory(ActionCompleted, signerID, now,
			fmt.Sprintf("%s signed; all %d signatures collected", name, m.TotalSigners))
		return nil
	}
	m.appendHistory(ActionSigned, signerID, now,
		fmt.Sprintf("%s signed (%d/%d)", name, m.SignedCount, m.TotalSigners))
	return nil
}

// RecordRejected logs a signer's rejection. Counters are unchanged.
func (m *MultiPartyRequest) RecordRejected(now time.Time, signerID, reason string) error {
	if !m.Open() {
		return m.closedError()
	}
	detail := "rejected"
	if reason != "" {
		detail = "rejected: " + reason
	}
	m.appendHistory(ActionRejected, signerID, now, detail)
	return nil
}

// Cancel closes the aggregate. Only the requester may cancel, and only
// before completion.
func (m *MultiPartyRequest) Cancel(now time.Time, actorID, reason string) error {
	if actorID != m.RequesterID {
		return ErrNotAuthorized
	}
	if !m.Open() {
		return m.closedError()
	}
	m.State = AggregateCancelled
	m.CancelledAt = &now
	m.CancelReason = reason
	detail := "cancelled by requester"
	if reason != "" {
		detail += ": " + reason
	}
	m.appendHistory(ActionCancelled, actorID, now, detail)
	return nil
}

// Expire closes an open aggregate as expired.
func (m *MultiPartyRequest) Expire(now time.Time) error {
	if !m.Open() {
		return m.closedError()
	}
	m.State = AggregateExpired
	m.appendHistory(ActionExpired, "system", now,
		fmt.Sprintf("expired with %d/%d signatures", m.SignedCount, m.TotalSigners))
	return nil
}
