package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmcleod/signhand/internal/util"
	"github.com/jmcleod/signhand/internal/uuid"
)

// CreateRequestInput describes a single-signer request.
type CreateRequestInput struct {
	DocumentID  string
	RequesterID string
	SignerID    string
	Position    Position
	Message     string
	Priority    Priority
	ExpiresAt   time.Time
}

// CreateRequest opens a pending request for one signer on a document the
// requester owns and notifies the signer.
func (e *Engine) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if in.DocumentID == "" || in.RequesterID == "" || in.SignerID == "" {
		return nil, fmt.Errorf("%w: document, requester and signer are required", ErrInvalidRequest)
	}
	if err := in.Position.Validate(); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, in.Priority)
	}
	if in.SignerID == in.RequesterID {
		return nil, ErrRequesterCannotSign
	}
	now := e.clock()
	expiresAt, err := resolveExpiry(now, in.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwner(ctx, in.DocumentID, in.RequesterID); err != nil {
		return nil, err
	}
	signer, err := e.lookupUser(ctx, in.SignerID)
	if err != nil {
		return nil, fmt.Errorf("signer %s: %w", in.SignerID, err)
	}

	req := &Request{
		ID:          uuid.New(),
		DocumentID:  in.DocumentID,
		RequesterID: in.RequesterID,
		SignerID:    in.SignerID,
		SignerName:  signer.Name,
		SignerEmail: signer.Email,
		Position:    in.Position,
		State:       StatePending,
		Message:     strings.TrimSpace(in.Message),
		Priority:    in.Priority,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if err := e.commit(ctx, func(t *txn) error { return t.putRequest(req) }); err != nil {
		return nil, fmt.Errorf("storing request: %w", err)
	}
	e.logger.Info("signature request created",
		"request_id", req.ID,
		"document_id", req.DocumentID,
		"signer_id", req.SignerID,
	)

	e.notify(ctx, req.SignerID, Event{
		Kind:         EventSignatureRequested,
		DocumentID:   req.DocumentID,
		DocumentName: e.documentName(ctx, req.DocumentID),
		ActorID:      req.RequesterID,
		ActorName:    e.displayName(ctx, req.RequesterID),
		RequestID:    req.ID,
		At:           now,
		Detail:       req.Message,
	})
	return req, nil
}

// SignerSpec names one signer of a multi-party request. Name and Email are
// filled from the directory when empty. Position overrides the default.
type SignerSpec struct {
	ID       string
	Name     string
	Email    string
	Position *Position
}

// CreateMultiPartyInput describes a multi-party signing campaign.
type CreateMultiPartyInput struct {
	DocumentID  string
	RequesterID string
	Title       string
	Message     string
	Signers     []SignerSpec
	Position    Position
	Priority    Priority
	ExpiresAt   time.Time
}

// CreateMultiParty validates the signer set and creates the aggregate and one
// child request per signer in a single batch. Nothing is written if any
// check fails.
func (e *Engine) CreateMultiParty(ctx context.Context, in CreateMultiPartyInput) (*MultiPartyRequest, []*Request, error) {
	if in.DocumentID == "" || in.RequesterID == "" {
		return nil, nil, fmt.Errorf("%w: document and requester are required", ErrInvalidRequest)
	}
	switch n := len(in.Signers); {
	case n == 0:
		return nil, nil, ErrNoSigners
	case n > MaxSigners:
		return nil, nil, fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManySigners, n, MaxSigners)
	}
	if err := e.requireOwner(ctx, in.DocumentID, in.RequesterID); err != nil {
		return nil, nil, err
	}
	signers, err := e.resolveSigners(ctx, in.RequesterID, in.Signers)
	if err != nil {
		return nil, nil, err
	}
	positions := make([]Position, len(in.Signers))
	for i, s := range in.Signers {
		positions[i] = in.Position
		if s.Position != nil {
			positions[i] = *s.Position
		}
		if err := positions[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("signer %s: %w", s.ID, err)
		}
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, in.Priority)
	}
	now := e.clock()
	expiresAt, err := resolveExpiry(now, in.ExpiresAt)
	if err != nil {
		return nil, nil, err
	}
	docName := e.documentName(ctx, in.DocumentID)
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = docName
	}

	m := &MultiPartyRequest{
		ID:          uuid.New(),
		DocumentID:  in.DocumentID,
		RequesterID: in.RequesterID,
		Title:       title,
		Message:     strings.TrimSpace(in.Message),
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	children := make([]*Request, len(signers))
	for i, s := range signers {
		children[i] = &Request{
			ID:          uuid.New(),
			DocumentID:  in.DocumentID,
			RequesterID: in.RequesterID,
			SignerID:    s.ID,
			SignerName:  s.Name,
			SignerEmail: s.Email,
			Position:    positions[i],
			State:       StatePending,
			Message:     m.Message,
			Priority:    in.Priority,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
			ParentID:    m.ID,
			Ordinal:     i + 1,
		}
		signers[i].RequestID = children[i].ID
	}
	m.Signers = signers
	m.Recompute()
	m.appendHistory(ActionCreated, in.RequesterID, now,
		fmt.Sprintf("created with %d signers", len(signers)))

	err = e.commit(ctx, func(t *txn) error {
		if err := t.putMultiParty(m); err != nil {
			return err
		}
		for _, c := range children {
			if err := t.putRequest(c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("storing multi-party request: %w", err)
	}
	e.logger.Info("multi-party request created",
		"multi_party_id", m.ID,
		"document_id", m.DocumentID,
		"signers", len(signers),
	)

	requester := e.displayName(ctx, in.RequesterID)
	for _, c := range children {
		e.notify(ctx, c.SignerID, Event{
			Kind:         EventMultiPartyRequested,
			DocumentID:   m.DocumentID,
			DocumentName: docName,
			ActorID:      m.RequesterID,
			ActorName:    requester,
			RequestID:    c.ID,
			MultiPartyID: m.ID,
			At:           now,
			Detail:       m.Title,
		})
	}
	return m, children, nil
}

// resolveSigners rejects the requester and duplicates (by id or normalized
// email) and fills missing names from the directory.
func (e *Engine) resolveSigners(ctx context.Context, requesterID string, specs []SignerSpec) ([]Signer, error) {
	var requesterEmail string
	if u, err := e.lookupUser(ctx, requesterID); err == nil {
		requesterEmail = util.FoldKey(u.Email)
	}
	seenIDs := make(map[string]bool, len(specs))
	seenEmails := make(map[string]bool, len(specs))
	out := make([]Signer, 0, len(specs))
	for _, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: signer id is required", ErrInvalidRequest)
		}
		if id == requesterID {
			return nil, ErrRequesterCannotSign
		}
		s := Signer{ID: id, Name: strings.TrimSpace(spec.Name), Email: strings.TrimSpace(spec.Email)}
		if s.Name == "" || s.Email == "" {
			u, err := e.lookupUser(ctx, id)
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("signer %s: %w", id, err)
			}
			if s.Name == "" {
				s.Name = u.Name
			}
			if s.Email == "" {
				s.Email = u.Email
			}
		}
		email := util.FoldKey(s.Email)
		if email != "" && email == requesterEmail {
			return nil, ErrRequesterCannotSign
		}
		if seenIDs[id] || (email != "" && seenEmails[email]) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSigner, id)
		}
		seenIDs[id] = true
		if email != "" {
			seenEmails[email] = true
		}
		out = append(out, s)
	}
	return out, nil
}

func resolveExpiry(now, requested time.Time) (time.Time, error) {
	if requested.IsZero() {
		return now.Add(DefaultExpiry), nil
	}
	if !requested.After(now) {
		return time.Time{}, fmt.Errorf("%w: expiry must be in the future", ErrInvalidRequest)
	}
	return requested.UTC(), nil
}
