package signing

import "context"

// RejectInput identifies the request being declined and by whom.
type RejectInput struct {
	RequestID string
	SignerID  string
	Reason    string
}

// Reject declines a pending request. For a child request the rejection is
// logged in the aggregate history without touching its counters.
func (e *Engine) Reject(ctx context.Context, in RejectInput) (*Request, error) {
	req, err := e.store.getRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.SignerID != in.SignerID {
		return nil, ErrNotAuthorized
	}
	if req.Terminal() {
		return nil, req.terminalError()
	}
	if req.Due(e.clock()) {
		e.expireOverdue(ctx, req)
		return nil, ErrRequestExpired
	}

	err = e.commit(ctx, func(t *txn) error {
		child, err := t.request(in.RequestID)
		if err != nil {
			return err
		}
		if child.ParentID != "" {
			m, err := t.multiParty(child.ParentID)
			if err != nil {
				return err
			}
			if err := m.RecordRejected(e.clock(), child.SignerID, in.Reason); err != nil {
				return err
			}
			if err := t.putMultiParty(m); err != nil {
				return err
			}
		}
		if err := child.Reject(e.clock(), in.Reason); err != nil {
			return err
		}
		req = child
		return t.putRequest(child)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("request rejected", "request_id", req.ID, "signer_id", req.SignerID)

	signerName := req.SignerName
	if signerName == "" {
		signerName = e.displayName(ctx, req.SignerID)
	}
	e.notify(ctx, req.RequesterID, Event{
		Kind:         EventSignatureRejected,
		DocumentID:   req.DocumentID,
		DocumentName: e.documentName(ctx, req.DocumentID),
		ActorID:      req.SignerID,
		ActorName:    signerName,
		RequestID:    req.ID,
		MultiPartyID: req.ParentID,
		At:           *req.RejectedAt,
		Detail:       req.RejectReason,
	})
	return req, nil
}

// CancelMultiParty cancels an open aggregate on behalf of its requester and
// cascades the cancellation to every child that is still pending.
func (e *Engine) CancelMultiParty(ctx context.Context, id, actorID, reason string) (*MultiPartyRequest, error) {
	var (
		m       *MultiPartyRequest
		pending []*Request
	)
	err := e.commit(ctx, func(t *txn) error {
		var err error
		m, err = t.multiParty(id)
		if err != nil {
			return err
		}
		now := e.clock()
		if err := m.Cancel(now, actorID, reason); err != nil {
			return err
		}
		pending = pending[:0]
		for _, childID := range m.ChildIDs() {
			child, err := t.request(childID)
			if err != nil {
				return err
			}
			if child.Terminal() {
				continue
			}
			if err := child.Cancel(now); err != nil {
				return err
			}
			if err := t.putRequest(child); err != nil {
				return err
			}
			pending = append(pending, child)
		}
		return t.putMultiParty(m)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("multi-party request cancelled",
		"multi_party_id", m.ID,
		"cancelled_children", len(pending),
	)

	docName := e.documentName(ctx, m.DocumentID)
	requester := e.displayName(ctx, m.RequesterID)
	detail := m.Title
	if m.CancelReason != "" {
		detail += ": " + m.CancelReason
	}
	for _, c := range pending {
		e.notify(ctx, c.SignerID, Event{
			Kind:         EventMultiPartyCancelled,
			DocumentID:   m.DocumentID,
			DocumentName: docName,
			ActorID:      m.RequesterID,
			ActorName:    requester,
			RequestID:    c.ID,
			MultiPartyID: m.ID,
			At:           *m.CancelledAt,
			Detail:       detail,
		})
	}
	return m, nil
}
