package signing

import "context"

// GetRequest returns a request visible to actorID (its requester or signer).
// A pending request past its deadline is expired on access.
func (e *Engine) GetRequest(ctx context.Context, id, actorID string) (*Request, error) {
	req, err := e.store.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != req.RequesterID && actorID != req.SignerID {
		return nil, ErrNotAuthorized
	}
	return e.refreshRequest(ctx, req)
}

func (e *Engine) refreshRequest(ctx context.Context, req *Request) (*Request, error) {
	if !req.Due(e.clock()) {
		return req, nil
	}
	e.expireOverdue(ctx, req)
	return e.store.getRequest(ctx, req.ID)
}

// expireOverdue persists the expiry of a due request, through its aggregate
// when it has one.
func (e *Engine) expireOverdue(ctx context.Context, req *Request) {
	if req.ParentID != "" {
		e.expireMultiParty(ctx, req.ParentID)
	}
	e.expireRequest(ctx, req.ID)
}

// ListForSigner returns the requests addressed to signerID, oldest first.
func (e *Engine) ListForSigner(ctx context.Context, signerID string) ([]*Request, error) {
	return e.list(ctx, func(r *Request) bool { return r.SignerID == signerID })
}

// ListForRequester returns the requests created by requesterID, oldest first.
func (e *Engine) ListForRequester(ctx context.Context, requesterID string) ([]*Request, error) {
	return e.list(ctx, func(r *Request) bool { return r.RequesterID == requesterID })
}

func (e *Engine) list(ctx context.Context, keep func(*Request) bool) ([]*Request, error) {
	reqs, err := e.store.listRequests(ctx, keep)
	if err != nil {
		return nil, err
	}
	for i, r := range reqs {
		if reqs[i], err = e.refreshRequest(ctx, r); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

// GetMultiParty returns an aggregate visible to actorID (its requester or
// one of its signers). An overdue aggregate is expired on access.
func (e *Engine) GetMultiParty(ctx context.Context, id, actorID string) (*MultiPartyRequest, error) {
	m, err := e.store.getMultiParty(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := m.SignerByID(actorID); !ok && actorID != m.RequesterID {
		return nil, ErrNotAuthorized
	}
	if m.Due(e.clock()) {
		e.expireMultiParty(ctx, m.ID)
		return e.store.getMultiParty(ctx, id)
	}
	return m, nil
}

// ListMultiParty returns the aggregates created by requesterID.
func (e *Engine) ListMultiParty(ctx context.Context, requesterID string) ([]*MultiPartyRequest, error) {
	return e.store.listMultiParty(ctx, func(m *MultiPartyRequest) bool { return m.RequesterID == requesterID })
}

// ListChildren resolves the child requests of an aggregate in ordinal order.
func (e *Engine) ListChildren(ctx context.Context, id, actorID string) ([]*Request, error) {
	m, err := e.GetMultiParty(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	children := make([]*Request, 0, len(m.Signers))
	for _, childID := range m.ChildIDs() {
		r, err := e.store.getRequest(ctx, childID)
		if err != nil {
			return nil, err
		}
		children = append(children, r)
	}
	return children, nil
}
