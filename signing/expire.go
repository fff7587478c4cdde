package signing

import (
	"context"
	"errors"
)

// ExpireReport counts what one sweep expired.
type ExpireReport struct {
	Requests   int `json:"requests"`
	MultiParty int `json:"multi_party"`
}

// ExpireDue expires every open aggregate and pending request whose deadline
// has passed. Children of an expiring aggregate are expired with it.
func (e *Engine) ExpireDue(ctx context.Context) (ExpireReport, error) {
	var report ExpireReport
	now := e.clock()

	aggregates, err := e.store.listMultiParty(ctx, func(m *MultiPartyRequest) bool { return m.Due(now) })
	if err != nil {
		return report, err
	}
	for _, m := range aggregates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, ok := e.expireMultiParty(ctx, m.ID)
		if ok {
			report.MultiParty++
		}
		report.Requests += n
	}

	requests, err := e.store.listRequests(ctx, func(r *Request) bool { return r.Due(now) })
	if err != nil {
		return report, err
	}
	for _, r := range requests {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if e.expireRequest(ctx, r.ID) {
			report.Requests++
		}
	}
	if report.Requests > 0 || report.MultiParty > 0 {
		e.logger.Info("expired overdue requests",
			"requests", report.Requests,
			"multi_party", report.MultiParty,
		)
	}
	return report, nil
}

// expireRequest persists the expiry of a due request and notifies the
// requester. It reports whether this call expired it.
func (e *Engine) expireRequest(ctx context.Context, id string) bool {
	var req *Request
	err := e.commit(ctx, func(t *txn) error {
		r, err := t.request(id)
		if err != nil {
			return err
		}
		if !r.CheckExpired(e.clock()) {
			return errNothingToDo
		}
		req = r
		return t.putRequest(r)
	})
	if err != nil {
		if !errors.Is(err, errNothingToDo) {
			e.logger.Warn("expiring request", "request_id", id, "error", err)
		}
		return false
	}
	e.notifyExpired(ctx, req)
	return true
}

// expireMultiParty expires a due aggregate together with its pending
// children. It returns the number of children expired and whether the
// aggregate itself was expired by this call.
func (e *Engine) expireMultiParty(ctx context.Context, id string) (int, bool) {
	var (
		m       *MultiPartyRequest
		expired []*Request
	)
	err := e.commit(ctx, func(t *txn) error {
		var err error
		m, err = t.multiParty(id)
		if err != nil {
			return err
		}
		now := e.clock()
		if !m.Due(now) {
			return errNothingToDo
		}
		if err := m.Expire(now); err != nil {
			return err
		}
		expired = expired[:0]
		for _, childID := range m.ChildIDs() {
			child, err := t.request(childID)
			if err != nil {
				return err
			}
			if child.Expire(now) != nil {
				continue
			}
			if err := t.putRequest(child); err != nil {
				return err
			}
			expired = append(expired, child)
		}
		return t.putMultiParty(m)
	})
	if err != nil {
		if !errors.Is(err, errNothingToDo) {
			e.logger.Warn("expiring multi-party request", "multi_party_id", id, "error", err)
		}
		return 0, false
	}
	for _, c := range expired {
		e.notifyExpired(ctx, c)
	}
	return len(expired), true
}

func (e *Engine) notifyExpired(ctx context.Context, req *Request) {
	ev := Event{
		Kind:         EventRequestExpired,
		DocumentID:   req.DocumentID,
		DocumentName: e.documentName(ctx, req.DocumentID),
		ActorID:      req.SignerID,
		ActorName:    req.SignerName,
		RequestID:    req.ID,
		MultiPartyID: req.ParentID,
		At:           *req.ClosedAt,
	}
	e.notify(ctx, req.RequesterID, ev)
	e.notify(ctx, req.SignerID, ev)
}

var errNothingToDo = errors.New("nothing to do")
