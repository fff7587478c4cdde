package signing

import (
	"context"
	"fmt"
)

// PurgeDocument deletes every request and aggregate that references
// documentID. It is called when the document itself is deleted.
func (e *Engine) PurgeDocument(ctx context.Context, documentID string) (int, error) {
	release := e.locks.Lock(documentID)
	defer release()

	reqs, err := e.store.listRequests(ctx, func(r *Request) bool { return r.DocumentID == documentID })
	if err != nil {
		return 0, err
	}
	aggs, err := e.store.listMultiParty(ctx, func(m *MultiPartyRequest) bool { return m.DocumentID == documentID })
	if err != nil {
		return 0, err
	}
	if len(reqs) == 0 && len(aggs) == 0 {
		return 0, nil
	}
	err = e.store.update(ctx, func(t *txn) error {
		for _, r := range reqs {
			if err := t.deleteRequest(r.ID); err != nil {
				return err
			}
		}
		for _, m := range aggs {
			if err := t.deleteMultiParty(m.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purging requests of document %s: %w", documentID, err)
	}
	n := len(reqs) + len(aggs)
	e.logger.Info("purged requests of deleted document", "document_id", documentID, "records", n)
	return n, nil
}
