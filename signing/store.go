package signing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmcleod/signhand/storage"
)

const (
	// Namespace is the storage namespace holding requests and aggregates.
	Namespace = "signing"

	recordTypeRequest    = "REQUEST"
	recordTypeMultiParty = "MULTIPARTY"
)

// store reads and writes signing entities as versioned JSON records.
type store struct {
	repo storage.Repository
}

func isMissing(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound)
}

func decodeRequest(rec *storage.Record) (*Request, error) {
	var r Request
	if err := storage.UnmarshalRecord(rec, &r); err != nil {
		return nil, err
	}
	r.Version = rec.Version
	return &r, nil
}

func decodeMultiParty(rec *storage.Record) (*MultiPartyRequest, error) {
	var m MultiPartyRequest
	if err := storage.UnmarshalRecord(rec, &m); err != nil {
		return nil, err
	}
	m.Version = rec.Version
	return &m, nil
}

func (s *store) getRequest(ctx context.Context, id string) (*Request, error) {
	rec, err := s.repo.Get(ctx, Namespace, recordTypeRequest, id)
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
		}
		return nil, err
	}
	return decodeRequest(rec)
}

func (s *store) getMultiParty(ctx context.Context, id string) (*MultiPartyRequest, error) {
	rec, err := s.repo.Get(ctx, Namespace, recordTypeMultiParty, id)
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
		}
		return nil, err
	}
	return decodeMultiParty(rec)
}

// listRequests returns every request matching keep, oldest first.
func (s *store) listRequests(ctx context.Context, keep func(*Request) bool) ([]*Request, error) {
	ids, err := s.repo.List(ctx, Namespace, recordTypeRequest)
	if err != nil {
		return nil, err
	}
	var out []*Request
	for _, id := range ids {
		r, err := s.getRequest(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				continue
			}
			return nil, err
		}
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *store) listMultiParty(ctx context.Context, keep func(*MultiPartyRequest) bool) ([]*MultiPartyRequest, error) {
	ids, err := s.repo.List(ctx, Namespace, recordTypeMultiParty)
	if err != nil {
		return nil, err
	}
	var out []*MultiPartyRequest
	for _, id := range ids {
		m, err := s.getMultiParty(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				continue
			}
			return nil, err
		}
		if keep == nil || keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// txn wraps a BatchTx with typed accessors. Writes are compare-and-swap
// against the version each entity was read at; the new versions are applied
// to the entities only after the batch commits.
type txn struct {
	tx      storage.BatchTx
	written []func()
}

func (t *txn) request(id string) (*Request, error) {
	rec, err := t.tx.Get(recordTypeRequest, id)
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
		}
		return nil, err
	}
	return decodeRequest(rec)
}

func (t *txn) multiParty(id string) (*MultiPartyRequest, error) {
	rec, err := t.tx.Get(recordTypeMultiParty, id)
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
		}
		return nil, err
	}
	return decodeMultiParty(rec)
}

func (t *txn) putRequest(r *Request) error {
	next := r.Version + 1
	rec, err := storage.MarshalRecord(r, next)
	if err != nil {
		return err
	}
	if err := t.tx.PutCAS(recordTypeRequest, r.ID, r.Version, rec); err != nil {
		return fmt.Errorf("request %s: %w", r.ID, err)
	}
	t.written = append(t.written, func() { r.Version = next })
	return nil
}

func (t *txn) putMultiParty(m *MultiPartyRequest) error {
	next := m.Version + 1
	rec, err := storage.MarshalRecord(m, next)
	if err != nil {
		return err
	}
	if err := t.tx.PutCAS(recordTypeMultiParty, m.ID, m.Version, rec); err != nil {
		return fmt.Errorf("multi-party request %s: %w", m.ID, err)
	}
	t.written = append(t.written, func() { m.Version = next })
	return nil
}

// update runs fn in one storage batch and applies the committed versions.
func (s *store) update(ctx context.Context, fn func(t *txn) error) error {
	t := &txn{}
	err := s.repo.Batch(ctx, Namespace, func(tx storage.BatchTx) error {
		t.tx = tx
		t.written = t.written[:0]
		return fn(t)
	})
	if err != nil {
		return err
	}
	for _, apply := range t.written {
		apply()
	}
	return nil
}

func (t *txn) deleteRequest(id string) error {
	return t.tx.Delete(recordTypeRequest, id)
}

func (t *txn) deleteMultiParty(id string) error {
	return t.tx.Delete(recordTypeMultiParty, id)
}
