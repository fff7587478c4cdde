package certvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmcleod/signhand/storage"
)

const (
	// Namespace is the storage namespace holding certificate records.
	Namespace = "certificates"

	recordType = "CERT"
)

// RecordStore persists certificate records.
type RecordStore interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Record, error)
	Replace(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}

// RepositoryStore implements RecordStore over a storage.Repository.
type RepositoryStore struct {
	repo storage.Repository
}

var _ RecordStore = (*RepositoryStore)(nil)

func NewRepositoryStore(repo storage.Repository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

func (s *RepositoryStore) Create(ctx context.Context, rec *Record) error {
	stored, err := storage.MarshalRecord(rec, 1)
	if err != nil {
		return fmt.Errorf("encoding certificate: %w", err)
	}
	if err := s.repo.PutCAS(ctx, Namespace, recordType, rec.ID, 0, stored); err != nil {
		return fmt.Errorf("storing certificate %s: %w", rec.ID, err)
	}
	rec.Version = 1
	return nil
}

func (s *RepositoryStore) Get(ctx context.Context, id string) (*Record, error) {
	stored, err := s.repo.Get(ctx, Namespace, recordType, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrCertificateNotFound)
		}
		return nil, err
	}
	var rec Record
	if err := storage.UnmarshalRecord(stored, &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrCorruptRecord, id, err)
	}
	rec.Version = stored.Version
	return &rec, nil
}

func (s *RepositoryStore) ListByOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	ids, err := s.repo.List(ctx, Namespace, recordType)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrCertificateNotFound) {
				continue
			}
			return nil, err
		}
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Replace overwrites rec if its Version still matches the stored one.
func (s *RepositoryStore) Replace(ctx context.Context, rec *Record) error {
	next := rec.Version + 1
	stored, err := storage.MarshalRecord(rec, next)
	if err != nil {
		return fmt.Errorf("encoding certificate: %w", err)
	}
	if err := s.repo.PutCAS(ctx, Namespace, recordType, rec.ID, rec.Version, stored); err != nil {
		return fmt.Errorf("replacing certificate %s: %w", rec.ID, err)
	}
	rec.Version = next
	return nil
}

func (s *RepositoryStore) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, Namespace, recordType, id)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound) {
		return fmt.Errorf("%s: %w", id, ErrCertificateNotFound)
	}
	return err
}
