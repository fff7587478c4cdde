// Package documents stores document bytes, ownership and signer annotations
// in a storage.Repository.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmcleod/signhand/internal/uuid"
	"github.com/jmcleod/signhand/signing"
	"github.com/jmcleod/signhand/storage"
)

const (
	// Namespace is the storage namespace holding documents.
	Namespace = "documents"

	recordTypeMeta    = "DOC"
	recordTypeContent = "CONTENT"

	// MaxSize bounds uploaded and signed document bytes.
	MaxSize = 32 << 20
)

var (
	// ErrDocumentNotFound is returned for unknown document ids.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNotOwner is returned when a caller acts on another user's document.
	ErrNotOwner = errors.New("document belongs to another user")
	// ErrInvalidDocument is returned for empty, oversized or unnamed uploads.
	ErrInvalidDocument = errors.New("invalid document")
)

// Document is the metadata of a stored document.
type Document struct {
	ID          string                     `json:"id"`
	OwnerID     string                     `json:"owner_id"`
	Name        string                     `json:"name"`
	ContentType string                     `json:"content_type"`
	Size        int                        `json:"size"`
	SHA256      string                     `json:"sha256"`
	Signers     []signing.SignerAnnotation `json:"signers"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`

	Version uint64 `json:"-"`
}

type content struct {
	Data []byte `json:"data"`
}

// Store implements signing.DocumentStore.
type Store struct {
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time
}

var _ signing.DocumentStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger.With("component", "documents") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		logger: slog.Default().With("component", "documents"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateContent(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	if len(data) > MaxSize {
		return fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidDocument, MaxSize)
	}
	return nil
}

// Create stores a new document owned by ownerID.
func (s *Store) Create(ctx context.Context, ownerID, name, contentType string, data []byte) (*Document, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrInvalidDocument)
	}
	if err := validateContent(data); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/pdf"
	}
	now := s.now().UTC()
	doc := &Document{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		ContentType: contentType,
		Size:        len(data),
		SHA256:      signing.DocumentChecksum(data),
		Signers:     []signing.SignerAnnotation{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.Batch(ctx, Namespace, func(tx storage.BatchTx) error {
		if err := putMeta(tx, doc); err != nil {
			return err
		}
		rec, err := storage.MarshalRecord(content{Data: data}, 1)
		if err != nil {
			return err
		}
		return tx.Put(recordTypeContent, doc.ID, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}
	doc.Version = 1
	s.logger.Info("document stored", "document_id", doc.ID, "owner_id", ownerID, "size", doc.Size)
	return doc, nil
}

// Get returns the metadata of a document.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	rec, err := s.repo.Get(ctx, Namespace, recordTypeMeta, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return decodeMeta(rec)
}

// GetFor returns a document only if ownerID owns it.
func (s *Store) GetFor(ctx context.Context, ownerID, id string) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return doc, nil
}

// List returns the documents owned by ownerID, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]*Document, error) {
	ids, err := s.repo.List(ctx, Namespace, recordTypeMeta)
	if err != nil {
		return nil, err
	}
	var out []*Document
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrDocumentNotFound) {
				continue
			}
			return nil, err
		}
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a document owned by ownerID and its bytes.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.GetFor(ctx, ownerID, id); err != nil {
		return err
	}
	err := s.repo.Batch(ctx, Namespace, func(tx storage.BatchTx) error {
		if err := tx.Delete(recordTypeMeta, id); err != nil {
			return err
		}
		return tx.Delete(recordTypeContent, id)
	})
	if err != nil {
		return notFound(id, err)
	}
	s.logger.Info("document deleted", "document_id", id, "owner_id", ownerID)
	return nil
}

func (s *Store) GetBytes(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.repo.Get(ctx, Namespace, recordTypeContent, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	var c content
	if err := storage.UnmarshalRecord(rec, &c); err != nil {
		return nil, err
	}
	return c.Data, nil
}

// PutBytes replaces the document bytes and refreshes size and checksum. The
// write is refused with storage.ErrCASFailed when the stored bytes no longer
// match expectedSHA256.
func (s *Store) PutBytes(ctx context.Context, id string, data []byte, expectedSHA256 string) error {
	if err := validateContent(data); err != nil {
		return err
	}
	return s.update(ctx, id, func(doc *Document, tx storage.BatchTx) error {
		if doc.SHA256 != expectedSHA256 {
			return fmt.Errorf("%s: content changed: %w", id, storage.ErrCASFailed)
		}
		doc.Size = len(data)
		doc.SHA256 = signing.DocumentChecksum(data)
		rec, err := storage.MarshalRecord(content{Data: data}, doc.Version+1)
		if err != nil {
			return err
		}
		return tx.Put(recordTypeContent, id, rec)
	})
}

func (s *Store) GetOwner(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.OwnerID, nil
}

func (s *Store) GetName(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Name, nil
}

// AddSigner appends a signer annotation. Annotations are never removed.
func (s *Store) AddSigner(ctx context.Context, id string, a signing.SignerAnnotation) error {
	return s.update(ctx, id, func(doc *Document, _ storage.BatchTx) error {
		doc.Signers = append(doc.Signers, a)
		return nil
	})
}

// update applies fn to the document metadata under compare-and-swap.
func (s *Store) update(ctx context.Context, id string, fn func(doc *Document, tx storage.BatchTx) error) error {
	return s.repo.Batch(ctx, Namespace, func(tx storage.BatchTx) error {
		rec, err := tx.Get(recordTypeMeta, id)
		if err != nil {
			return notFound(id, err)
		}
		doc, err := decodeMeta(rec)
		if err != nil {
			return err
		}
		if err := fn(doc, tx); err != nil {
			return err
		}
		doc.UpdatedAt = s.now().UTC()
		return putMeta(tx, doc)
	})
}

func putMeta(tx storage.BatchTx, doc *Document) error {
	rec, err := storage.MarshalRecord(doc, doc.Version+1)
	if err != nil {
		return err
	}
	return tx.PutCAS(recordTypeMeta, doc.ID, doc.Version, rec)
}

func decodeMeta(rec *storage.Record) (*Document, error) {
	var doc Document
	if err := storage.UnmarshalRecord(rec, &doc); err != nil {
		return nil, err
	}
	doc.Version = rec.Version
	return &doc, nil
}

func notFound(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrNamespaceNotFound) {
		return fmt.Errorf("%s: %w", id, ErrDocumentNotFound)
	}
	return err
}
