package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signhand/signing"
	"github.com/jmcleod/signhand/storage"
	"github.com/jmcleod/signhand/storage/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(memory.NewRepository(), WithClock(func() time.Time { return now }))
}

func TestCreateAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	doc, err := s.Create(ctx, "owner", " contract.pdf ", "", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, 8, doc.Size)
	assert.Len(t, doc.SHA256, 64)

	data, err := s.GetBytes(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	owner, err := s.GetOwner(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)

	name, err := s.GetName(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", name)

	_, err = s.GetFor(ctx, "someone", doc.ID)
	require.ErrorIs(t, err, ErrNotOwner)
	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = s.GetBytes(ctx, "missing")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(t.Context(), "owner", "a.pdf", "", nil)
	require.ErrorIs(t, err, ErrInvalidDocument)
	_, err = s.Create(t.Context(), "owner", "  ", "", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidDocument)
	_, err = s.Create(t.Context(), "owner", "big.pdf", "", make([]byte, MaxSize+1))
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestPutBytesAndAnnotations(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	doc, err := s.Create(ctx, "owner", "a.pdf", "", []byte("v1"))
	require.NoError(t, err)

	require.NoError(t, s.PutBytes(ctx, doc.ID, []byte("v2-signed"), doc.SHA256))
	require.NoError(t, s.AddSigner(ctx, doc.ID, signing.SignerAnnotation{SignerID: "ana", Name: "Ana"}))
	require.NoError(t, s.AddSigner(ctx, doc.ID, signing.SignerAnnotation{SignerID: "ben", Name: "Ben"}))

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Size)
	assert.NotEqual(t, doc.SHA256, got.SHA256)
	require.Len(t, got.Signers, 2)
	assert.Equal(t, "ana", got.Signers[0].SignerID)
	assert.Equal(t, uint64(4), got.Version)

	data, err := s.GetBytes(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2-signed"), data)

	require.ErrorIs(t, s.PutBytes(ctx, "missing", []byte("x"), doc.SHA256), ErrDocumentNotFound)
	require.ErrorIs(t, s.PutBytes(ctx, doc.ID, nil, got.SHA256), ErrInvalidDocument)
}

func TestPutBytesRefusesStaleChecksum(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	doc, err := s.Create(ctx, "owner", "a.pdf", "", []byte("v1"))
	require.NoError(t, err)
	read, err := s.GetBytes(ctx, doc.ID)
	require.NoError(t, err)
	readSum := signing.DocumentChecksum(read)
	assert.Equal(t, doc.SHA256, readSum)

	// Another writer signs first.
	require.NoError(t, s.PutBytes(ctx, doc.ID, []byte("v1|first"), readSum))

	err = s.PutBytes(ctx, doc.ID, []byte("v1|second"), readSum)
	require.ErrorIs(t, err, storage.ErrCASFailed)

	data, err := s.GetBytes(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1|first"), data)

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, signing.DocumentChecksum(data), got.SHA256)
	assert.Equal(t, uint64(2), got.Version)
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	a, err := s.Create(ctx, "owner", "a.pdf", "", []byte("a"))
	require.NoError(t, err)
	_, err = s.Create(ctx, "other", "b.pdf", "", []byte("b"))
	require.NoError(t, err)

	docs, err := s.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, a.ID, docs[0].ID)

	require.ErrorIs(t, s.Delete(ctx, "other", a.ID), ErrNotOwner)
	require.NoError(t, s.Delete(ctx, "owner", a.ID))
	_, err = s.GetBytes(ctx, a.ID)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
