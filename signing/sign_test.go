package signing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signhand/storage/memory"
)

func TestSignCompletesWhenCallerCancelsAfterWrite(t *testing.T) {
	h := newHarness(t)
	doc := h.document(t, "doc-1", "owner")
	cert := h.certificate(t, "ana", "pw")
	m, children := h.multiParty(t, doc, "ana", "ben")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.docs.afterPut = cancel

	req, err := h.engine.Sign(ctx, SignInput{RequestID: children[0].ID, SignerID: "ana", CertificateID: cert, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StateSigned, req.State)
	require.Error(t, ctx.Err())

	got, err := h.engine.GetRequest(t.Context(), children[0].ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, StateSigned, got.State)

	agg, err := h.engine.GetMultiParty(t.Context(), m.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, 1, agg.SignedCount)

	assert.Equal(t, 1, countMarkers(h.docs.content(doc), "|sig"))
	require.Len(t, h.docs.signers(doc), 1)
	assert.Equal(t, "ana", h.docs.signers(doc)[0].SignerID)
	assert.Contains(t, h.notes.kinds("owner"), EventSignatureCompleted)
}

func TestRestoreRunsWhenCallerCancelsAfterWrite(t *testing.T) {
	repo := &conflictRepo{Repository: memory.NewRepository()}
	h := newHarnessWithRepo(t, repo, WithCommitAttempts(2))
	doc := h.document(t, "doc-1", "owner")
	cert := h.certificate(t, "ana", "pw")
	_, children := h.multiParty(t, doc, "ana")
	before := h.docs.content(doc)

	repo.mu.Lock()
	repo.remaining = -1
	repo.mu.Unlock()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.docs.afterPut = cancel

	_, err := h.engine.Sign(ctx, SignInput{RequestID: children[0].ID, SignerID: "ana", CertificateID: cert, Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, before, h.docs.content(doc))
	assert.Empty(t, h.docs.signers(doc))

	repo.mu.Lock()
	repo.remaining = 0
	repo.mu.Unlock()
	req, err := h.engine.GetRequest(t.Context(), children[0].ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, StatePending, req.State)
}

// Two engines share storage and documents but not the in-process document
// lock, as two server instances on one database would.
func TestSignRefusesDocumentReplacedByAnotherEngine(t *testing.T) {
	h := newHarness(t)
	doc := h.document(t, "doc-1", "owner")
	anaCert := h.certificate(t, "ana", "pw-a")
	benCert := h.certificate(t, "ben", "pw-b")
	m, children := h.multiParty(t, doc, "ana", "ben")

	entered := make(chan struct{})
	gate := make(chan struct{})
	h.signer.mu.Lock()
	h.signer.marker = "|ana"
	h.signer.entered, h.signer.gate = entered, gate
	h.signer.mu.Unlock()

	benSigner := &fakeSigner{marker: "|ben"}
	other := New(h.repo, h.vault, h.docs, benSigner,
		WithClock(h.clock.Now),
		WithDirectory(h.users),
		WithSignTimeout(2*time.Second),
	)

	errs := make(chan error, 1)
	go func() {
		_, err := h.engine.Sign(t.Context(), SignInput{RequestID: children[0].ID, SignerID: "ana", CertificateID: anaCert, Password: "pw-a"})
		errs <- err
	}()

	<-entered
	_, err := other.Sign(t.Context(), SignInput{RequestID: children[1].ID, SignerID: "ben", CertificateID: benCert, Password: "pw-b"})
	require.NoError(t, err)
	close(gate)

	err = <-errs
	require.ErrorIs(t, err, ErrSigningFailed)
	require.ErrorIs(t, err, ErrDocumentChanged)

	content := h.docs.content(doc)
	assert.Equal(t, 1, countMarkers(content, "|ben"))
	assert.Zero(t, countMarkers(content, "|ana"))

	pending, err := h.engine.GetRequest(t.Context(), children[0].ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, StatePending, pending.State)

	h.signer.mu.Lock()
	h.signer.entered, h.signer.gate = nil, nil
	h.signer.mu.Unlock()

	_, err = h.engine.Sign(t.Context(), SignInput{RequestID: children[0].ID, SignerID: "ana", CertificateID: anaCert, Password: "pw-a"})
	require.NoError(t, err)

	content = h.docs.content(doc)
	assert.Equal(t, 1, countMarkers(content, "|ben"))
	assert.Equal(t, 1, countMarkers(content, "|ana"))

	agg, err := h.engine.GetMultiParty(t.Context(), m.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, AggregateCompleted, agg.State)
	assert.Equal(t, 2, agg.SignedCount)
}
