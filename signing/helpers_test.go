package signing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/internal/util"
	"github.com/jmcleod/signhand/storage"
	"github.com/jmcleod/signhand/storage/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeDocs struct {
	mu          sync.Mutex
	bytes       map[string][]byte
	owners      map[string]string
	annotations map[string][]SignerAnnotation
	putErr      error
	// afterPut runs after a successful PutBytes, outside the lock.
	afterPut func()
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		bytes:       make(map[string][]byte),
		owners:      make(map[string]string),
		annotations: make(map[string][]SignerAnnotation),
	}
}

func (d *fakeDocs) GetBytes(_ context.Context, id string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bytes[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	return append([]byte(nil), b...), nil
}

func (d *fakeDocs) PutBytes(ctx context.Context, id string, data []byte, expectedSHA256 string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if d.putErr != nil {
		d.mu.Unlock()
		return d.putErr
	}
	if DocumentChecksum(d.bytes[id]) != expectedSHA256 {
		d.mu.Unlock()
		return fmt.Errorf("%s: %w", id, storage.ErrCASFailed)
	}
	d.bytes[id] = append([]byte(nil), data...)
	hook := d.afterPut
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (d *fakeDocs) GetOwner(_ context.Context, id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	owner, ok := d.owners[id]
	if !ok {
		return "", errors.New("document not found")
	}
	return owner, nil
}

func (d *fakeDocs) GetName(_ context.Context, id string) (string, error) {
	return "contract-" + id + ".pdf", nil
}

func (d *fakeDocs) AddSigner(ctx context.Context, id string, a SignerAnnotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.annotations[id] = append(d.annotations[id], a)
	return nil
}

func (d *fakeDocs) content(id string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.bytes[id]...)
}

func (d *fakeDocs) signers(id string) []SignerAnnotation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SignerAnnotation(nil), d.annotations[id]...)
}

// fakeSigner appends a marker to the document so lost updates are visible.
type fakeSigner struct {
	mu     sync.Mutex
	calls  []SignerInput
	err    error
	block  bool
	delay  time.Duration
	marker string
	// entered and gate, when set, hold Sign after it has read the document
	// until the test releases it.
	entered chan struct{}
	gate    chan struct{}
}

func (s *fakeSigner) Sign(ctx context.Context, in SignerInput) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, SignerInput{
		Certificate: append([]byte(nil), in.Certificate...),
		Password:    in.Password,
		Document:    append([]byte(nil), in.Document...),
		Page:        in.Page,
		X:           in.X,
		Y:           in.Y,
		QRSize:      in.QRSize,
	})
	err, block, delay := s.err, s.block, s.delay
	entered, gate := s.entered, s.gate
	s.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	marker := s.marker
	if marker == "" {
		marker = "|sig"
	}
	return append(append([]byte(nil), in.Document...), marker...), nil
}

func (s *fakeSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSigner) lastCall() SignerInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

type sentEvent struct {
	UserID string
	Event  Event
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, userID string, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{UserID: userID, Event: ev})
	return n.err
}

func (n *fakeNotifier) kinds(userID string) []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []EventKind
	for _, e := range n.events {
		if e.UserID == userID {
			out = append(out, e.Event.Kind)
		}
	}
	return out
}

type mapDirectory map[string]User

func (d mapDirectory) Lookup(_ context.Context, id string) (User, error) {
	u, ok := d[id]
	if !ok {
		return User{}, fmt.Errorf("%s: %w", id, ErrUserNotFound)
	}
	return u, nil
}

type harness struct {
	engine *Engine
	vault  *certvault.Vault
	certs  *certvault.RepositoryStore
	repo   storage.Repository
	docs   *fakeDocs
	signer *fakeSigner
	notes  *fakeNotifier
	clock  *testClock
	users  mapDirectory
}

var testStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessWithRepo(t, memory.NewRepository(), opts...)
}

func newHarnessWithRepo(t *testing.T, repo storage.Repository, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		repo:   repo,
		docs:   newFakeDocs(),
		signer: &fakeSigner{},
		notes:  &fakeNotifier{},
		clock:  &testClock{t: testStart},
		users: mapDirectory{
			"owner": {ID: "owner", Name: "Olga Owner", Email: "olga@example.com"},
			"ana":   {ID: "ana", Name: "Ana", Email: "ana@example.com"},
			"ben":   {ID: "ben", Name: "Ben", Email: "ben@example.com"},
			"cai":   {ID: "cai", Name: "Cai", Email: "cai@example.com"},
			"dee":   {ID: "dee", Name: "Dee", Email: "dee@example.com"},
			"eli":   {ID: "eli", Name: "Eli", Email: "eli@example.com"},
			"fay":   {ID: "fay", Name: "Fay", Email: "fay@example.com"},
		},
	}
	h.certs = certvault.NewRepositoryStore(memory.NewRepository())
	h.vault = certvault.New(h.certs,
		certvault.WithClock(h.clock.Now),
		certvault.WithKDFParams(certvault.KDFParams{Iterations: util.MinPBKDF2Iterations, KeyLen: util.AESKeySize}),
	)
	base := []Option{
		WithClock(h.clock.Now),
		WithNotifier(h.notes),
		WithDirectory(h.users),
		WithSignTimeout(2 * time.Second),
	}
	h.engine = New(repo, h.vault, h.docs, h.signer, append(base, opts...)...)
	return h
}

func (h *harness) document(t *testing.T, id, owner string) string {
	t.Helper()
	h.docs.mu.Lock()
	h.docs.bytes[id] = []byte("%PDF-1.7 " + id)
	h.docs.owners[id] = owner
	h.docs.mu.Unlock()
	return id
}

func (h *harness) certificate(t *testing.T, owner, password string) string {
	t.Helper()
	rec, err := h.vault.Generate(t.Context(), certvault.GenerateRequest{
		OwnerID:    owner,
		CommonName: "Cert of " + owner,
		Password:   password,
	})
	require.NoError(t, err)
	return rec.ID
}

var testPosition = Position{Page: 1, X: 50, Y: 60, Size: 80}

func (h *harness) multiParty(t *testing.T, doc string, signers ...string) (*MultiPartyRequest, []*Request) {
	t.Helper()
	specs := make([]SignerSpec, len(signers))
	for i, s := range signers {
		specs[i] = SignerSpec{ID: s}
	}
	m, children, err := h.engine.CreateMultiParty(t.Context(), CreateMultiPartyInput{
		DocumentID:  doc,
		RequesterID: "owner",
		Title:       "Board approval",
		Signers:     specs,
		Position:    testPosition,
	})
	require.NoError(t, err)
	return m, children
}

func countMarkers(b []byte, marker string) int {
	return bytes.Count(b, []byte(marker))
}

// conflictRepo fails the first n compare-and-swap writes made inside
// batches, simulating writers racing on the same records.
type conflictRepo struct {
	storage.Repository
	mu        sync.Mutex
	remaining int
	attempts  int
}

func (r *conflictRepo) Batch(ctx context.Context, namespace string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	r.attempts++
	r.mu.Unlock()
	return r.Repository.Batch(ctx, namespace, func(tx storage.BatchTx) error {
		return fn(&conflictTx{BatchTx: tx, repo: r})
	})
}

type conflictTx struct {
	storage.BatchTx
	repo *conflictRepo
}

func (tx *conflictTx) PutCAS(recordType, recordID string, expected uint64, rec *storage.Record) error {
	tx.repo.mu.Lock()
	fail := tx.repo.remaining != 0
	if tx.repo.remaining > 0 {
		tx.repo.remaining--
	}
	tx.repo.mu.Unlock()
	if fail {
		return storage.ErrCASFailed
	}
	return tx.BatchTx.PutCAS(recordType, recordID, expected, rec)
}
