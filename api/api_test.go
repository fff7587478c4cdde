package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signhand/api"
	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/documents"
	"github.com/jmcleod/signhand/signing"
	"github.com/jmcleod/signhand/storage/memory"
	"github.com/jmcleod/signhand/users"
)

var testSecret = []byte("api-test-secret")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type appendSigner struct{}

func (appendSigner) Sign(_ context.Context, in signing.SignerInput) ([]byte, error) {
	return append(append([]byte(nil), in.Document...), "|sig"...), nil
}

type testServer struct {
	*httptest.Server
	clock *clock
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &clock{t: time.Now().UTC()}
	repo := memory.NewRepository()
	vault := certvault.New(certvault.NewRepositoryStore(repo),
		certvault.WithLogger(logger),
		certvault.WithKDFParams(certvault.KDFParams{Iterations: 100_000, KeyLen: 32}),
	)
	docs := documents.New(repo, documents.WithLogger(logger))
	dir := users.New(repo)
	engine := signing.New(repo, vault, docs, appendSigner{},
		signing.WithLogger(logger),
		signing.WithClock(clk.Now),
		signing.WithDirectory(dir),
	)
	a := api.New(vault, engine, docs, api.StaticSecret(testSecret),
		api.WithLogger(logger),
		api.WithProfiles(dir),
	)
	r := chi.NewRouter()
	r.Use(api.SecurityHeaders)
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clock: clk}
}

func token(t *testing.T, sub, name, email string) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Name:  name,
		Email: email,
	}).SignedString(testSecret)
	require.NoError(t, err)
	return tok
}

type user struct {
	t     *testing.T
	srv   *testServer
	token string
}

func (s *testServer) login(t *testing.T, id, name string) *user {
	u := &user{t: t, srv: s, token: token(t, id, name, id+"@example.com")}
	resp := u.do(http.MethodGet, "/me", nil, nil)
	require.Equal(t, http.StatusOK, resp)
	return u
}

func (u *user) do(method, path string, body, out any) int {
	u.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(u.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(u.t.Context(), method, u.srv.URL+"/api/v1"+path, &buf)
	require.NoError(u.t, err)
	req.Header.Set("Authorization", "Bearer "+u.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(u.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(u.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (u *user) generateCert(password string) api.CertificateResponse {
	u.t.Helper()
	var cert api.CertificateResponse
	code := u.do(http.MethodPost, "/certificates/generate", api.GenerateCertificateRequest{Password: password}, &cert)
	require.Equal(u.t, http.StatusCreated, code)
	return cert
}

func (u *user) uploadDoc(content string) *documents.Document {
	u.t.Helper()
	var doc documents.Document
	code := u.do(http.MethodPost, "/documents", api.UploadDocumentRequest{Name: "contract.pdf", Content: []byte(content)}, &doc)
	require.Equal(u.t, http.StatusCreated, code)
	return &doc
}

func (u *user) content(docID string) (int, string) {
	u.t.Helper()
	req, err := http.NewRequestWithContext(u.t.Context(), http.MethodGet, u.srv.URL+"/api/v1/documents/"+docID+"/content", nil)
	require.NoError(u.t, err)
	req.Header.Set("Authorization", "Bearer "+u.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(u.t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHealthAndAuth(t *testing.T) {
	srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString(testSecret)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"missing":   "",
		"garbage":   "not-a-jwt",
		"expired":   expired,
		"forged":    forged,
		"no expiry": noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			u := &user{t: t, srv: srv, token: tok}
			var body api.ErrorResponse
			assert.Equal(t, http.StatusUnauthorized, u.do(http.MethodGet, "/me", nil, &body))
			assert.NotEmpty(t, body.Error)
		})
	}

	alice := srv.login(t, "alice", "Alice")
	var me api.MeResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/me", nil, &me))
	assert.Equal(t, "alice", me.ID)
	assert.Equal(t, "Alice", me.Name)
}

func TestSecurityHeaders(t *testing.T) {
	srv := setupServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'none'")
}

func TestCertificateEndpoints(t *testing.T) {
	srv := setupServer(t)
	bob := srv.login(t, "bob", "Bob Builder")
	carol := srv.login(t, "carol", "Carol")

	cert := bob.generateCert("bob-pass")
	assert.Equal(t, "Bob Builder", cert.Metadata.CommonName)
	assert.False(t, cert.System)

	var list api.ListCertificatesResponse
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/certificates", nil, &list))
	require.Len(t, list.Certificates, 1)

	var valid api.ValidatePasswordResponse
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/certificates/"+cert.ID+"/validate", api.PasswordRequest{Password: "bob-pass"}, &valid))
	assert.True(t, valid.Valid)
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/certificates/"+cert.ID+"/validate", api.PasswordRequest{Password: "nope"}, &valid))
	assert.False(t, valid.Valid)

	assert.Equal(t, http.StatusForbidden, carol.do(http.MethodGet, "/certificates/"+cert.ID, nil, nil))
	assert.Equal(t, http.StatusForbidden, carol.do(http.MethodDelete, "/certificates/"+cert.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/certificates/missing", nil, nil))

	var errBody api.ErrorResponse
	code := bob.do(http.MethodPost, "/certificates", api.UploadCertificateRequest{Container: []byte("junk"), Password: "x"}, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "password incorrect or certificate corrupted", errBody.Error)

	assert.Equal(t, http.StatusNoContent, bob.do(http.MethodDelete, "/certificates/"+cert.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/certificates/"+cert.ID, nil, nil))
}

func TestSingleRequestFlow(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	carol := srv.login(t, "carol", "Carol")

	cert := bob.generateCert("bob-pass")
	doc := alice.uploadDoc("%PDF-1.7")

	var req signing.Request
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/requests", api.CreateRequestRequest{
		DocumentID: doc.ID,
		SignerID:   "bob",
		Position:   signing.Position{Page: 1, X: 10, Y: 20, Size: 50},
		Message:    "please sign",
	}, &req))
	assert.Equal(t, signing.StatePending, req.State)
	assert.Equal(t, "Bob", req.SignerName)
	assert.Equal(t, "bob@example.com", req.SignerEmail)

	var pending api.ListRequestsResponse
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/requests?state=pending", nil, &pending))
	require.Len(t, pending.Requests, 1)
	assert.Equal(t, 1, pending.TotalCount)

	var mine api.ListRequestsResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/requests?role=requester", nil, &mine))
	require.Len(t, mine.Requests, 1)
	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodGet, "/requests?role=boss", nil, nil))

	// The signer may read the document; strangers may not.
	code, _ := bob.content(doc.ID)
	assert.Equal(t, http.StatusOK, code)
	code, _ = carol.content(doc.ID)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, http.StatusForbidden, carol.do(http.MethodGet, "/requests/"+req.ID, nil, nil))
	assert.Equal(t, http.StatusForbidden, carol.do(http.MethodPost, "/requests/"+req.ID+"/sign",
		api.SignRequestBody{CertificateID: cert.ID, Password: "bob-pass"}, nil))

	var errBody api.ErrorResponse
	code = bob.do(http.MethodPost, "/requests/"+req.ID+"/sign", api.SignRequestBody{CertificateID: cert.ID, Password: "wrong"}, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "password incorrect or certificate corrupted", errBody.Error)

	var signed signing.Request
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/requests/"+req.ID+"/sign",
		api.SignRequestBody{CertificateID: cert.ID, Password: "bob-pass"}, &signed))
	assert.Equal(t, signing.StateSigned, signed.State)
	assert.Equal(t, cert.ID, signed.CertificateID)
	require.NotNil(t, signed.SignedAt)

	code, body := alice.content(doc.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "%PDF-1.7|sig", body)

	var meta documents.Document
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/documents/"+doc.ID, nil, &meta))
	require.Len(t, meta.Signers, 1)
	assert.Equal(t, "bob", meta.Signers[0].SignerID)

	assert.Equal(t, http.StatusConflict, bob.do(http.MethodPost, "/requests/"+req.ID+"/sign",
		api.SignRequestBody{CertificateID: cert.ID, Password: "bob-pass"}, nil))
	assert.Equal(t, http.StatusConflict, bob.do(http.MethodPost, "/requests/"+req.ID+"/reject", nil, nil))
}

func TestCreateRequestValidation(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	srv.login(t, "bob", "Bob")
	doc := alice.uploadDoc("%PDF")

	cases := map[string]struct {
		body api.CreateRequestRequest
		want int
	}{
		"self":         {api.CreateRequestRequest{DocumentID: doc.ID, SignerID: "alice", Position: signing.Position{Page: 1}}, http.StatusBadRequest},
		"bad position": {api.CreateRequestRequest{DocumentID: doc.ID, SignerID: "bob", Position: signing.Position{Page: 0}}, http.StatusBadRequest},
		"bad priority": {api.CreateRequestRequest{DocumentID: doc.ID, SignerID: "bob", Position: signing.Position{Page: 1}, Priority: "urgent"}, http.StatusBadRequest},
		"unknown user": {api.CreateRequestRequest{DocumentID: doc.ID, SignerID: "zed", Position: signing.Position{Page: 1}}, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			alice.t = t
			assert.Equal(t, tc.want, alice.do(http.MethodPost, "/requests", tc.body, nil))
		})
	}
	alice.t = t

	bob := srv.login(t, "bob", "Bob")
	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodPost, "/requests", api.CreateRequestRequest{
		DocumentID: doc.ID, SignerID: "alice", Position: signing.Position{Page: 1},
	}, nil))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/v1/requests", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExpiredRequestReturnsGone(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	cert := bob.generateCert("pw")
	doc := alice.uploadDoc("%PDF")

	expires := srv.clock.Now().Add(time.Hour)
	var req signing.Request
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/requests", api.CreateRequestRequest{
		DocumentID: doc.ID, SignerID: "bob", Position: signing.Position{Page: 1}, ExpiresAt: &expires,
	}, &req))

	srv.clock.Advance(2 * time.Hour)

	var errBody api.ErrorResponse
	code := bob.do(http.MethodPost, "/requests/"+req.ID+"/sign", api.SignRequestBody{CertificateID: cert.ID, Password: "pw"}, &errBody)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "request expired", errBody.Error)

	var got signing.Request
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/requests/"+req.ID, nil, &got))
	assert.Equal(t, signing.StateExpired, got.State)
	assert.Equal(t, http.StatusGone, bob.do(http.MethodPost, "/requests/"+req.ID+"/reject", api.ReasonBody{Reason: "late"}, nil))
}

func TestRejectRequest(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	doc := alice.uploadDoc("%PDF")

	var req signing.Request
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/requests", api.CreateRequestRequest{
		DocumentID: doc.ID, SignerID: "bob", Position: signing.Position{Page: 1},
	}, &req))

	var rejected signing.Request
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/requests/"+req.ID+"/reject", api.ReasonBody{Reason: "wrong amount"}, &rejected))
	assert.Equal(t, signing.StateRejected, rejected.State)
	assert.Equal(t, "wrong amount", rejected.RejectReason)
}

func TestMultiPartyFlow(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	carol := srv.login(t, "carol", "Carol")
	dave := srv.login(t, "dave", "Dave")
	bobCert := bob.generateCert("bob-pass")
	carolCert := carol.generateCert("carol-pass")
	doc := alice.uploadDoc("%PDF")

	var created api.MultiPartyResponse
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/multiparty", api.CreateMultiPartyRequest{
		DocumentID: doc.ID,
		Title:      "Board minutes",
		Signers:    []api.SignerBody{{ID: "bob"}, {ID: "carol", Position: &signing.Position{Page: 2, X: 5}}},
		Position:   signing.Position{Page: 1, X: 10, Y: 10, Size: 40},
	}, &created))
	m := created.MultiParty
	require.Len(t, created.Requests, 2)
	assert.Equal(t, signing.AggregatePending, m.State)
	assert.Equal(t, 2, m.TotalSigners)
	assert.Equal(t, 2, created.Requests[1].Position.Page)

	assert.Equal(t, http.StatusForbidden, dave.do(http.MethodGet, "/multiparty/"+m.ID, nil, nil))

	var afterBob api.SignMultiPartyResponse
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/multiparty/"+m.ID+"/sign",
		api.SignRequestBody{CertificateID: bobCert.ID, Password: "bob-pass"}, &afterBob))
	assert.Equal(t, signing.AggregatePartiallySigned, afterBob.MultiParty.State)
	assert.InDelta(t, 50.0, afterBob.MultiParty.CompletionPercent, 0.001)

	assert.Equal(t, http.StatusForbidden, dave.do(http.MethodPost, "/multiparty/"+m.ID+"/sign",
		api.SignRequestBody{CertificateID: carolCert.ID, Password: "carol-pass"}, nil))

	var afterCarol api.SignMultiPartyResponse
	require.Equal(t, http.StatusOK, carol.do(http.MethodPost, "/multiparty/"+m.ID+"/sign",
		api.SignRequestBody{CertificateID: carolCert.ID, Password: "carol-pass"}, &afterCarol))
	assert.Equal(t, signing.AggregateCompleted, afterCarol.MultiParty.State)
	assert.InDelta(t, 100.0, afterCarol.MultiParty.CompletionPercent, 0.001)

	var children api.ListRequestsResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/multiparty/"+m.ID+"/requests", nil, &children))
	require.Len(t, children.Requests, 2)
	for _, c := range children.Requests {
		assert.Equal(t, signing.StateSigned, c.State)
	}

	var list api.ListMultiPartyResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/multiparty", nil, &list))
	require.Len(t, list.MultiParty, 1)

	_, body := alice.content(doc.ID)
	assert.Equal(t, "%PDF|sig|sig", body)

	assert.Equal(t, http.StatusConflict, alice.do(http.MethodPost, "/multiparty/"+m.ID+"/cancel", nil, nil))
}

func TestMultiPartyValidationAndCancel(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	doc := alice.uploadDoc("%PDF")

	six := make([]api.SignerBody, 6)
	for i := range six {
		six[i] = api.SignerBody{ID: "s" + string(rune('a'+i)), Name: "S"}
	}
	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodPost, "/multiparty", api.CreateMultiPartyRequest{
		DocumentID: doc.ID, Title: "t", Signers: six, Position: signing.Position{Page: 1},
	}, nil))
	assert.Equal(t, http.StatusBadRequest, alice.do(http.MethodPost, "/multiparty", api.CreateMultiPartyRequest{
		DocumentID: doc.ID, Title: "t", Signers: []api.SignerBody{{ID: "bob"}, {ID: "bob"}}, Position: signing.Position{Page: 1},
	}, nil))

	var created api.MultiPartyResponse
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/multiparty", api.CreateMultiPartyRequest{
		DocumentID: doc.ID, Title: "t", Signers: []api.SignerBody{{ID: "bob"}}, Position: signing.Position{Page: 1},
	}, &created))

	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodPost, "/multiparty/"+created.MultiParty.ID+"/cancel", nil, nil))

	var cancelled api.MultiPartyResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodPost, "/multiparty/"+created.MultiParty.ID+"/cancel",
		api.ReasonBody{Reason: "superseded"}, &cancelled))
	assert.Equal(t, signing.AggregateCancelled, cancelled.MultiParty.State)

	var child signing.Request
	require.Equal(t, http.StatusOK, bob.do(http.MethodGet, "/requests/"+created.Requests[0].ID, nil, &child))
	assert.Equal(t, signing.StateCancelled, child.State)
}

func TestPasswordLockout(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	cert := bob.generateCert("right")
	doc := alice.uploadDoc("%PDF")

	var req signing.Request
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/requests", api.CreateRequestRequest{
		DocumentID: doc.ID, SignerID: "bob", Position: signing.Position{Page: 1},
	}, &req))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnprocessableEntity, bob.do(http.MethodPost, "/requests/"+req.ID+"/sign",
			api.SignRequestBody{CertificateID: cert.ID, Password: "wrong"}, nil))
	}
	// Locked out even with the right password.
	assert.Equal(t, http.StatusTooManyRequests, bob.do(http.MethodPost, "/requests/"+req.ID+"/sign",
		api.SignRequestBody{CertificateID: cert.ID, Password: "right"}, nil))
	assert.Equal(t, http.StatusTooManyRequests, bob.do(http.MethodPost, "/certificates/"+cert.ID+"/validate",
		api.PasswordRequest{Password: "right"}, nil))
}

func TestDeleteDocumentPurgesRequests(t *testing.T) {
	srv := setupServer(t)
	alice := srv.login(t, "alice", "Alice")
	bob := srv.login(t, "bob", "Bob")
	doc := alice.uploadDoc("%PDF")

	var req signing.Request
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/requests", api.CreateRequestRequest{
		DocumentID: doc.ID, SignerID: "bob", Position: signing.Position{Page: 1},
	}, &req))

	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodDelete, "/documents/"+doc.ID, nil, nil))
	assert.Equal(t, http.StatusNoContent, alice.do(http.MethodDelete, "/documents/"+doc.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/requests/"+req.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, alice.do(http.MethodGet, "/documents/"+doc.ID, nil, nil))

	var list api.ListDocumentsResponse
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/documents", nil, &list))
	assert.Empty(t, list.Documents)
}

func TestOpenAPIServed(t *testing.T) {
	srv := setupServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "openapi: 3.0.3")
}
