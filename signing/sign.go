package signing

import (
	"context"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/signhand/certvault"
	"github.com/jmcleod/signhand/storage"
)

// SignInput identifies the request, the acting signer and the certificate
// to sign with.
type SignInput struct {
	RequestID     string
	SignerID      string
	CertificateID string
	Password      string
}

// Sign signs the document of a pending request. On any failure before the
// commit the request stays pending and the document is unchanged.
func (e *Engine) Sign(ctx context.Context, in SignInput) (*Request, error) {
	req, err := e.store.getRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.SignerID != in.SignerID {
		return nil, ErrNotAuthorized
	}
	if req.Terminal() {
		return nil, req.terminalError()
	}
	if req.Due(e.clock()) {
		e.expireOverdue(ctx, req)
		return nil, ErrRequestExpired
	}

	release := e.locks.Lock(req.DocumentID)
	defer release()

	// Re-read under the document lock; a concurrent call may have moved it.
	req, err = e.store.getRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Terminal() {
		return nil, req.terminalError()
	}
	var parent *MultiPartyRequest
	if req.ParentID != "" {
		parent, err = e.store.getMultiParty(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Due(e.clock()) {
			e.expireMultiParty(ctx, parent.ID)
			return nil, ErrRequestExpired
		}
		if !parent.Open() {
			return nil, parent.closedError()
		}
	}

	signed, err := e.signDocument(ctx, req, in)
	if err != nil {
		return nil, err
	}

	// The signed bytes are stored. From here the request must end up signed
	// or the bytes restored, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	completed := false
	err = e.commit(ctx, func(t *txn) error {
		child, err := t.request(req.ID)
		if err != nil {
			return err
		}
		if err := child.Sign(e.clock(), in.CertificateID); err != nil {
			return err
		}
		if err := t.putRequest(child); err != nil {
			return err
		}
		req = child
		completed = false
		if child.ParentID == "" {
			return nil
		}
		m, err := t.multiParty(child.ParentID)
		if err != nil {
			return err
		}
		if err := m.RecordSigned(*child.SignedAt, child.SignerID); err != nil {
			return err
		}
		if err := t.putMultiParty(m); err != nil {
			return err
		}
		parent = m
		completed = m.State == AggregateCompleted
		return nil
	})
	if err != nil {
		if rerr := e.docs.PutBytes(ctx, req.DocumentID, signed.original, signed.sum); rerr != nil {
			e.logger.Error("restoring document after failed commit",
				"document_id", req.DocumentID,
				"request_id", req.ID,
				"error", rerr,
			)
		}
		return nil, fmt.Errorf("committing signature: %w", err)
	}

	e.logger.Info("request signed",
		"request_id", req.ID,
		"document_id", req.DocumentID,
		"signer_id", req.SignerID,
		"certificate_id", req.CertificateID,
		"system_certificate", signed.usedSystem,
	)
	e.afterSigned(ctx, req, parent, completed)
	return req, nil
}

// SignMultiPartyInput signs the caller's child request of an aggregate.
type SignMultiPartyInput struct {
	MultiPartyID  string
	SignerID      string
	CertificateID string
	Password      string
}

// SignMultiParty resolves the signer's child request and signs it.
func (e *Engine) SignMultiParty(ctx context.Context, in SignMultiPartyInput) (*Request, *MultiPartyRequest, error) {
	m, err := e.store.getMultiParty(ctx, in.MultiPartyID)
	if err != nil {
		return nil, nil, err
	}
	s, ok := m.SignerByID(in.SignerID)
	if !ok {
		return nil, nil, ErrNotAuthorized
	}
	req, err := e.Sign(ctx, SignInput{
		RequestID:     s.RequestID,
		SignerID:      in.SignerID,
		CertificateID: in.CertificateID,
		Password:      in.Password,
	})
	if err != nil {
		return nil, nil, err
	}
	m, err = e.store.getMultiParty(ctx, in.MultiPartyID)
	if err != nil {
		return nil, nil, err
	}
	return req, m, nil
}

type signResult struct {
	original   []byte
	sum        string // checksum of the stored signed bytes
	usedSystem bool
}

// signDocument decrypts the certificate, runs the external signer and writes
// the new document bytes, provided nobody replaced the bytes the signer was
// given. The previous bytes are returned for rollback.
func (e *Engine) signDocument(ctx context.Context, req *Request, in SignInput) (*signResult, error) {
	cert, err := e.resolveCertificate(ctx, req.SignerID, in.CertificateID, in.Password)
	if err != nil {
		return nil, err
	}
	defer cert.container.Destroy()

	original, err := e.docs.GetBytes(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading document: %v", ErrSigningFailed, err)
	}

	sctx, cancel := context.WithTimeout(ctx, e.signTimeout)
	defer cancel()
	out, err := e.signer.Sign(sctx, SignerInput{
		Certificate:       cert.container.Bytes(),
		Password:          cert.password,
		Document:          original,
		Page:              req.Position.Page,
		X:                 req.Position.X,
		Y:                 req.Position.Y,
		QRSize:            req.Position.Size,
		IssuerCertificate: cert.issuer,
	})
	if err != nil {
		e.logger.Warn("external signer failed", "request_id", req.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: external signer returned an empty document", ErrSigningFailed)
	}
	if err := e.docs.PutBytes(ctx, req.DocumentID, out, DocumentChecksum(original)); err != nil {
		if errors.Is(err, storage.ErrCASFailed) {
			e.logger.Warn("document changed during signing", "request_id", req.ID, "document_id", req.DocumentID)
			return nil, fmt.Errorf("%w: %w", ErrSigningFailed, ErrDocumentChanged)
		}
		return nil, fmt.Errorf("%w: storing signed document: %v", ErrSigningFailed, err)
	}
	return &signResult{original: original, sum: DocumentChecksum(out), usedSystem: cert.system}, nil
}

type openedCertificate struct {
	container *memguard.LockedBuffer
	password  string
	issuer    []byte
	system    bool
}

// resolveCertificate loads and decrypts the signer's certificate. A wrong
// password is returned as-is; an unreadable record falls back to the system
// certificate when one is configured.
func (e *Engine) resolveCertificate(ctx context.Context, signerID, certificateID, password string) (*openedCertificate, error) {
	rec, err := e.vault.Get(ctx, signerID, certificateID)
	if err != nil {
		if errors.Is(err, certvault.ErrNotOwner) {
			return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
		}
		return nil, err
	}

	plain, err := e.vault.Decrypt(rec, password)
	switch {
	case err == nil:
		return e.openContainer(plain, password, false), nil
	case errors.Is(err, certvault.ErrInvalidPassword):
		return nil, err
	case errors.Is(err, certvault.ErrCorruptRecord), errors.Is(err, certvault.ErrMalformedInput):
		e.logger.Warn("certificate record unreadable",
			"certificate_id", certificateID,
			"signer_id", signerID,
			"error", err,
		)
		if e.system == nil {
			return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		return e.openContainer(append([]byte(nil), e.system.Container...), e.system.Password, true), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
}

func (e *Engine) openContainer(plain []byte, password string, system bool) *openedCertificate {
	issuer, err := certvault.IssuerCertificate(plain, password)
	if err != nil {
		e.logger.Debug("issuer certificate unavailable", "error", err)
	}
	return &openedCertificate{
		container: memguard.NewBufferFromBytes(plain),
		password:  password,
		issuer:    issuer,
		system:    system,
	}
}

// afterSigned records the document annotation and sends notifications. None
// of it can undo the committed signature.
func (e *Engine) afterSigned(ctx context.Context, req *Request, parent *MultiPartyRequest, completed bool) {
	if err := e.docs.AddSigner(ctx, req.DocumentID, SignerAnnotation{
		SignerID:      req.SignerID,
		Name:          req.SignerName,
		Email:         req.SignerEmail,
		SignedAt:      *req.SignedAt,
		Position:      req.Position,
		RequestID:     req.ID,
		CertificateID: req.CertificateID,
	}); err != nil {
		e.logger.Warn("adding signer annotation", "document_id", req.DocumentID, "error", err)
	}

	docName := e.documentName(ctx, req.DocumentID)
	signerName := req.SignerName
	if signerName == "" {
		signerName = e.displayName(ctx, req.SignerID)
	}
	ev := Event{
		Kind:         EventSignatureCompleted,
		DocumentID:   req.DocumentID,
		DocumentName: docName,
		ActorID:      req.SignerID,
		ActorName:    signerName,
		RequestID:    req.ID,
		MultiPartyID: req.ParentID,
		At:           *req.SignedAt,
	}
	if parent != nil {
		ev.Detail = fmt.Sprintf("%d/%d", parent.SignedCount, parent.TotalSigners)
	}
	e.notify(ctx, req.RequesterID, ev)

	if completed {
		e.notify(ctx, parent.RequesterID, Event{
			Kind:         EventMultiPartyCompleted,
			DocumentID:   parent.DocumentID,
			DocumentName: docName,
			ActorID:      req.SignerID,
			ActorName:    signerName,
			MultiPartyID: parent.ID,
			At:           *parent.CompletedAt,
			Detail:       parent.Title,
		})
	}
}
