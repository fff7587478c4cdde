package certvault

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// DefaultValidityDays is the lifetime of generated certificates when the
// request does not set one.
const DefaultValidityDays = 730

// GenerateRequest describes a self-signed signing certificate to create.
type GenerateRequest struct {
	OwnerID      string
	CommonName   string
	Organization string
	Email        string
	Password     string
	Label        string
	ValidityDays int
}

// Generate creates an ECDSA P-256 signing certificate, packs it into a
// PKCS#12 container protected by the request password and stores it.
func (v *Vault) Generate(ctx context.Context, req GenerateRequest) (*Record, error) {
	container, err := v.BuildContainer(req)
	if err != nil {
		return nil, err
	}
	return v.Store(ctx, StoreRequest{
		Container:   container,
		Password:    req.Password,
		OwnerID:     req.OwnerID,
		DisplayName: req.CommonName,
		Label:       req.Label,
	})
}

// BuildContainer creates the self-signed certificate and returns the PKCS#12
// container without storing it.
func (v *Vault) BuildContainer(req GenerateRequest) ([]byte, error) {
	if strings.TrimSpace(req.CommonName) == "" {
		return nil, fmt.Errorf("%w: common name is required", ErrMalformedInput)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrMalformedInput)
	}
	days := req.ValidityDays
	if days <= 0 {
		days = DefaultValidityDays
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}

	subject := pkix.Name{CommonName: strings.TrimSpace(req.CommonName)}
	if o := strings.TrimSpace(req.Organization); o != "" {
		subject.Organization = []string{o}
	}
	now := v.now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(0, 0, days),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
		BasicConstraintsValid: true,
	}
	if e := strings.TrimSpace(req.Email); e != "" {
		template.EmailAddresses = []string{e}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	container, err := pkcs12.Modern.Encode(key, cert, nil, req.Password)
	if err != nil {
		return nil, fmt.Errorf("encoding container: %w", err)
	}
	return container, nil
}
