package certvault

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jmcleod/signhand/internal/util"
)

// DefaultOrganization is used when a certificate subject carries no
// organization.
const DefaultOrganization = "Sin organización"

var oidEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}

// ExtractMetadata reads subject and validity information from a leaf
// certificate. displayName replaces a missing common name.
func ExtractMetadata(cert *x509.Certificate, displayName string) Metadata {
	fingerprint := sha256.Sum256(cert.Raw)

	m := Metadata{
		CommonName:        util.Normalize(strings.TrimSpace(cert.Subject.CommonName)),
		Email:             subjectEmail(cert),
		SerialNumber:      hex.EncodeToString(cert.SerialNumber.Bytes()),
		Issuer:            subjectString(cert.Issuer),
		NotBefore:         cert.NotBefore.UTC(),
		NotAfter:          cert.NotAfter.UTC(),
		FingerprintSHA256: hex.EncodeToString(fingerprint[:]),
		KeyAlgorithm:      keyAlgorithmString(cert),
	}
	if len(cert.Subject.Organization) > 0 {
		m.Organization = util.Normalize(strings.TrimSpace(cert.Subject.Organization[0]))
	}
	if m.CommonName == "" {
		m.CommonName = strings.TrimSpace(displayName)
	}
	if m.Organization == "" {
		m.Organization = DefaultOrganization
	}
	return m
}

func subjectEmail(cert *x509.Certificate) string {
	if len(cert.EmailAddresses) > 0 {
		return cert.EmailAddresses[0]
	}
	for _, atv := range cert.Subject.Names {
		if atv.Type.Equal(oidEmailAddress) {
			if s, ok := atv.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// subjectString formats a pkix.Name as a readable DN string.
func subjectString(name pkix.Name) string {
	var parts []string
	if name.CommonName != "" {
		parts = append(parts, "CN="+name.CommonName)
	}
	for _, ou := range name.OrganizationalUnit {
		parts = append(parts, "OU="+ou)
	}
	for _, o := range name.Organization {
		parts = append(parts, "O="+o)
	}
	for _, c := range name.Country {
		parts = append(parts, "C="+c)
	}
	return strings.Join(parts, ", ")
}

func keyAlgorithmString(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		return fmt.Sprintf("ECDSA %s", pub.Curve.Params().Name)
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d", pub.N.BitLen())
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return cert.PublicKeyAlgorithm.String()
	}
}
