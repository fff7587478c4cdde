package certvault

import (
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// checkContainerHeader verifies that plain starts with a DER SEQUENCE whose
// encoded length matches the buffer. A PKCS#12 file is a single PFX
// SEQUENCE, so anything else is a damaged record. BER indefinite lengths
// are accepted as-is.
func checkContainerHeader(plain []byte) error {
	if len(plain) < 2 {
		return fmt.Errorf("%w: plaintext too short", ErrCorruptRecord)
	}
	if plain[0] != 0x30 {
		return fmt.Errorf("%w: plaintext is not a DER sequence", ErrCorruptRecord)
	}
	l := int(plain[1])
	header := 2
	switch {
	case l == 0x80:
		return nil
	case l > 0x80:
		n := l & 0x7f
		if n > 4 || len(plain) < 2+n {
			return fmt.Errorf("%w: invalid DER length", ErrCorruptRecord)
		}
		l = 0
		for _, b := range plain[2 : 2+n] {
			l = l<<8 | int(b)
		}
		header += n
	}
	if header+l != len(plain) {
		return fmt.Errorf("%w: DER length %d does not match %d bytes", ErrCorruptRecord, header+l, len(plain))
	}
	return nil
}

// IssuerCertificate returns the DER bytes of the first CA certificate bundled
// in a container, or nil when the container has no chain.
func IssuerCertificate(container []byte, password string) ([]byte, error) {
	_, _, chain, err := pkcs12.DecodeChain(container, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain[0].Raw, nil
}

// Inspect opens a container with its password and returns the metadata of
// its leaf certificate. Nothing is stored.
func Inspect(container []byte, password, displayName string) (Metadata, error) {
	if len(container) == 0 {
		return Metadata{}, fmt.Errorf("%w: empty container", ErrMalformedInput)
	}
	_, leaf, _, err := pkcs12.DecodeChain(container, password)
	if err != nil {
		return Metadata{}, ErrInvalidPassword
	}
	return ExtractMetadata(leaf, displayName), nil
}
