package certvault

import (
	"fmt"
	"time"

	"github.com/jmcleod/signhand/internal/util"
)

// Metadata is the subject information extracted from a container once, at
// upload time.
type Metadata struct {
	CommonName        string    `json:"common_name"`
	Organization      string    `json:"organization"`
	Email             string    `json:"email,omitempty"`
	SerialNumber      string    `json:"serial_number"`
	Issuer            string    `json:"issuer,omitempty"`
	NotBefore         time.Time `json:"not_before,omitzero"`
	NotAfter          time.Time `json:"not_after,omitzero"`
	FingerprintSHA256 string    `json:"fingerprint_sha256,omitempty"`
	KeyAlgorithm      string    `json:"key_algorithm,omitempty"`
}

// Record is a stored certificate container. A record without Salt and IV is
// a system certificate whose Ciphertext holds the container in the clear.
type Record struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Label      string    `json:"label,omitempty"`
	Ciphertext []byte    `json:"ciphertext"`
	Salt       string    `json:"salt,omitempty"`
	IV         string    `json:"iv,omitempty"`
	KeyCheck   string    `json:"key_check,omitempty"`
	KDF        KDFParams `json:"kdf,omitzero"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`

	// Version is the storage CAS version; it is not part of the document.
	Version uint64 `json:"-"`
}

// IsSystem reports whether the record is stored without user encryption.
func (r *Record) IsSystem() bool {
	return r.Salt == "" && r.IV == ""
}

// Validate checks the structural invariants of the record.
func (r *Record) Validate() error {
	if len(r.Ciphertext) == 0 {
		return fmt.Errorf("%w: empty ciphertext", ErrCorruptRecord)
	}
	if r.IsSystem() {
		return nil
	}
	_, _, err := r.params()
	return err
}

func (r *Record) params() (salt, iv []byte, err error) {
	if r.Salt == "" || r.IV == "" {
		return nil, nil, fmt.Errorf("%w: salt and iv must both be present", ErrMalformedInput)
	}
	salt, err = util.HexDecodeFixed(r.Salt, SaltSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedInput, err)
	}
	iv, err = util.HexDecodeFixed(r.IV, IVSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: iv: %v", ErrMalformedInput, err)
	}
	return salt, iv, nil
}

func (r *Record) kdfParams() KDFParams {
	if r.KDF == (KDFParams{}) {
		return DefaultKDFParams()
	}
	return r.KDF
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Ciphertext = util.CopyBytes(r.Ciphertext)
	return &cp
}
