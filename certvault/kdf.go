package certvault

import (
	"github.com/jmcleod/signhand/internal/util"
)

const (
	// SaltSize and IVSize are the raw byte lengths of the per-record random
	// values; both are stored as 32 lowercase hex characters.
	SaltSize = 16
	IVSize   = util.AESBlockSize

	keyCheckInfo = "signhand certificate key check v1"
)

// KDFParams configures PBKDF2 key derivation.
type KDFParams = util.PBKDF2Params

// DefaultKDFParams returns the iteration count and key length used for new
// records.
func DefaultKDFParams() KDFParams {
	return util.DefaultPBKDF2Params()
}

// DeriveKey turns a password and salt into an AES-256 key using
// PBKDF2-HMAC-SHA256 with the default parameters.
func DeriveKey(password string, salt []byte) ([]byte, error) {
	return util.DerivePBKDF2Key(password, salt, DefaultKDFParams())
}

// keyCheck derives a verifier from an encryption key. Storing it lets a wrong
// password be told apart from a damaged ciphertext without decrypting.
func keyCheck(key, salt []byte) ([]byte, error) {
	return util.HKDF(key, salt, []byte(keyCheckInfo))
}
