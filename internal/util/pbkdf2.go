package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// MinPBKDF2Iterations is the lowest iteration count accepted by
// DerivePBKDF2Key.
const MinPBKDF2Iterations = 100_000

type PBKDF2Params struct {
	Iterations int `json:"iterations"`
	KeyLen     int `json:"key_len"`
}

func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 210_000,
		KeyLen:     AESKeySize,
	}
}

// DerivePBKDF2Key derives a key from password and salt with PBKDF2-HMAC-SHA256.
// Identical inputs always produce an identical key.
func DerivePBKDF2Key(password string, salt []byte, params PBKDF2Params) ([]byte, error) {
	if params.Iterations < MinPBKDF2Iterations {
		return nil, fmt.Errorf("pbkdf2 iterations %d below minimum of %d", params.Iterations, MinPBKDF2Iterations)
	}
	if params.KeyLen != AESKeySize {
		return nil, fmt.Errorf("pbkdf2 key length must be %d bytes", AESKeySize)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("pbkdf2 salt must not be empty")
	}
	return pbkdf2.Key([]byte(password), salt, params.Iterations, params.KeyLen, sha256.New), nil
}
