package util

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
)

const (
	AESKeySize   = 32
	AESBlockSize = aes.BlockSize
)

var (
	// ErrBadPadding is returned when PKCS#7 padding does not verify after
	// decryption. With CBC this almost always means the key is wrong.
	ErrBadPadding = errors.New("invalid PKCS#7 padding")
	// ErrBlockAlignment is returned when the ciphertext is empty or not a
	// multiple of the block size.
	ErrBlockAlignment = errors.New("ciphertext is not block aligned")
)

// EncryptAESCBC encrypts plainText with AES-256-CBC and PKCS#7 padding.
func EncryptAESCBC(plainText, rawKey, iv []byte) ([]byte, error) {
	block, err := newCBCBlock(rawKey, iv)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plainText, AESBlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	WipeBytes(padded)
	return out, nil
}

// DecryptAESCBC reverses EncryptAESCBC. It returns ErrBlockAlignment for
// structurally invalid input and ErrBadPadding when the padding check fails.
func DecryptAESCBC(cipherText, rawKey, iv []byte) ([]byte, error) {
	block, err := newCBCBlock(rawKey, iv)
	if err != nil {
		return nil, err
	}
	if len(cipherText) == 0 || len(cipherText)%AESBlockSize != 0 {
		return nil, ErrBlockAlignment
	}
	out := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, cipherText)
	plain, err := pkcs7Unpad(out, AESBlockSize)
	if err != nil {
		WipeBytes(out)
		return nil, err
	}
	return plain, nil
}

func newCBCBlock(rawKey, iv []byte) (cipher.Block, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}
	if len(iv) != AESBlockSize {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), AESBlockSize)
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return block, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	want := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(b[len(b)-n:], want) != 1 {
		return nil, ErrBadPadding
	}
	return b[:len(b)-n], nil
}
