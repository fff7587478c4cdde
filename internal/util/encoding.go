package util

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// FoldKey normalizes s for identity comparisons (emails, user IDs).
func FoldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(Normalize(s)))
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// HexDecodeFixed decodes s and requires exactly n bytes. Only lowercase hex is
// accepted so stored values have a single canonical form.
func HexDecodeFixed(s string, n int) ([]byte, error) {
	if len(s) != 2*n {
		return nil, fmt.Errorf("hex value has length %d, want %d", len(s), 2*n)
	}
	if s != strings.ToLower(s) {
		return nil, fmt.Errorf("hex value must be lowercase")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	return b, nil
}
