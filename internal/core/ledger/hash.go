package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash256 is a ledger, transaction or entry hash.
type Hash256 [32]byte

// ParseHash256 decodes a 64-character hex string.
func ParseHash256(s string) (Hash256, error) {
	var h Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash %q: want 32 bytes, got %d", s, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// MustParseHash256 is ParseHash256 for constants; it panics on bad input.
func MustParseHash256(s string) Hash256 {
	h, err := ParseHash256(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the uppercase hex form rippled uses.
func (h Hash256) String() string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// IsZero reports whether the hash is unset.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

func (h Hash256) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash256) UnmarshalText(text []byte) error {
	parsed, err := ParseHash256(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
