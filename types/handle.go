package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HandleLength is the size in bytes of a ciphertext handle.
const HandleLength = 32

// HandleVersion is written in the last byte of every handle.
const HandleVersion = 0

// ValueType identifies the plaintext type behind a handle. It is encoded in
// byte 30 of the handle.
type ValueType uint8

const (
	ValueTypeBool   ValueType = 0
	ValueTypeUint64 ValueType = 5
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeBool:
		return "ebool"
	case ValueTypeUint64:
		return "euint64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Handle is an opaque reference to a ciphertext held by the encryption
// coprocessor. The zero handle references nothing.
type Handle [HandleLength]byte

// NewHandle builds a handle from a 32 byte digest, overwriting the type and
// version bytes.
func NewHandle(digest []byte, t ValueType) Handle {
	var h Handle
	copy(h[:], digest)
	h[30] = byte(t)
	h[31] = HandleVersion
	return h
}

// HandleFromBytes returns the handle contained in b.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleLength {
		return h, fmt.Errorf("invalid handle length: got %d bytes, expected %d", len(b), HandleLength)
	}
	copy(h[:], b)
	return h, nil
}

// HandleFromHex decodes a hex string, with or without the 0x prefix.
func HandleFromHex(s string) (Handle, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return Handle{}, fmt.Errorf("invalid handle: %w", err)
	}
	return HandleFromBytes(b)
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// Type returns the value type encoded in the handle.
func (h Handle) Type() ValueType {
	return ValueType(h[30])
}

// Bytes returns a copy of the handle bytes.
func (h Handle) Bytes() []byte {
	b := make([]byte, HandleLength)
	copy(b, h[:])
	return b
}

// String returns the 0x prefixed hexadecimal representation of the handle.
func (h Handle) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(data []byte) error {
	dec, err := HandleFromHex(string(data))
	if err != nil {
		return err
	}
	*h = dec
	return nil
}
