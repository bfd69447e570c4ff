package elgamal

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/vocdoni/silentvote/crypto/ecc"
)

// sizes in bytes needed to serialize a Ciphertext
const (
	sizePoint      = 32
	SizeCiphertext = 2 * sizePoint
)

// Ciphertext represents an ElGamal encrypted message with homomorphic properties.
// It is a wrapper for convenience of the elGamal ciphersystem that encapsulates the two points of a ciphertext.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext creates a new Ciphertext on the same curve as the given
// Point, set to the identity (an encryption of zero with k = 0).
func NewCiphertext(curve ecc.Point) *Ciphertext {
	return &Ciphertext{C1: curve.New(), C2: curve.New()}
}

// Encrypt encrypts a message using the public key provided as elliptic curve point.
// The randomness k can be provided or nil to generate a new one.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	var err error
	if k == nil {
		k, err = RandK(publicKey)
		if err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	c1, c2, err := EncryptWithK(publicKey, message, k)
	if err != nil {
		return nil, fmt.Errorf("elgamal encryption failed: %w", err)
	}
	z.C1 = c1
	z.C2 = c2
	return z, nil
}

// Trivial sets z to the public encryption of message, with C1 = O and
// C2 = message*G. It is used for constants such as the initial counters.
func (z *Ciphertext) Trivial(message uint64) *Ciphertext {
	z.C1.SetZero()
	z.C2.ScalarBaseMult(new(big.Int).SetUint64(message))
	return z
}

// Add adds two Ciphertext and stores the result in z, which is also returned.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.SafeAdd(x.C1, y.C1)
	z.C2.SafeAdd(x.C2, y.C2)
	return z
}

// AddPlain adds a known message to x (C2 + message*G) and stores the result
// in z, which is also returned.
func (z *Ciphertext) AddPlain(x *Ciphertext, message *big.Int) *Ciphertext {
	m := x.C2.New()
	m.ScalarBaseMult(new(big.Int).Mod(message, x.C2.Order()))
	z.C1.Set(x.C1)
	z.C2.SafeAdd(x.C2, m)
	return z
}

// ScalarMult multiplies the message encrypted in x by s and stores the
// result in z, which is also returned. Negative scalars are taken modulo the
// group order.
func (z *Ciphertext) ScalarMult(x *Ciphertext, s *big.Int) *Ciphertext {
	k := new(big.Int).Mod(s, x.C1.Order())
	z.C1.ScalarMult(x.C1, k)
	z.C2.ScalarMult(x.C2, k)
	return z
}

// Equal reports whether z and x hold the same points.
func (z *Ciphertext) Equal(x *Ciphertext) bool {
	return z.C1.Equal(x.C1) && z.C2.Equal(x.C2)
}

// Serialize returns a slice of len 2*32 bytes with the compressed C1 and C2
// points.
func (z *Ciphertext) Serialize() []byte {
	buf := make([]byte, 0, SizeCiphertext)
	buf = append(buf, z.C1.Marshal()...)
	buf = append(buf, z.C2.Marshal()...)
	return buf
}

// Deserialize reconstructs a Ciphertext from a slice of bytes. The input must
// be of len 2*32 bytes (otherwise it returns an error) and both points must
// be valid curve points.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	if err := z.C1.Unmarshal(data[:sizePoint]); err != nil {
		return fmt.Errorf("invalid C1: %w", err)
	}
	if err := z.C2.Unmarshal(data[sizePoint:]); err != nil {
		return fmt.Errorf("invalid C2: %w", err)
	}
	return nil
}

// Marshal converts Ciphertext to a byte slice.
func (z *Ciphertext) Marshal() ([]byte, error) {
	return json.Marshal(z)
}

// Unmarshal populates Ciphertext from a byte slice.
func (z *Ciphertext) Unmarshal(data []byte) error {
	return json.Unmarshal(data, z)
}

// String returns a string representation of the Ciphertext.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
