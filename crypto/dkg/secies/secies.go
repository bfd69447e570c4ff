// Package secies seals scalars to a public key with an ECIES construction
// over the same curve as the committee key. It is used to deliver the
// secret shares of the key generation, so a share is only readable by the
// participant it was computed for.
package secies

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/hash/poseidon"
)

// Key is the transport key pair of a participant.
type Key struct {
	curve   ecc.Point
	private *big.Int
	public  ecc.Point
}

// Sealed is a scalar sealed to a public key: C = m + H(r*PK) and R = r*G.
type Sealed struct {
	C *big.Int
	R []byte
}

// GenerateKey returns a new random key pair on curve.
func GenerateKey(curve ecc.Point) (*Key, error) {
	if curve == nil {
		return nil, fmt.Errorf("curve cannot be nil")
	}
	priv, err := randomScalar(curve.Order())
	if err != nil {
		return nil, err
	}
	return NewKey(priv, curve)
}

// NewKey returns the key pair of the given private scalar.
func NewKey(private *big.Int, curve ecc.Point) (*Key, error) {
	if curve == nil {
		return nil, fmt.Errorf("curve cannot be nil")
	}
	if private == nil || private.Sign() <= 0 || private.Cmp(curve.Order()) >= 0 {
		return nil, fmt.Errorf("private key out of range")
	}
	pub := curve.New()
	pub.ScalarBaseMult(private)
	return &Key{curve: curve, private: new(big.Int).Set(private), public: pub}, nil
}

// PublicKey returns the public point of the key.
func (k *Key) PublicKey() ecc.Point {
	return k.public
}

// Seal seals message to recipient. The message is reduced modulo the curve
// order.
func Seal(message *big.Int, recipient ecc.Point) (*Sealed, error) {
	if recipient == nil || recipient.IsZero() {
		return nil, fmt.Errorf("invalid recipient key")
	}
	order := recipient.Order()
	r, err := randomScalar(order)
	if err != nil {
		return nil, err
	}
	R := recipient.New()
	R.ScalarBaseMult(r)
	shared := recipient.New()
	shared.ScalarMult(recipient, r)
	s, err := hashToScalar(shared)
	if err != nil {
		return nil, err
	}
	c := new(big.Int).Mod(message, order)
	c.Add(c, s).Mod(c, order)
	return &Sealed{C: c, R: R.Marshal()}, nil
}

// Open recovers the scalar sealed to k.
func (k *Key) Open(sealed *Sealed) (*big.Int, error) {
	if sealed == nil || sealed.C == nil {
		return nil, fmt.Errorf("nil sealed message")
	}
	R := k.curve.New()
	if err := R.Unmarshal(sealed.R); err != nil {
		return nil, fmt.Errorf("invalid ephemeral key: %w", err)
	}
	shared := k.curve.New()
	shared.ScalarMult(R, k.private)
	s, err := hashToScalar(shared)
	if err != nil {
		return nil, err
	}
	order := k.curve.Order()
	m := new(big.Int).Sub(sealed.C, s)
	return m.Mod(m, order), nil
}

// hashToScalar derives the pad from the shared point coordinates.
func hashToScalar(p ecc.Point) (*big.Int, error) {
	x, y := p.Point()
	h, err := poseidon.MultiPoseidon(x, y)
	if err != nil {
		return nil, fmt.Errorf("cannot hash shared secret: %w", err)
	}
	return h.Mod(h, p.Order()), nil
}

// randomScalar returns a uniform scalar in [1, order-1].
func randomScalar(order *big.Int) (*big.Int, error) {
	n := new(big.Int).Sub(order, big.NewInt(1))
	r, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, err
	}
	return r.Add(r, big.NewInt(1)), nil
}
