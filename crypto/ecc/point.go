// Package ecc defines the group element interface used by the ElGamal
// encryption, the threshold key generation and the ballot proofs.
package ecc

import (
	"math/big"

	"github.com/vocdoni/silentvote/types"
)

// Point is an element of a prime order elliptic curve group.
type Point interface {
	New() Point
	Order() *big.Int
	Add(a, b Point)
	SafeAdd(a, b Point)
	ScalarMult(a Point, scalar *big.Int)
	ScalarBaseMult(scalar *big.Int)
	Marshal() []byte
	Unmarshal(buf []byte) error
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(buf []byte) error
	Equal(a Point) bool
	Neg(a Point)
	SetZero()
	IsZero() bool
	Set(a Point)
	SetGenerator()
	String() string
	Point() (*big.Int, *big.Int)
	SetPoint(x, y *big.Int) Point
	Type() string
}

// PointEC is the JSON representation of the affine coordinates of a point.
type PointEC struct {
	X types.BigInt `json:"x"`
	Y types.BigInt `json:"y"`
}
