package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number and CBOR to a bignum.
type BigInt big.Int

// NewInt creates a new BigInt from an int.
func NewInt(x int) *BigInt {
	return (*BigInt)(big.NewInt(int64(x)))
}

func (i BigInt) MarshalText() ([]byte, error) {
	return i.MathBigInt().MarshalText()
}

func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	return (*big.Int)(i).UnmarshalText(data)
}

func (i BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.MathBigInt())
}

func (i *BigInt) UnmarshalCBOR(data []byte) error {
	bi := new(big.Int)
	if err := cbor.Unmarshal(data, bi); err != nil {
		return err
	}
	*i = BigInt(*bi)
	return nil
}

// MathBigInt converts i to the math/big.Int type.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// SetBigInt sets the value of i to the given big.Int.
func (i *BigInt) SetBigInt(x *big.Int) *BigInt {
	(*big.Int)(i).Set(x)
	return i
}

// SetUint64 sets the value of i to x and returns i.
func (i *BigInt) SetUint64(x uint64) *BigInt {
	(*big.Int)(i).SetUint64(x)
	return i
}

// Uint64 returns the uint64 representation of i.
func (i *BigInt) Uint64() uint64 {
	return i.MathBigInt().Uint64()
}

// String returns the decimal representation of i.
func (i *BigInt) String() string {
	return i.MathBigInt().String()
}

// Equal helps us with go-cmp.
func (i *BigInt) Equal(j *BigInt) bool {
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}
