package poseidon

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

func TestMultiPoseidon(t *testing.T) {
	c := qt.New(t)

	_, err := MultiPoseidon()
	c.Assert(err, qt.ErrorMatches, "no inputs provided")
	_, err = MultiPoseidon(make([]*big.Int, 257)...)
	c.Assert(err, qt.ErrorMatches, "too many inputs")

	// a single chunk is a plain poseidon hash
	single, err := MultiPoseidon(big.NewInt(1), big.NewInt(2))
	c.Assert(err, qt.IsNil)
	expected, err := poseidon.Hash([]*big.Int{big.NewInt(1), big.NewInt(2)})
	c.Assert(err, qt.IsNil)
	c.Assert(single.Cmp(expected), qt.Equals, 0)

	// more than one chunk
	inputs := make([]*big.Int, 40)
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i))
	}
	h1, err := MultiPoseidon(inputs...)
	c.Assert(err, qt.IsNil)
	inputs[39] = big.NewInt(1000)
	h2, err := MultiPoseidon(inputs...)
	c.Assert(err, qt.IsNil)
	c.Assert(h1.Cmp(h2), qt.Not(qt.Equals), 0)
}

func TestHashBytes(t *testing.T) {
	c := qt.New(t)
	h1, err := HashBytes([]byte("silentvote"))
	c.Assert(err, qt.IsNil)
	h2, err := HashBytes([]byte("silentvote\x00"))
	c.Assert(err, qt.IsNil)
	c.Assert(h1.Cmp(h2), qt.Not(qt.Equals), 0)

	long := make([]byte, 100)
	_, err = HashBytes(long)
	c.Assert(err, qt.IsNil)
}
