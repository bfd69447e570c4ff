// Package poseidon hashes arbitrary sequences of BN254 scalar field elements
// and byte strings with the iden3 Poseidon implementation.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/arbo"
)

// maxInputs is the number of inputs accepted by MultiPoseidon: 16 chunks of
// 16 elements.
const maxInputs = 256

// bytesPerElement keeps every chunk of HashBytes below the field modulus.
const bytesPerElement = 31

// MultiPoseidon hashes up to 256 field elements. Inputs are hashed in chunks
// of 16 and the chunk hashes are hashed together when there is more than one.
// Inputs outside the field are reduced.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > maxInputs {
		return nil, fmt.Errorf("too many inputs")
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	hashes := []*big.Int{}
	chunk := []*big.Int{}
	for _, input := range inputs {
		if len(chunk) == 16 {
			hash, err := poseidon.Hash(chunk)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, hash)
			chunk = []*big.Int{}
		}
		chunk = append(chunk, arbo.BigToFF(arbo.BN254BaseField, input))
	}
	if len(chunk) > 0 {
		hash, err := poseidon.Hash(chunk)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	return poseidon.Hash(hashes)
}

// HashBytes splits data in 31 byte big-endian elements and hashes them with
// MultiPoseidon. The data length is absorbed first so that inputs differing
// only in trailing zeros do not collide.
func HashBytes(data []byte) (*big.Int, error) {
	inputs := []*big.Int{big.NewInt(int64(len(data)))}
	for i := 0; i < len(data); i += bytesPerElement {
		end := min(i+bytesPerElement, len(data))
		inputs = append(inputs, new(big.Int).SetBytes(data[i:end]))
	}
	return MultiPoseidon(inputs...)
}
