package fhe

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/elgamal"
	"github.com/vocdoni/silentvote/types"
)

// SizeInputProof is the length of the proof bundle that goes along with an
// encrypted input: the serialized ciphertext followed by the bit proof.
const SizeInputProof = elgamal.SizeCiphertext + elgamal.SizeBitProof

// InputBuilder encrypts client inputs for a coprocessor public key.
type InputBuilder struct {
	publicKey ecc.Point
}

// NewInputBuilder returns an InputBuilder for the given coprocessor key.
func NewInputBuilder(publicKey ecc.Point) *InputBuilder {
	return &InputBuilder{publicKey: publicKey}
}

// EncryptBool encrypts choice for the given contract and user. It returns the
// input handle and the proof bundle expected by Validate. The bundle only
// validates for the same contract and user pair.
func (b *InputBuilder) EncryptBool(choice bool, contract, user common.Address) (types.Handle, []byte, error) {
	k, err := elgamal.RandK(b.publicKey)
	if err != nil {
		return types.Handle{}, nil, err
	}
	msg := big.NewInt(0)
	if choice {
		msg.SetInt64(1)
	}
	ct, err := elgamal.NewCiphertext(b.publicKey).Encrypt(msg, b.publicKey, k)
	if err != nil {
		return types.Handle{}, nil, err
	}
	proof, err := elgamal.ProveBit(b.publicKey, ct, choice, k, inputContext(contract, user)...)
	if err != nil {
		return types.Handle{}, nil, fmt.Errorf("cannot prove input: %w", err)
	}
	ctBytes := ct.Serialize()
	bundle := make([]byte, 0, SizeInputProof)
	bundle = append(bundle, ctBytes...)
	bundle = append(bundle, proof.Serialize()...)
	return InputHandle(ctBytes, contract, user), bundle, nil
}

// InputHandle derives the handle of an encrypted boolean input from its
// serialized ciphertext and the contract and user it is bound to.
func InputHandle(ciphertext []byte, contract, user common.Address) types.Handle {
	digest := ethcrypto.Keccak256([]byte{opInput}, ciphertext, contract.Bytes(), user.Bytes())
	return types.NewHandle(digest, types.ValueTypeBool)
}

// parseInputProof splits a proof bundle into its ciphertext and bit proof.
func parseInputProof(curve ecc.Point, bundle []byte) (*elgamal.Ciphertext, *elgamal.BitProof, error) {
	if len(bundle) != SizeInputProof {
		return nil, nil, fmt.Errorf("invalid proof length: got %d bytes, expected %d", len(bundle), SizeInputProof)
	}
	ct := elgamal.NewCiphertext(curve)
	if err := ct.Deserialize(bundle[:elgamal.SizeCiphertext]); err != nil {
		return nil, nil, err
	}
	proof := &elgamal.BitProof{}
	if err := proof.Deserialize(bundle[elgamal.SizeCiphertext:]); err != nil {
		return nil, nil, err
	}
	return ct, proof, nil
}

// inputContext binds a bit proof to the contract and user addresses.
func inputContext(contract, user common.Address) []*big.Int {
	return []*big.Int{
		new(big.Int).SetBytes(contract.Bytes()),
		new(big.Int).SetBytes(user.Bytes()),
	}
}
