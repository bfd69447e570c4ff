package oracle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/crypto/ethereum"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/types"
)

var (
	// ErrInvalidDecryptionProof is the base error of every proof rejection.
	ErrInvalidDecryptionProof = errors.New("invalid decryption proof")
	// ErrMalformedProof is returned when a proof cannot be decoded.
	ErrMalformedProof = fmt.Errorf("%w: malformed proof", ErrInvalidDecryptionProof)
	// ErrUnknownSigner is returned when a signature comes from outside the committee.
	ErrUnknownSigner = fmt.Errorf("%w: unknown signer", ErrInvalidDecryptionProof)
	// ErrDuplicateSigner is returned when a signer appears more than once.
	ErrDuplicateSigner = fmt.Errorf("%w: duplicate signer", ErrInvalidDecryptionProof)
	// ErrNotEnoughSignatures is returned when fewer than threshold signers attest.
	ErrNotEnoughSignatures = fmt.Errorf("%w: not enough signatures", ErrInvalidDecryptionProof)
)

// DecryptionDigest returns the message signed by the committee for a set of
// cleartexts: keccak256 of the handles followed by each value as a 32 byte
// big-endian integer.
func DecryptionDigest(handles []types.Handle, values []uint64) ([]byte, error) {
	if len(handles) != len(values) {
		return nil, fmt.Errorf("got %d handles and %d values", len(handles), len(values))
	}
	data := make([]byte, 0, len(handles)*2*32)
	for _, h := range handles {
		data = append(data, h[:]...)
	}
	for _, v := range values {
		data = append(data, common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)...)
	}
	return ethereum.HashRaw(data), nil
}

// EncodeProof packs signatures as a one byte count followed by each 65 byte
// signature.
func EncodeProof(signatures [][]byte) ([]byte, error) {
	if len(signatures) > 255 {
		return nil, fmt.Errorf("too many signatures: %d", len(signatures))
	}
	proof := make([]byte, 0, 1+len(signatures)*ethereum.SignatureLength)
	proof = append(proof, byte(len(signatures)))
	for i, sig := range signatures {
		if len(sig) != ethereum.SignatureLength {
			return nil, fmt.Errorf("signature %d has %d bytes", i, len(sig))
		}
		proof = append(proof, sig...)
	}
	return proof, nil
}

// DecodeProof unpacks a proof produced by EncodeProof.
func DecodeProof(proof []byte) ([][]byte, error) {
	if len(proof) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedProof)
	}
	count := int(proof[0])
	if len(proof) != 1+count*ethereum.SignatureLength {
		return nil, fmt.Errorf("%w: %d signatures in %d bytes", ErrMalformedProof, count, len(proof))
	}
	sigs := make([][]byte, count)
	for i := range sigs {
		offset := 1 + i*ethereum.SignatureLength
		sigs[i] = proof[offset : offset+ethereum.SignatureLength]
	}
	return sigs, nil
}

// Verifier checks decryption proofs against a known set of signers.
type Verifier struct {
	signers   map[common.Address]struct{}
	threshold int
}

var _ fhe.DecryptionVerifier = (*Verifier)(nil)

// NewVerifier returns a verifier that requires threshold distinct signatures
// from the given signers.
func NewVerifier(signers []common.Address, threshold int) (*Verifier, error) {
	if threshold < 1 || threshold > len(signers) {
		return nil, fmt.Errorf("invalid threshold %d for %d signers", threshold, len(signers))
	}
	v := &Verifier{signers: make(map[common.Address]struct{}, len(signers)), threshold: threshold}
	for _, s := range signers {
		v.signers[s] = struct{}{}
	}
	return v, nil
}

// Threshold returns the number of signatures required.
func (v *Verifier) Threshold() int {
	return v.threshold
}

// VerifyDecryptionProof implements fhe.DecryptionVerifier.
func (v *Verifier) VerifyDecryptionProof(handles []types.Handle, cleartexts []uint64, proof []byte) error {
	digest, err := DecryptionDigest(handles, cleartexts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDecryptionProof, err)
	}
	sigs, err := DecodeProof(proof)
	if err != nil {
		return err
	}
	seen := make(map[common.Address]struct{}, len(sigs))
	for _, sig := range sigs {
		addr, err := ethereum.AddrFromSignature(digest, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedProof, err)
		}
		if _, ok := v.signers[addr]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSigner, addr)
		}
		if _, ok := seen[addr]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSigner, addr)
		}
		seen[addr] = struct{}{}
	}
	if len(seen) < v.threshold {
		return fmt.Errorf("%w: got %d, need %d", ErrNotEnoughSignatures, len(seen), v.threshold)
	}
	return nil
}
