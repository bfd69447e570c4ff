package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/silentvote/crypto/dkg"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/elgamal"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/types"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxValue bounds the discrete log search of a decryption.
const DefaultMaxValue = 1 << 24

var (
	// ErrNoHandles is returned when a decryption request carries no handle.
	ErrNoHandles = errors.New("no handles to decrypt")
	// ErrNotAllowed is returned when a handle is not publicly decryptable.
	ErrNotAllowed = errors.New("handle not allowed for decryption")
)

// CiphertextSource provides the ciphertexts of publicly decryptable handles.
type CiphertextSource interface {
	Ciphertext(h types.Handle) (*elgamal.Ciphertext, error)
}

// Decryption is the attested result of a public decryption.
type Decryption struct {
	Handles    []types.Handle
	Values     []uint64
	Signatures [][]byte
	Proof      []byte
}

// KMS decrypts publicly decryptable handles with the key shares of a
// committee and attests the cleartexts with the node signers.
type KMS struct {
	committee *Committee
	source    CiphertextSource
	maxValue  uint64
}

// NewKMS returns a KMS backed by committee. A zero maxValue selects
// DefaultMaxValue.
func NewKMS(committee *Committee, source CiphertextSource, maxValue uint64) *KMS {
	if maxValue == 0 {
		maxValue = DefaultMaxValue
	}
	return &KMS{committee: committee, source: source, maxValue: maxValue}
}

// Committee returns the committee behind the KMS.
func (k *KMS) Committee() *Committee {
	return k.committee
}

// PublicDecrypt recovers the plaintexts behind handles. Threshold nodes
// compute their partial decryptions concurrently, the partials are combined
// and each of those nodes signs the result.
func (k *KMS) PublicDecrypt(ctx context.Context, handles []types.Handle) (*Decryption, error) {
	if len(handles) == 0 {
		return nil, ErrNoHandles
	}
	cts := make([]*elgamal.Ciphertext, len(handles))
	for i, h := range handles {
		ct, err := k.source.Ciphertext(h)
		if errors.Is(err, fhe.ErrNotDecryptable) || errors.Is(err, fhe.ErrUnknownHandle) {
			return nil, fmt.Errorf("%w: %s", ErrNotAllowed, h)
		}
		if err != nil {
			return nil, err
		}
		cts[i] = ct
	}

	nodes := k.committee.nodes[:k.committee.Threshold]
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}

	// partials[i][j] is the share of node i for handle j
	partials := make([][]ecc.Point, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	for i, node := range nodes {
		g.Go(func() error {
			res := make([]ecc.Point, len(cts))
			for j, ct := range cts {
				if err := gctx.Err(); err != nil {
					return err
				}
				res[j] = node.participant.ComputePartialDecryption(ct.C1)
			}
			partials[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("partial decryption failed: %w", err)
	}

	values := make([]uint64, len(handles))
	for j, ct := range cts {
		shares := make(map[int]ecc.Point, len(nodes))
		for i, node := range nodes {
			shares[node.ID()] = partials[i][j]
		}
		v, err := dkg.CombinePartialDecryptions(ct.C2, shares, ids, k.maxValue)
		if err != nil {
			return nil, fmt.Errorf("cannot decrypt %s: %w", handles[j], err)
		}
		values[j] = v.Uint64()
	}

	digest, err := DecryptionDigest(handles, values)
	if err != nil {
		return nil, err
	}
	sigs := make([][]byte, len(nodes))
	g, gctx = errgroup.WithContext(ctx)
	for i, node := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sig, err := node.signer.SignEthereum(digest)
			if err != nil {
				return fmt.Errorf("node %d cannot sign: %w", node.ID(), err)
			}
			sigs[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	proof, err := EncodeProof(sigs)
	if err != nil {
		return nil, err
	}
	log.Debugw("public decryption done", "handles", len(handles), "signers", len(sigs))
	return &Decryption{Handles: handles, Values: values, Signatures: sigs, Proof: proof}, nil
}

// Decrypter is implemented by the KMS and by the relayer client.
type Decrypter interface {
	PublicDecrypt(ctx context.Context, handles []types.Handle) (*Decryption, error)
}

var _ Decrypter = (*KMS)(nil)
