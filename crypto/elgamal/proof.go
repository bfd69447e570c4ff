package elgamal

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/hash/poseidon"
	"github.com/vocdoni/silentvote/util"
)

const (
	sizeScalar = 32
	// SizeBitProof is the length of a serialized BitProof.
	SizeBitProof = 4 * sizeScalar
)

// ErrInvalidBitProof is returned when a BitProof does not verify.
var ErrInvalidBitProof = errors.New("invalid bit proof")

// BitProof is a non-interactive disjunctive Chaum-Pedersen proof that a
// ciphertext encrypts either 0 or 1. Branch j proves knowledge of k such that
// C1 = k*G and C2 - j*G = k*P. The challenge is derived with Poseidon from the
// public key, the ciphertext, the caller context and the commitments.
type BitProof struct {
	C0, C1 *big.Int
	Z0, Z1 *big.Int
}

// ProveBit builds a BitProof for ct, which must be an encryption of bit under
// publicKey with randomness k. The context elements are bound to the
// challenge, so the proof only verifies with the same context.
func ProveBit(publicKey ecc.Point, ct *Ciphertext, bit bool, k *big.Int, context ...*big.Int) (*BitProof, error) {
	order := publicKey.Order()
	proved, simulated := 0, 1
	if bit {
		proved, simulated = 1, 0
	}
	commitA := [2]ecc.Point{}
	commitB := [2]ecc.Point{}
	challenges := [2]*big.Int{}
	responses := [2]*big.Int{}

	// simulated branch
	var err error
	if challenges[simulated], err = util.RandomScalar(order); err != nil {
		return nil, err
	}
	if responses[simulated], err = util.RandomScalar(order); err != nil {
		return nil, err
	}
	commitA[simulated], commitB[simulated] = branchCommitments(publicKey, ct, simulated, challenges[simulated], responses[simulated])

	// proved branch
	w, err := util.RandomScalar(order)
	if err != nil {
		return nil, err
	}
	commitA[proved] = publicKey.New()
	commitA[proved].ScalarBaseMult(w)
	commitB[proved] = publicKey.New()
	commitB[proved].ScalarMult(publicKey, w)

	c, err := bitChallenge(publicKey, ct, commitA, commitB, context)
	if err != nil {
		return nil, err
	}
	// c_real = c - c_fake
	challenges[proved] = new(big.Int).Sub(c, challenges[simulated])
	challenges[proved].Mod(challenges[proved], order)
	// z_real = w + c_real * k
	responses[proved] = new(big.Int).Mul(challenges[proved], k)
	responses[proved].Add(responses[proved], w)
	responses[proved].Mod(responses[proved], order)

	return &BitProof{
		C0: challenges[0], C1: challenges[1],
		Z0: responses[0], Z1: responses[1],
	}, nil
}

// Verify checks the proof against the ciphertext, public key and context.
func (p *BitProof) Verify(publicKey ecc.Point, ct *Ciphertext, context ...*big.Int) error {
	if p == nil || p.C0 == nil || p.C1 == nil || p.Z0 == nil || p.Z1 == nil {
		return fmt.Errorf("%w: incomplete proof", ErrInvalidBitProof)
	}
	order := publicKey.Order()
	for _, s := range []*big.Int{p.C0, p.C1, p.Z0, p.Z1} {
		if s.Sign() < 0 || s.Cmp(order) >= 0 {
			return fmt.Errorf("%w: scalar out of range", ErrInvalidBitProof)
		}
	}
	if !InSubgroup(ct.C1) || !InSubgroup(ct.C2) {
		return fmt.Errorf("%w: ciphertext outside the prime order subgroup", ErrInvalidBitProof)
	}
	commitA := [2]ecc.Point{}
	commitB := [2]ecc.Point{}
	commitA[0], commitB[0] = branchCommitments(publicKey, ct, 0, p.C0, p.Z0)
	commitA[1], commitB[1] = branchCommitments(publicKey, ct, 1, p.C1, p.Z1)
	c, err := bitChallenge(publicKey, ct, commitA, commitB, context)
	if err != nil {
		return err
	}
	sum := new(big.Int).Add(p.C0, p.C1)
	sum.Mod(sum, order)
	if sum.Cmp(c) != 0 {
		return ErrInvalidBitProof
	}
	return nil
}

// Serialize returns the 4*32 byte big-endian encoding of the proof.
func (p *BitProof) Serialize() []byte {
	buf := make([]byte, 0, SizeBitProof)
	for _, s := range []*big.Int{p.C0, p.C1, p.Z0, p.Z1} {
		buf = append(buf, s.FillBytes(make([]byte, sizeScalar))...)
	}
	return buf
}

// Deserialize decodes a proof produced by Serialize.
func (p *BitProof) Deserialize(data []byte) error {
	if len(data) != SizeBitProof {
		return fmt.Errorf("invalid proof length: got %d bytes, expected %d bytes", len(data), SizeBitProof)
	}
	scalars := make([]*big.Int, 4)
	for i := range scalars {
		scalars[i] = new(big.Int).SetBytes(data[i*sizeScalar : (i+1)*sizeScalar])
	}
	p.C0, p.C1, p.Z0, p.Z1 = scalars[0], scalars[1], scalars[2], scalars[3]
	return nil
}

// InSubgroup reports whether p belongs to the prime order subgroup.
func InSubgroup(p ecc.Point) bool {
	q := p.New()
	q.ScalarMult(p, p.Order())
	return q.IsZero()
}

// branchCommitments recomputes A = z*G - c*C1 and B = z*P - c*(C2 - j*G).
func branchCommitments(publicKey ecc.Point, ct *Ciphertext, j int, c, z *big.Int) (ecc.Point, ecc.Point) {
	negC := new(big.Int).Neg(c)
	negC.Mod(negC, publicKey.Order())

	a := publicKey.New()
	a.ScalarBaseMult(z)
	cC1 := publicKey.New()
	cC1.ScalarMult(ct.C1, negC)
	a.Add(a, cC1)

	target := publicKey.New()
	target.Set(ct.C2)
	if j == 1 {
		g := publicKey.New()
		g.SetGenerator()
		g.Neg(g)
		target.Add(target, g)
	}
	b := publicKey.New()
	b.ScalarMult(publicKey, z)
	cTarget := publicKey.New()
	cTarget.ScalarMult(target, negC)
	b.Add(b, cTarget)
	return a, b
}

func bitChallenge(publicKey ecc.Point, ct *Ciphertext, commitA, commitB [2]ecc.Point, context []*big.Int) (*big.Int, error) {
	inputs := ecc.Coordinates(publicKey, ct.C1, ct.C2)
	for _, e := range context {
		inputs = append(inputs, arbo.BigToFF(arbo.BN254BaseField, e))
	}
	inputs = append(inputs, ecc.Coordinates(commitA[0], commitB[0], commitA[1], commitB[1])...)
	h, err := poseidon.MultiPoseidon(inputs...)
	if err != nil {
		return nil, fmt.Errorf("could not compute challenge: %w", err)
	}
	return h.Mod(h, publicKey.Order()), nil
}
