// Package dkg implements a Feldman verifiable secret sharing distributed key
// generation for ElGamal, and the threshold decryption built on top of it.
// Every participant deals a random polynomial, the shares are verified
// against the public commitments, and the aggregated key can only be used
// for decryption by at least Threshold participants.
package dkg

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/silentvote/crypto/dkg/secies"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/util"
)

// Participant represents a participant in the DKG protocol.
type Participant struct {
	ID             int
	Threshold      int
	Participants   []int
	SecretCoeffs   []*big.Int
	PublicCoeffs   []ecc.Point
	SecretShares   map[int]*big.Int
	ReceivedShares map[int]*big.Int
	PrivateShare   *big.Int
	PublicKey      ecc.Point
	CurvePoint     ecc.Point
}

// NewParticipant initializes a new participant.
func NewParticipant(id int, threshold int, participants []int, curvePoint ecc.Point) *Participant {
	return &Participant{
		ID:             id,
		Threshold:      threshold,
		Participants:   participants,
		SecretCoeffs:   []*big.Int{},
		PublicCoeffs:   []ecc.Point{},
		SecretShares:   make(map[int]*big.Int),
		ReceivedShares: make(map[int]*big.Int),
		PrivateShare:   new(big.Int),
		CurvePoint:     curvePoint,
	}
}

// GenerateSecretPolynomial draws the Threshold random coefficients of the
// participant polynomial and commits to them.
func (p *Participant) GenerateSecretPolynomial() error {
	degree := p.Threshold - 1
	for i := 0; i <= degree; i++ {
		coeff, err := util.RandomScalar(p.CurvePoint.Order())
		if err != nil {
			return err
		}
		p.SecretCoeffs = append(p.SecretCoeffs, coeff)

		commitment := p.CurvePoint.New()
		commitment.ScalarBaseMult(coeff)
		p.PublicCoeffs = append(p.PublicCoeffs, commitment)
	}
	return nil
}

// ComputeShares computes shares to send to other participants.
func (p *Participant) ComputeShares() {
	for _, pid := range p.Participants {
		p.SecretShares[pid] = p.evaluatePolynomial(big.NewInt(int64(pid)))
	}
}

// evaluatePolynomial evaluates the secret polynomial at a given x.
func (p *Participant) evaluatePolynomial(x *big.Int) *big.Int {
	result := big.NewInt(0)
	xPower := big.NewInt(1)
	order := p.CurvePoint.Order()
	for _, coeff := range p.SecretCoeffs {
		term := new(big.Int).Mul(coeff, xPower)
		term.Mod(term, order)
		result.Add(result, term)
		result.Mod(result, order)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return result
}

// ReceiveShare receives a share from another participant.
func (p *Participant) ReceiveShare(fromID int, share *big.Int, publicCoeffs []ecc.Point) error {
	if !p.verifyShare(share, publicCoeffs) {
		return fmt.Errorf("invalid share from participant %d", fromID)
	}
	p.ReceivedShares[fromID] = share
	return nil
}

// verifyShare verifies a received share using the commitments:
// share*G == sum_i publicCoeffs[i] * ID^i
func (p *Participant) verifyShare(share *big.Int, publicCoeffs []ecc.Point) bool {
	if len(publicCoeffs) != p.Threshold {
		return false
	}
	lhs := p.CurvePoint.New()
	lhs.ScalarBaseMult(share)

	rhs := p.CurvePoint.New()
	x := big.NewInt(int64(p.ID))
	xPower := big.NewInt(1)
	order := p.CurvePoint.Order()
	for _, coeffCommitment := range publicCoeffs {
		term := p.CurvePoint.New()
		term.ScalarMult(coeffCommitment, xPower)
		rhs.Add(rhs, term)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return lhs.Equal(rhs)
}

// AggregateShares aggregates the received shares to compute the private share.
func (p *Participant) AggregateShares() {
	order := p.CurvePoint.Order()
	p.PrivateShare.Set(p.SecretShares[p.ID])
	for _, share := range p.ReceivedShares {
		p.PrivateShare.Add(p.PrivateShare, share)
		p.PrivateShare.Mod(p.PrivateShare, order)
	}
}

// AggregatePublicKey aggregates the public commitments to compute the public key.
func (p *Participant) AggregatePublicKey(allPublicCoeffs map[int][]ecc.Point) {
	pk := p.CurvePoint.New()
	for _, coeffs := range allPublicCoeffs {
		pk.Add(pk, coeffs[0]) // only the constant term is needed
	}
	p.PublicKey = pk
}

// PublicShare returns PrivateShare*G, the public counterpart of the
// participant key share.
func (p *Participant) PublicShare() ecc.Point {
	ps := p.CurvePoint.New()
	ps.ScalarBaseMult(p.PrivateShare)
	return ps
}

// NewCommittee runs the whole key generation among n local participants
// with ids 1..n and returns them, together with the shared public key.
func NewCommittee(n, threshold int, curve ecc.Point) (map[int]*Participant, ecc.Point, error) {
	if threshold < 1 || threshold > n {
		return nil, nil, fmt.Errorf("invalid threshold %d for %d participants", threshold, n)
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	participants := make(map[int]*Participant, n)
	transport := make(map[int]*secies.Key, n)
	allPublicCoeffs := make(map[int][]ecc.Point, n)
	for _, id := range ids {
		p := NewParticipant(id, threshold, ids, curve)
		if err := p.GenerateSecretPolynomial(); err != nil {
			return nil, nil, err
		}
		p.ComputeShares()
		key, err := secies.GenerateKey(curve)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot generate transport key of participant %d: %w", id, err)
		}
		participants[id] = p
		transport[id] = key
		allPublicCoeffs[id] = p.PublicCoeffs
	}
	// shares travel sealed to the transport key of their recipient
	for _, p := range participants {
		for id, dealer := range participants {
			if id == p.ID {
				continue
			}
			sealed, err := secies.Seal(dealer.SecretShares[p.ID], transport[p.ID].PublicKey())
			if err != nil {
				return nil, nil, fmt.Errorf("cannot seal share %d->%d: %w", id, p.ID, err)
			}
			share, err := transport[p.ID].Open(sealed)
			if err != nil {
				return nil, nil, fmt.Errorf("cannot open share %d->%d: %w", id, p.ID, err)
			}
			if err := p.ReceiveShare(id, share, dealer.PublicCoeffs); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, p := range participants {
		p.AggregateShares()
		p.AggregatePublicKey(allPublicCoeffs)
	}
	pubKey := participants[ids[0]].PublicKey
	for _, p := range participants {
		if !p.PublicKey.Equal(pubKey) {
			return nil, nil, fmt.Errorf("public key mismatch for participant %d", p.ID)
		}
	}
	log.Debugw("dkg committee ready", "participants", n, "threshold", threshold, "publicKey", pubKey.String())
	return participants, pubKey, nil
}
