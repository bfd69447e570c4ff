package dkg

import (
	"crypto/rand"
	"math/big"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/ecc/bjj"
	"github.com/vocdoni/silentvote/crypto/elgamal"
)

func TestDKG(t *testing.T) {
	const (
		numVoters   = 100
		threshold   = 3
		maxParallel = 20
	)
	c := qt.New(t)

	participants, pubKey, err := NewCommittee(5, threshold, bjj.New())
	c.Assert(err, qt.IsNil)
	c.Assert(participants, qt.HasLen, 5)

	// every yes vote adds one to the encrypted tally
	expectedSum := uint64(0)
	agg := elgamal.NewCiphertext(pubKey)
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, maxParallel)
	for i := 0; i < numVoters; i++ {
		bit, err := rand.Int(rand.Reader, big.NewInt(2))
		c.Assert(err, qt.IsNil)
		expectedSum += bit.Uint64()

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				wg.Done()
				<-sem
			}()
			ct, err := elgamal.NewCiphertext(pubKey).Encrypt(bit, pubKey, nil)
			c.Check(err, qt.IsNil)
			agg.Add(agg, ct)
		}()
	}
	wg.Wait()

	// any subset of threshold participants decrypts the tally
	for _, subset := range [][]int{{1, 2, 3}, {2, 4, 5}, {1, 2, 3, 4, 5}} {
		partials := make(map[int]ecc.Point)
		for _, id := range subset {
			partials[id] = participants[id].ComputePartialDecryption(agg.C1)
		}
		sum, err := CombinePartialDecryptions(agg.C2, partials, subset, numVoters)
		c.Assert(err, qt.IsNil)
		c.Assert(sum.Uint64(), qt.Equals, expectedSum, qt.Commentf("subset %v", subset))
	}

	// fewer than threshold participants cannot
	partials := map[int]ecc.Point{
		1: participants[1].ComputePartialDecryption(agg.C1),
		2: participants[2].ComputePartialDecryption(agg.C1),
	}
	_, err = CombinePartialDecryptions(agg.C2, partials, []int{1, 2}, numVoters)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestInvalidShare(t *testing.T) {
	c := qt.New(t)
	ids := []int{1, 2, 3}
	p1 := NewParticipant(1, 2, ids, bjj.New())
	p2 := NewParticipant(2, 2, ids, bjj.New())
	c.Assert(p1.GenerateSecretPolynomial(), qt.IsNil)
	c.Assert(p2.GenerateSecretPolynomial(), qt.IsNil)
	p2.ComputeShares()

	c.Assert(p1.ReceiveShare(2, p2.SecretShares[1], p2.PublicCoeffs), qt.IsNil)
	tampered := new(big.Int).Add(p2.SecretShares[1], big.NewInt(1))
	c.Assert(p1.ReceiveShare(2, tampered, p2.PublicCoeffs), qt.ErrorMatches, "invalid share from participant 2")

	_, _, err := NewCommittee(3, 4, bjj.New())
	c.Assert(err, qt.ErrorMatches, "invalid threshold.*")
}
