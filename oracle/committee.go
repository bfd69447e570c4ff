// Package oracle implements the threshold decryption service that turns
// publicly decryptable handles into signed cleartexts. A committee of nodes
// shares the coprocessor decryption key through a verifiable DKG. Each node
// also owns a secp256k1 key to attest the cleartexts it helped to recover,
// and the ledger accepts a result once enough known nodes signed it.
package oracle

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/crypto/dkg"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/ecc/bjj"
	"github.com/vocdoni/silentvote/crypto/ethereum"
	"github.com/vocdoni/silentvote/log"
)

// Node is a committee member: a DKG participant holding a key share and the
// signer used to attest decryptions.
type Node struct {
	participant *dkg.Participant
	signer      *ethereum.SignKeys
}

// ID returns the DKG participant id of the node.
func (n *Node) ID() int {
	return n.participant.ID
}

// Address returns the signer address of the node.
func (n *Node) Address() common.Address {
	return n.signer.Address()
}

// Committee is the set of nodes holding shares of the decryption key.
type Committee struct {
	Threshold int
	nodes     []*Node
	publicKey ecc.Point
}

// NewCommittee runs a DKG among size local nodes with the given threshold
// and generates a signer key for each of them.
func NewCommittee(size, threshold int) (*Committee, error) {
	participants, pubKey, err := dkg.NewCommittee(size, threshold, bjj.New())
	if err != nil {
		return nil, fmt.Errorf("dkg failed: %w", err)
	}
	c := &Committee{Threshold: threshold, publicKey: pubKey}
	for _, p := range participants {
		signer := ethereum.NewSignKeys()
		if err := signer.Generate(); err != nil {
			return nil, fmt.Errorf("cannot generate signer for node %d: %w", p.ID, err)
		}
		c.nodes = append(c.nodes, &Node{participant: p, signer: signer})
	}
	sort.Slice(c.nodes, func(i, j int) bool { return c.nodes[i].ID() < c.nodes[j].ID() })
	log.Infow("decryption committee created",
		"size", size,
		"threshold", threshold,
		"publicKey", pubKey.String(),
		"signers", fmt.Sprintf("%v", c.Signers()))
	return c, nil
}

// PublicKey returns the shared encryption key of the committee.
func (c *Committee) PublicKey() ecc.Point {
	return c.publicKey
}

// Nodes returns the committee members sorted by id.
func (c *Committee) Nodes() []*Node {
	return c.nodes
}

// Signers returns the signer addresses of every node.
func (c *Committee) Signers() []common.Address {
	addrs := make([]common.Address, 0, len(c.nodes))
	for _, n := range c.nodes {
		addrs = append(addrs, n.Address())
	}
	return addrs
}

// Verifier returns a verifier that accepts the signatures of the committee.
func (c *Committee) Verifier() *Verifier {
	v, err := NewVerifier(c.Signers(), c.Threshold)
	if err != nil {
		// the committee was built with a valid threshold
		panic(err)
	}
	return v
}
