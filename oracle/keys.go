package oracle

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/silentvote/crypto/dkg"
	"github.com/vocdoni/silentvote/crypto/ecc/bjj"
	"github.com/vocdoni/silentvote/crypto/ethereum"
)

// CommitteeKeys is the persisted form of a local committee, so that a node
// can keep decrypting the ciphertexts created before a restart.
type CommitteeKeys struct {
	Threshold int        `cbor:"0,keyasint,omitempty"`
	PublicKey []byte     `cbor:"1,keyasint,omitempty"`
	Nodes     []NodeKeys `cbor:"2,keyasint,omitempty"`
}

// NodeKeys holds the secrets of a single node.
type NodeKeys struct {
	ID     int    `cbor:"0,keyasint,omitempty"`
	Share  []byte `cbor:"1,keyasint,omitempty"`
	Signer string `cbor:"2,keyasint,omitempty"`
}

// Keys exports the secrets of the committee.
func (c *Committee) Keys() *CommitteeKeys {
	keys := &CommitteeKeys{Threshold: c.Threshold, PublicKey: c.publicKey.Marshal()}
	for _, n := range c.nodes {
		_, priv := n.signer.HexString()
		keys.Nodes = append(keys.Nodes, NodeKeys{
			ID:     n.ID(),
			Share:  n.participant.PrivateShare.Bytes(),
			Signer: priv,
		})
	}
	return keys
}

// RestoreCommittee rebuilds a committee from exported keys.
func RestoreCommittee(keys *CommitteeKeys) (*Committee, error) {
	if keys == nil || len(keys.Nodes) == 0 {
		return nil, fmt.Errorf("no committee keys")
	}
	if keys.Threshold < 1 || keys.Threshold > len(keys.Nodes) {
		return nil, fmt.Errorf("invalid threshold %d for %d nodes", keys.Threshold, len(keys.Nodes))
	}
	pubKey := bjj.New()
	if err := pubKey.Unmarshal(keys.PublicKey); err != nil {
		return nil, fmt.Errorf("invalid committee public key: %w", err)
	}
	ids := make([]int, len(keys.Nodes))
	for i, nk := range keys.Nodes {
		ids[i] = nk.ID
	}
	c := &Committee{Threshold: keys.Threshold, publicKey: pubKey}
	for _, nk := range keys.Nodes {
		p := dkg.NewParticipant(nk.ID, keys.Threshold, ids, bjj.New())
		p.PrivateShare = new(big.Int).SetBytes(nk.Share)
		p.PublicKey = pubKey
		signer := ethereum.NewSignKeys()
		if err := signer.AddHexKey(nk.Signer); err != nil {
			return nil, fmt.Errorf("invalid signer key of node %d: %w", nk.ID, err)
		}
		c.nodes = append(c.nodes, &Node{participant: p, signer: signer})
	}
	return c, nil
}
