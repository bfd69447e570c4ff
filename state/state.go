// Package state keeps the voters tree of every proposal: an arbo merkle tree
// whose leaves are the addresses that voted, so that anyone holding the root
// can check whether an address took part.
package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/silentvote/crypto/hash/poseidon"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const (
	// MaxLevels is the depth of the voters tree, enough for 20 byte keys.
	MaxLevels = types.VotersTreeMaxLevels
	// MaxKeyLen is ceil(MaxLevels/8)
	MaxKeyLen = (MaxLevels + 7) / 8
	// valueLen is the size of a leaf value
	valueLen = 32
)

// hashFunc is the hash function used in the voters tree.
var hashFunc = arbo.HashFunctionPoseidon

var treePrefix = []byte("t/")

// VotersTree is the voters tree of a single proposal.
type VotersTree struct {
	tree       *arbo.Tree
	prefix     []byte
	proposalID uint64
}

// TreePrefix returns the database prefix under which the voters tree of a
// proposal is stored.
func TreePrefix(proposalID uint64) []byte {
	prefix := append([]byte{}, treePrefix...)
	prefix = append(prefix, types.ProposalIDBytes(proposalID)...)
	return append(prefix, '/')
}

// OpenVotersTree creates or opens the voters tree of proposalID stored in
// database.
func OpenVotersTree(database db.Database, proposalID uint64) (*VotersTree, error) {
	prefix := TreePrefix(proposalID)
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, prefix),
		MaxLevels:    MaxLevels,
		HashFunction: hashFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open voters tree of proposal %d: %w", proposalID, err)
	}
	return &VotersTree{tree: tree, prefix: prefix, proposalID: proposalID}, nil
}

// AddVoterTx adds voter to the tree within wTx, a write transaction on the
// root database. Nothing is visible until wTx is committed.
func (t *VotersTree) AddVoterTx(wTx db.WriteTx, voter common.Address, ballot types.Handle) error {
	value, err := LeafValue(ballot)
	if err != nil {
		return err
	}
	if err := t.tree.AddWithTx(prefixeddb.NewPrefixedWriteTx(wTx, t.prefix), voter.Bytes(), value); err != nil {
		return fmt.Errorf("cannot add voter %s: %w", voter, err)
	}
	return nil
}

// HasVoter reports whether voter is a leaf of the tree.
func (t *VotersTree) HasVoter(voter common.Address) (bool, error) {
	_, _, err := t.tree.Get(voter.Bytes())
	if errors.Is(err, arbo.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Root returns the current root of the tree.
func (t *VotersTree) Root() ([]byte, error) {
	return t.tree.Root()
}

// RootAsBigInt returns the current root as a field element.
func (t *VotersTree) RootAsBigInt() (*big.Int, error) {
	root, err := t.tree.Root()
	if err != nil {
		return nil, err
	}
	return arbo.BytesToBigInt(root), nil
}

// LeafValue returns the leaf value stored for a ballot handle: the poseidon
// hash of the handle bytes.
func LeafValue(ballot types.Handle) ([]byte, error) {
	h, err := poseidon.HashBytes(ballot[:])
	if err != nil {
		return nil, fmt.Errorf("cannot hash ballot: %w", err)
	}
	return arbo.BigIntToBytes(valueLen, h), nil
}
