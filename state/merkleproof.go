package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/silentvote/types"
)

// ArboProof stores the proof in arbo native types
type ArboProof struct {
	// Key+Value hashed through Siblings path, should produce Root hash
	Root      []byte
	Siblings  []byte
	Key       []byte
	Value     []byte
	Existence bool
}

// GenArboProof generates the proof of k in t. For a missing key the proof
// is a proof of exclusion.
func GenArboProof(t *arbo.Tree, k []byte) (*ArboProof, error) {
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	leafK, leafV, packedSiblings, existence, err := t.GenProof(k)
	if err != nil {
		return nil, err
	}
	return &ArboProof{
		Root:      root,
		Siblings:  packedSiblings,
		Key:       leafK,
		Value:     leafV,
		Existence: existence,
	}, nil
}

// GenProof returns the proof of inclusion (or exclusion) of voter.
func (t *VotersTree) GenProof(voter common.Address) (*types.VoterProof, error) {
	p, err := GenArboProof(t.tree, voter.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cannot generate proof for %s: %w", voter, err)
	}
	return &types.VoterProof{
		Root:     p.Root,
		Key:      p.Key,
		Value:    p.Value,
		Siblings: p.Siblings,
		Exists:   p.Existence,
	}, nil
}

// CheckProof verifies that an inclusion proof matches its root. Exclusion
// proofs never verify.
func CheckProof(p *types.VoterProof) (bool, error) {
	if p == nil || !p.Exists {
		return false, nil
	}
	return arbo.CheckProof(hashFunc, p.Key, p.Value, p.Root, p.Siblings)
}

// CheckVoter verifies that p proves the inclusion of voter with the given
// ballot under root.
func CheckVoter(p *types.VoterProof, root []byte, voter common.Address, ballot types.Handle) (bool, error) {
	if p == nil || !bytes.Equal(p.Root, root) || !bytes.Equal(p.Key, voter.Bytes()) {
		return false, nil
	}
	value, err := LeafValue(ballot)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(value, p.Value) {
		return false, nil
	}
	return CheckProof(p)
}
