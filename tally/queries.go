package tally

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/types"
)

// HasUserVoted reports whether addr voted on the proposal.
func (l *Ledger) HasUserVoted(id uint64, addr common.Address) (bool, error) {
	if _, err := l.proposal(id); err != nil {
		return false, err
	}
	return l.stg.HasVoted(id, addr)
}

// IsVotingActive reports whether the proposal accepts votes.
func (l *Ledger) IsVotingActive(id uint64) (bool, error) {
	p, err := l.proposal(id)
	if err != nil {
		return false, err
	}
	return p.Status == types.ProposalActive && l.now().Before(p.EndTime), nil
}

// ProposalHandles returns the published counter handles. They are zero
// until the decryption gate opens.
func (l *Ledger) ProposalHandles(id uint64) (types.Handle, types.Handle, error) {
	p, err := l.proposal(id)
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return p.YesHandle, p.NoHandle, nil
}

// VoterProof returns the merkle proof of addr in the voters tree of the
// proposal. The proof is an exclusion proof if addr did not vote.
func (l *Ledger) VoterProof(id uint64, addr common.Address) (*types.VoterProof, error) {
	if _, err := l.proposal(id); err != nil {
		return nil, err
	}
	tree, err := l.stg.VotersTree(id)
	if err != nil {
		return nil, err
	}
	return tree.GenProof(addr)
}

// VotersRoot returns the root of the voters tree of the proposal.
func (l *Ledger) VotersRoot(id uint64) (types.HexBytes, error) {
	if _, err := l.proposal(id); err != nil {
		return nil, err
	}
	tree, err := l.stg.VotersTree(id)
	if err != nil {
		return nil, err
	}
	return tree.Root()
}

// Votes returns the vote records of a proposal. Records only reference the
// validated ballot handle, never the choice.
func (l *Ledger) Votes(id uint64) ([]*types.VoteRecord, error) {
	if _, err := l.proposal(id); err != nil {
		return nil, err
	}
	return l.stg.Votes(id)
}

// Events returns up to limit events of the log starting at sequence from.
func (l *Ledger) Events(from uint64, limit int) ([]*types.Event, error) {
	return l.stg.Events(from, limit)
}
