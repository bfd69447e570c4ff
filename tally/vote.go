package tally

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/storage"
	"github.com/vocdoni/silentvote/types"
)

// Vote casts the encrypted choice of voter on a proposal. The checks run in
// this order: the proposal exists, voting has not ended, the voter did not
// vote yet and the encrypted input is valid. The duplicate check happens
// before any work on the coprocessor.
//
// The counters are updated with the same operations whatever the choice:
//
//	yes' = select(choice, yes+1, yes)
//	no'  = select(choice, no, no+1)
func (l *Ledger) Vote(proposalID uint64, input types.Handle, proof []byte, voter common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.cp.ClearTransient(l.opts.Address)

	p, err := l.proposal(proposalID)
	if err != nil {
		return err
	}
	now := l.now()
	if !now.Before(p.EndTime) || p.Status != types.ProposalActive {
		return fmt.Errorf("%w: proposal %d ended at %s", ErrVotingEnded, proposalID, p.EndTime)
	}
	voted, err := l.stg.HasVoted(proposalID, voter)
	if err != nil {
		return err
	}
	if voted {
		return fmt.Errorf("%w: %s on proposal %d", ErrAlreadyVoted, voter, proposalID)
	}

	ballot, err := l.cp.Validate(input, proof, l.opts.Address, voter)
	if errors.Is(err, fhe.ErrInvalidProof) {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err != nil {
		return fmt.Errorf("cannot validate vote: %w", err)
	}

	counters, err := l.stg.Counters(proposalID)
	if err != nil {
		return fmt.Errorf("cannot read counters of proposal %d: %w", proposalID, err)
	}
	newCounters, err := l.accumulate(counters, ballot)
	if err != nil {
		return err
	}

	rec := &types.VoteRecord{ProposalID: proposalID, Voter: voter, Ballot: ballot, Time: now}
	ev := &types.Event{Type: types.EventVoteCast, ProposalID: proposalID, Voter: voter, Time: now}
	if err := l.stg.CommitVote(rec, newCounters, ev); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return fmt.Errorf("%w: %s on proposal %d", ErrAlreadyVoted, voter, proposalID)
		}
		return fmt.Errorf("cannot commit vote: %w", err)
	}
	log.Debugw("vote accepted", "proposal", proposalID, "voter", voter.String())
	l.emit(ev)
	return nil
}

// accumulate adds the encrypted choice to the counters and grants the
// ledger access to the results.
func (l *Ledger) accumulate(c *types.Counters, choice types.Handle) (*types.Counters, error) {
	addr := l.opts.Address
	yesPlusOne, err := l.cp.AddPlain(c.Yes, 1, addr)
	if err != nil {
		return nil, fmt.Errorf("cannot add to yes counter: %w", err)
	}
	yes, err := l.cp.Select(choice, yesPlusOne, c.Yes, addr)
	if err != nil {
		return nil, fmt.Errorf("cannot select yes counter: %w", err)
	}
	noPlusOne, err := l.cp.AddPlain(c.No, 1, addr)
	if err != nil {
		return nil, fmt.Errorf("cannot add to no counter: %w", err)
	}
	no, err := l.cp.Select(choice, c.No, noPlusOne, addr)
	if err != nil {
		return nil, fmt.Errorf("cannot select no counter: %w", err)
	}
	if err := l.grant(yes, no); err != nil {
		return nil, err
	}
	return &types.Counters{Yes: yes, No: no}, nil
}
