package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

func voteKey(proposalID uint64, voter common.Address) []byte {
	return append(types.ProposalIDBytes(proposalID), voter.Bytes()...)
}

// VoteRecord returns the vote of voter on a proposal, or ErrNotFound.
func (s *Storage) VoteRecord(proposalID uint64, voter common.Address) (*types.VoteRecord, error) {
	rec := &types.VoteRecord{}
	if err := s.getArtifact(votePrefix, voteKey(proposalID, voter), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// HasVoted reports whether voter has a vote record on the proposal.
func (s *Storage) HasVoted(proposalID uint64, voter common.Address) (bool, error) {
	_, err := s.VoteRecord(proposalID, voter)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Votes returns every vote record of a proposal, sorted by voter address.
func (s *Storage) Votes(proposalID uint64) ([]*types.VoteRecord, error) {
	var (
		records []*types.VoteRecord
		decErr  error
	)
	rd := prefixeddb.NewPrefixedReader(s.db, votePrefix)
	if err := rd.Iterate(types.ProposalIDBytes(proposalID), func(_, v []byte) bool {
		rec := &types.VoteRecord{}
		if decErr = decodeArtifact(v, rec); decErr != nil {
			return false
		}
		records = append(records, rec)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	return records, nil
}

// CommitVote stores an accepted vote: the vote record, the new counters, the
// updated vote count of the proposal, the voters tree leaf and the event. All
// of them are written in one transaction, so either everything is visible or
// nothing is. Returns ErrExists if the voter already has a record.
func (s *Storage) CommitVote(rec *types.VoteRecord, counters *types.Counters, ev *types.Event) error {
	if rec == nil || counters == nil {
		return fmt.Errorf("nil vote data")
	}
	tree, err := s.VotersTree(rec.ProposalID)
	if err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()

	key := voteKey(rec.ProposalID, rec.Voter)
	exists, err := hasKeyTx(wTx, votePrefix, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("vote of %s on proposal %d: %w", rec.Voter, rec.ProposalID, ErrExists)
	}

	pid := types.ProposalIDBytes(rec.ProposalID)
	data, err := prefixeddb.NewPrefixedWriteTx(wTx, proposalPrefix).Get(pid)
	if err != nil {
		return fmt.Errorf("get proposal %d: %w", rec.ProposalID, err)
	}
	p := &types.Proposal{}
	if err := decodeArtifact(data, p); err != nil {
		return err
	}
	p.VoteCount++

	if err := s.setArtifactTx(wTx, votePrefix, key, rec); err != nil {
		return fmt.Errorf("set vote: %w", err)
	}
	if err := s.setArtifactTx(wTx, countersPrefix, pid, counters); err != nil {
		return fmt.Errorf("set counters: %w", err)
	}
	if err := s.setArtifactTx(wTx, proposalPrefix, pid, p); err != nil {
		return fmt.Errorf("set proposal: %w", err)
	}
	if err := tree.AddVoterTx(wTx, rec.Voter, rec.Ballot); err != nil {
		return err
	}
	if err := s.appendEventTx(wTx, ev); err != nil {
		return err
	}
	return wTx.Commit()
}
