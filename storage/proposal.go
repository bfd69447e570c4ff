package storage

import (
	"fmt"

	"github.com/vocdoni/silentvote/types"
)

// Proposal returns the stored proposal with the given id, or ErrNotFound.
func (s *Storage) Proposal(id uint64) (*types.Proposal, error) {
	p := &types.Proposal{}
	if err := s.getArtifact(proposalPrefix, types.ProposalIDBytes(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// Counters returns the working encrypted counters of a proposal.
func (s *Storage) Counters(id uint64) (*types.Counters, error) {
	c := &types.Counters{}
	if err := s.getArtifact(countersPrefix, types.ProposalIDBytes(id), c); err != nil {
		return nil, err
	}
	return c, nil
}

// ProposalCount returns the number of proposals created, which is also the
// id of the last one.
func (s *Storage) ProposalCount() (uint64, error) {
	return s.getUint64(nextProposalKey)
}

// ListProposals returns up to limit proposals starting at id from.
func (s *Storage) ListProposals(from uint64, limit int) ([]*types.Proposal, error) {
	count, err := s.ProposalCount()
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	var list []*types.Proposal
	for id := from; id <= count && len(list) < limit; id++ {
		p, err := s.Proposal(id)
		if err != nil {
			return nil, fmt.Errorf("cannot read proposal %d: %w", id, err)
		}
		list = append(list, p)
	}
	return list, nil
}

// CreateProposal stores a new proposal with its counters and creation event.
// The proposal id must follow the last one. On success the event carries its
// assigned sequence number.
func (s *Storage) CreateProposal(p *types.Proposal, counters *types.Counters, ev *types.Event) error {
	if p == nil || counters == nil {
		return fmt.Errorf("nil proposal data")
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()

	count, err := getUint64Tx(wTx, nextProposalKey)
	if err != nil {
		return err
	}
	if p.ID != count+1 {
		return fmt.Errorf("unexpected proposal id %d, next is %d", p.ID, count+1)
	}
	key := types.ProposalIDBytes(p.ID)
	if err := s.setArtifactTx(wTx, proposalPrefix, key, p); err != nil {
		return fmt.Errorf("set proposal: %w", err)
	}
	if err := s.setArtifactTx(wTx, countersPrefix, key, counters); err != nil {
		return fmt.Errorf("set counters: %w", err)
	}
	if err := setUint64Tx(wTx, nextProposalKey, p.ID); err != nil {
		return err
	}
	if err := s.appendEventTx(wTx, ev); err != nil {
		return err
	}
	return wTx.Commit()
}

// UpdateProposal overwrites an existing proposal and appends ev, within a
// single transaction.
func (s *Storage) UpdateProposal(p *types.Proposal, ev *types.Event) error {
	if p == nil {
		return fmt.Errorf("nil proposal data")
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()

	key := types.ProposalIDBytes(p.ID)
	exists, err := hasKeyTx(wTx, proposalPrefix, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := s.setArtifactTx(wTx, proposalPrefix, key, p); err != nil {
		return fmt.Errorf("set proposal: %w", err)
	}
	if err := s.appendEventTx(wTx, ev); err != nil {
		return err
	}
	return wTx.Commit()
}
