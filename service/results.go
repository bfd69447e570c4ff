package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
)

var (
	// ErrNoOracle is returned when a result needs the oracle and none is set.
	ErrNoOracle = errors.New("no decryption oracle configured")
	// ErrGateClosed is returned for an ended proposal whose gate is still
	// closed when the reader cannot open it.
	ErrGateClosed = errors.New("decryption gate closed")
)

// ProposalReader reads proposal snapshots. It is implemented by the ledger
// and by the contract binding.
type ProposalReader interface {
	Proposal(id uint64) (*types.Proposal, error)
}

// DecryptionOpener opens the decryption gate of an ended proposal.
type DecryptionOpener interface {
	AllowDecryption(id uint64) (types.Handle, types.Handle, error)
}

// ResultsReader builds the results view of a proposal. Totals finalized on
// the ledger are official. Before that, the published handles are decrypted
// through the oracle and the view is only local to the caller.
type ResultsReader struct {
	proposals ProposalReader
	opener    DecryptionOpener
	decrypter oracle.Decrypter
	clock     tally.Clock
}

// NewResultsReader returns a ResultsReader. If proposals is also a
// DecryptionOpener, ended proposals are opened on read.
func NewResultsReader(proposals ProposalReader, decrypter oracle.Decrypter) *ResultsReader {
	r := &ResultsReader{
		proposals: proposals,
		decrypter: decrypter,
		clock:     tally.SystemClock{},
	}
	if opener, ok := proposals.(DecryptionOpener); ok {
		r.opener = opener
	}
	return r
}

// SetClock replaces the clock used to decide whether voting ended.
func (r *ResultsReader) SetClock(clock tally.Clock) {
	r.clock = clock
}

// Results returns the results view of a proposal.
func (r *ResultsReader) Results(ctx context.Context, id uint64) (*types.Results, error) {
	p, err := r.proposals.Proposal(id)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case types.ProposalDecrypted:
		return newResults(p, p.DecryptedYes, p.DecryptedNo, true), nil
	case types.ProposalActive:
		if r.clock.Now().Before(p.EndTime) {
			return nil, fmt.Errorf("%w: proposal %d ends at %s", tally.ErrVotingNotEnded, id, p.EndTime)
		}
		if r.opener == nil {
			return nil, fmt.Errorf("%w: proposal %d", ErrGateClosed, id)
		}
		if _, _, err := r.opener.AllowDecryption(id); err != nil && !errors.Is(err, tally.ErrNotActive) {
			return nil, err
		}
		if p, err = r.proposals.Proposal(id); err != nil {
			return nil, err
		}
		if p.Status == types.ProposalDecrypted {
			return newResults(p, p.DecryptedYes, p.DecryptedNo, true), nil
		}
	}

	if p.YesHandle.IsZero() && p.NoHandle.IsZero() {
		return newResults(p, 0, 0, false), nil
	}
	if r.decrypter == nil {
		return nil, ErrNoOracle
	}
	dec, err := r.decrypter.PublicDecrypt(ctx, []types.Handle{p.YesHandle, p.NoHandle})
	if err != nil {
		return nil, fmt.Errorf("cannot decrypt results of proposal %d: %w", id, err)
	}
	log.Debugw("session results", "proposal", id, "yes", dec.Values[0], "no", dec.Values[1])
	return newResults(p, dec.Values[0], dec.Values[1], false), nil
}

func newResults(p *types.Proposal, yes, no uint64, official bool) *types.Results {
	return &types.Results{
		ProposalID: p.ID,
		Yes:        yes,
		No:         no,
		Official:   official,
		Status:     p.Status,
		Outcome:    types.Outcome(yes, no),
	}
}
