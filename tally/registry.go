package tally

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/types"
)

// CreateProposal registers a new proposal open for durationMinutes from now
// and returns its id. Ids are sequential and start at 1. Both counters start
// as encryptions of zero owned by the ledger.
func (l *Ledger) CreateProposal(title string, durationMinutes uint64, creator common.Address) (uint64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	if n := utf8.RuneCountInString(title); n > l.opts.MaxTitleLength {
		return 0, fmt.Errorf("%w: %d characters, max %d", ErrInvalidTitle, n, l.opts.MaxTitleLength)
	}
	if durationMinutes < l.opts.MinDuration || durationMinutes > l.opts.MaxDuration {
		return 0, fmt.Errorf("%w: %d minutes, must be in [%d, %d]",
			ErrInvalidDuration, durationMinutes, l.opts.MinDuration, l.opts.MaxDuration)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.cp.ClearTransient(l.opts.Address)

	count, err := l.stg.ProposalCount()
	if err != nil {
		return 0, err
	}
	yes, err := l.cp.TrivialEncrypt(0, l.opts.Address)
	if err != nil {
		return 0, fmt.Errorf("cannot create yes counter: %w", err)
	}
	no, err := l.cp.TrivialEncrypt(0, l.opts.Address)
	if err != nil {
		return 0, fmt.Errorf("cannot create no counter: %w", err)
	}
	if err := l.grant(yes, no); err != nil {
		return 0, err
	}

	now := l.now()
	p := &types.Proposal{
		ID:        count + 1,
		Title:     title,
		Creator:   creator,
		StartTime: now,
		EndTime:   now.Add(time.Duration(durationMinutes) * time.Minute),
		Status:    types.ProposalActive,
	}
	ev := &types.Event{
		Type:       types.EventProposalCreated,
		ProposalID: p.ID,
		Title:      p.Title,
		Creator:    creator,
		End:        p.EndTime,
		Time:       now,
	}
	if err := l.stg.CreateProposal(p, &types.Counters{Yes: yes, No: no}, ev); err != nil {
		return 0, fmt.Errorf("cannot store proposal: %w", err)
	}
	log.Debugw("proposal created", "id", p.ID, "creator", creator.String(), "end", p.EndTime)
	l.emit(ev)
	return p.ID, nil
}

// Proposal returns a snapshot of the proposal with the given id.
func (l *Ledger) Proposal(id uint64) (*types.Proposal, error) {
	return l.proposal(id)
}

// ProposalCount returns the number of proposals, which is the id of the
// last one.
func (l *Ledger) ProposalCount() (uint64, error) {
	return l.stg.ProposalCount()
}

// Proposals returns up to limit proposals starting at id from.
func (l *Ledger) Proposals(from uint64, limit int) ([]*types.Proposal, error) {
	return l.stg.ListProposals(from, limit)
}
