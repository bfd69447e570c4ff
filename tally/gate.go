package tally

import (
	"fmt"

	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/types"
)

// AllowDecryption opens the decryption gate of an ended proposal: the
// working counters become publicly decryptable and are published as the
// proposal handles. Anyone may call it, and only the first call succeeds.
func (l *Ledger) AllowDecryption(id uint64) (types.Handle, types.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.proposal(id)
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	now := l.now()
	if now.Before(p.EndTime) {
		return types.Handle{}, types.Handle{}, fmt.Errorf("%w: proposal %d ends at %s", ErrVotingNotEnded, id, p.EndTime)
	}
	if p.Status != types.ProposalActive {
		return types.Handle{}, types.Handle{}, fmt.Errorf("%w: proposal %d is %s", ErrNotActive, id, p.Status)
	}
	counters, err := l.stg.Counters(id)
	if err != nil {
		return types.Handle{}, types.Handle{}, fmt.Errorf("cannot read counters of proposal %d: %w", id, err)
	}
	var published []types.Handle
	for _, h := range []types.Handle{counters.Yes, counters.No} {
		if err := l.cp.MakePubliclyDecryptable(h, l.opts.Address); err != nil {
			l.revokePublic(published)
			return types.Handle{}, types.Handle{}, fmt.Errorf("cannot publish %s: %w", h, err)
		}
		published = append(published, h)
	}

	p.YesHandle, p.NoHandle = counters.Yes, counters.No
	p.Status = types.ProposalPendingDecryption
	ev := &types.Event{
		Type:       types.EventDecryptionReady,
		ProposalID: id,
		YesHandle:  p.YesHandle,
		NoHandle:   p.NoHandle,
		Time:       now,
	}
	if err := l.stg.UpdateProposal(p, ev); err != nil {
		l.revokePublic(published)
		return types.Handle{}, types.Handle{}, fmt.Errorf("cannot store proposal: %w", err)
	}
	log.Infow("decryption allowed", "proposal", id, "yes", p.YesHandle.String(), "no", p.NoHandle.String())
	l.emit(ev)
	return p.YesHandle, p.NoHandle, nil
}

// SubmitDecryptedResults finalizes a proposal pending decryption with the
// totals attested by proof. The totals must account for every vote.
func (l *Ledger) SubmitDecryptedResults(id, yes, no uint64, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.proposal(id)
	if err != nil {
		return err
	}
	if p.Status != types.ProposalPendingDecryption {
		return fmt.Errorf("%w: proposal %d is %s", ErrNotPending, id, p.Status)
	}
	handles := []types.Handle{p.YesHandle, p.NoHandle}
	if err := l.verifier.VerifyDecryptionProof(handles, []uint64{yes, no}, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDecryptionProof, err)
	}
	if yes+no != p.VoteCount {
		return fmt.Errorf("%w: %d+%d results for %d votes", ErrInvalidDecryptionProof, yes, no, p.VoteCount)
	}

	p.DecryptedYes, p.DecryptedNo = yes, no
	p.Status = types.ProposalDecrypted
	ev := &types.Event{
		Type:       types.EventResultsDecrypted,
		ProposalID: id,
		Yes:        yes,
		No:         no,
		Time:       l.now(),
	}
	if err := l.stg.UpdateProposal(p, ev); err != nil {
		return fmt.Errorf("cannot store proposal: %w", err)
	}
	log.Infow("results decrypted", "proposal", id, "yes", yes, "no", no, "outcome", types.Outcome(yes, no))
	l.emit(ev)
	return nil
}

// revokePublic clears the public flag of handles published by a gate
// opening that failed, so the counters of an active proposal stay private.
func (l *Ledger) revokePublic(handles []types.Handle) {
	for _, h := range handles {
		if err := l.cp.RevokePublicDecryption(h, l.opts.Address); err != nil {
			log.Warnw("cannot revoke public decryption", "handle", h.String(), "error", err.Error())
		}
	}
}
