package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/silentvote/log"
)

// newProposal creates a new proposal
// POST /proposals
func (a *API) newProposal(w http.ResponseWriter, r *http.Request) {
	req := &NewProposal{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	msg := ProposalSignatureMessage(a.info.Address, req.Title, req.DurationMinutes)
	if err := checkSigner(msg, req.Signature, req.Creator); err != nil {
		err.(Error).Write(w)
		return
	}
	id, err := a.ledger.CreateProposal(req.Title, req.DurationMinutes, req.Creator)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	log.Infow("new proposal", "id", id, "creator", req.Creator.String(), "duration", req.DurationMinutes)
	httpWriteJSON(w, &NewProposalResponse{ID: id})
}

// proposals lists the proposal ids
// GET /proposals
func (a *API) proposals(w http.ResponseWriter, r *http.Request) {
	count, err := a.ledger.ProposalCount()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	list := &ProposalList{Count: count, IDs: make([]uint64, 0, count)}
	for id := uint64(1); id <= count; id++ {
		list.IDs = append(list.IDs, id)
	}
	httpWriteJSON(w, list)
}

// proposal returns the snapshot of a proposal
// GET /proposals/{proposalId}
func (a *API) proposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	p, err := a.ledger.Proposal(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	active, err := a.ledger.IsVotingActive(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalResponse{Proposal: p, IsVotingActive: active})
}

// proposalHandles returns the published counter handles
// GET /proposals/{proposalId}/handles
func (a *API) proposalHandles(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	yes, no, err := a.ledger.ProposalHandles(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalHandles{Yes: yes, No: no})
}

// voter returns whether an address voted on a proposal
// GET /proposals/{proposalId}/voters/{address}
func (a *API) voter(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	addr, err := parseAddress(chi.URLParam(r, AddressURLParam))
	if err != nil {
		err.(Error).Write(w)
		return
	}
	voted, err := a.ledger.HasUserVoted(id, addr)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	proof, err := a.ledger.VoterProof(id, addr)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not generate voter proof: %v", err).Write(w)
		return
	}
	httpWriteJSON(w, &VoterResponse{Voter: addr, HasVoted: voted, Proof: proof})
}
