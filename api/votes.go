package api

import (
	"encoding/json"
	"net/http"
)

// newVote casts an encrypted vote
// POST /proposals/{proposalId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	vote := &Vote{}
	if err := json.NewDecoder(r.Body).Decode(vote); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := checkSigner(VoteSignatureMessage(a.info.Address, id, vote.Handle), vote.Signature, vote.Voter); err != nil {
		err.(Error).Write(w)
		return
	}
	if err := a.ledger.Vote(id, vote.Handle, vote.Proof, vote.Voter); err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}
