package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
)

// allowDecryption opens the decryption gate of an ended proposal
// POST /proposals/{proposalId}/decryption
func (a *API) allowDecryption(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	yes, no, err := a.ledger.AllowDecryption(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalHandles{Yes: yes, No: no})
}

// submitResults finalizes a proposal with the decrypted totals
// POST /proposals/{proposalId}/results
func (a *API) submitResults(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	req := &DecryptedResults{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := a.ledger.SubmitDecryptedResults(id, req.Yes, req.No, req.Proof); err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// proposalResults returns the results view of a proposal
// GET /proposals/{proposalId}/results
func (a *API) proposalResults(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	if a.results != nil {
		res, err := a.results.Results(r.Context(), id)
		if err != nil {
			resultsError(err).Write(w)
			return
		}
		httpWriteJSON(w, res)
		return
	}
	p, err := a.ledger.Proposal(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	if p.Status != types.ProposalDecrypted {
		ErrOracleUnavailable.Withf("proposal %d is %s", id, p.Status).Write(w)
		return
	}
	httpWriteJSON(w, &types.Results{
		ProposalID: id,
		Yes:        p.DecryptedYes,
		No:         p.DecryptedNo,
		Official:   true,
		Status:     p.Status,
		Outcome:    types.Outcome(p.DecryptedYes, p.DecryptedNo),
	})
}

// resultsError maps a results view error. Anything that is not a ledger
// state error comes from the oracle.
func resultsError(err error) Error {
	if errors.Is(err, tally.ErrNotFound) || errors.Is(err, tally.ErrVotingNotEnded) ||
		errors.Is(err, tally.ErrNotActive) {
		return tallyError(err)
	}
	return ErrOracleUnavailable.WithErr(err)
}
