package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/types"
)

// ContractSource is a read-only view of the proposals of an on-chain
// deployment. It is implemented by the web3 binding.
type ContractSource interface {
	ProposalCount() (uint64, error)
	Proposal(id uint64) (*types.Proposal, error)
	ProposalHandles(id uint64) (types.Handle, types.Handle, error)
	HasUserVoted(id uint64, addr common.Address) (bool, error)
	IsVotingActive(id uint64) (bool, error)
}

// registerContractHandlers serves the contract reads under their own
// routes, so they never mix with the local ledger.
func (a *API) registerContractHandlers() {
	log.Infow("register handler", "endpoint", ContractProposalsEndpoint, "method", "GET")
	a.router.Get(ContractProposalsEndpoint, a.contractProposals)
	log.Infow("register handler", "endpoint", ContractProposalEndpoint, "method", "GET")
	a.router.Get(ContractProposalEndpoint, a.contractProposal)
	log.Infow("register handler", "endpoint", ContractHandlesEndpoint, "method", "GET")
	a.router.Get(ContractHandlesEndpoint, a.contractProposalHandles)
	log.Infow("register handler", "endpoint", ContractVoterEndpoint, "method", "GET")
	a.router.Get(ContractVoterEndpoint, a.contractVoter)
	log.Infow("register handler", "endpoint", ContractResultsEndpoint, "method", "GET")
	a.router.Get(ContractResultsEndpoint, a.contractProposalResults)
}

// contractProposals lists the proposal ids of the contract
// GET /contract/proposals
func (a *API) contractProposals(w http.ResponseWriter, r *http.Request) {
	count, err := a.contract.ProposalCount()
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

// contractProposal returns the snapshot of a contract proposal
// GET /contract/proposals/{proposalId}
func (a *API) contractProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	p, err := a.contract.Proposal(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	active, err := a.contract.IsVotingActive(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalResponse{Proposal: p, IsVotingActive: active})
}

// contractProposalHandles returns the counter handles published on chain
// GET /contract/proposals/{proposalId}/handles
func (a *API) contractProposalHandles(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	yes, no, err := a.contract.ProposalHandles(id)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalHandles{Yes: yes, No: no})
}

// contractVoter returns whether an address voted on a contract proposal.
// The contract keeps no voters tree, so there is no proof.
// GET /contract/proposals/{proposalId}/voters/{address}
func (a *API) contractVoter(w http.ResponseWriter, r *http.Request) {
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
	voted, err := a.contract.HasUserVoted(id, addr)
	if err != nil {
		tallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, &VoterResponse{Voter: addr, HasVoted: voted})
}

// contractProposalResults returns the results view of a contract proposal
// GET /contract/proposals/{proposalId}/results
func (a *API) contractProposalResults(w http.ResponseWriter, r *http.Request) {
	id, err := proposalIDParam(r)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	res, err := a.contractResults.Results(r.Context(), id)
	if err != nil {
		resultsError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}
