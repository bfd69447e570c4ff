package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/types"
)

// InfoResponse carries what a voter needs to build an encrypted input.
type InfoResponse struct {
	Address       common.Address `json:"address"`
	ChainID       uint64         `json:"chainId"`
	EncryptionKey types.HexBytes `json:"encryptionKey"`
	Curve         string         `json:"curve"`
}

// NewProposal is the request to create a proposal. Signature is the EIP-191
// signature of the creator over ProposalSignatureMessage.
type NewProposal struct {
	Title           string         `json:"title"`
	DurationMinutes uint64         `json:"durationMinutes"`
	Creator         common.Address `json:"creator"`
	Signature       types.HexBytes `json:"signature"`
}

// NewProposalResponse is the response to a proposal creation request.
type NewProposalResponse struct {
	ID uint64 `json:"id"`
}

// ProposalList lists the known proposal ids.
type ProposalList struct {
	Count uint64   `json:"count"`
	IDs   []uint64 `json:"ids"`
}

// ProposalResponse is the snapshot of a proposal.
type ProposalResponse struct {
	*types.Proposal
	IsVotingActive bool `json:"isVotingActive"`
}

// ProposalHandles are the published counter handles of a proposal.
type ProposalHandles struct {
	Yes types.Handle `json:"yesHandle"`
	No  types.Handle `json:"noHandle"`
}

// VoterResponse tells whether an address voted and proves it against the
// voters tree root.
type VoterResponse struct {
	Voter    common.Address    `json:"voter"`
	HasVoted bool              `json:"hasVoted"`
	Proof    *types.VoterProof `json:"proof,omitempty"`
}

// Vote is the request to cast a vote. Handle and Proof are the encrypted
// input built for the ledger address and the voter. Signature is the EIP-191
// signature of the voter over VoteSignatureMessage.
type Vote struct {
	Voter     common.Address `json:"voter"`
	Handle    types.Handle   `json:"handle"`
	Proof     types.HexBytes `json:"proof"`
	Signature types.HexBytes `json:"signature"`
}

// DecryptedResults is the request to finalize a proposal.
type DecryptedResults struct {
	Yes   uint64         `json:"yes"`
	No    uint64         `json:"no"`
	Proof types.HexBytes `json:"proof"`
}

// EventList is a page of the event log.
type EventList struct {
	Events []*types.Event `json:"events"`
	// Next is the sequence number to poll from next time.
	Next uint64 `json:"next"`
}
