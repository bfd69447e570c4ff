package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// InfoEndpoint returns the encryption key and the ledger address voters
	// need to build their encrypted input
	InfoEndpoint = "/info"

	// ProposalsEndpoint is the endpoint for creating and listing proposals
	ProposalsEndpoint = "/proposals"
	// ProposalEndpoint is the endpoint to get a proposal snapshot
	ProposalURLParam = "proposalId"
	ProposalEndpoint = "/proposals/{" + ProposalURLParam + "}"
	// ProposalHandlesEndpoint returns the published counter handles
	ProposalHandlesEndpoint = ProposalEndpoint + "/handles"
	// VoterEndpoint returns whether an address voted and its tree proof
	AddressURLParam = "address"
	VoterEndpoint   = ProposalEndpoint + "/voters/{" + AddressURLParam + "}"
	// VotesEndpoint is the endpoint for casting a vote
	VotesEndpoint = ProposalEndpoint + "/votes"
	// DecryptionEndpoint opens the decryption gate of an ended proposal
	DecryptionEndpoint = ProposalEndpoint + "/decryption"
	// ResultsEndpoint submits (POST) or reads (GET) the results
	ResultsEndpoint = ProposalEndpoint + "/results"

	// ContractProposalsEndpoint lists the proposals of the contract the node
	// follows. The contract routes mirror the proposal routes and are only
	// served in contract mode.
	ContractProposalsEndpoint = "/contract/proposals"
	ContractProposalEndpoint  = ContractProposalsEndpoint + "/{" + ProposalURLParam + "}"
	ContractHandlesEndpoint   = ContractProposalEndpoint + "/handles"
	ContractVoterEndpoint     = ContractProposalEndpoint + "/voters/{" + AddressURLParam + "}"
	ContractResultsEndpoint   = ContractProposalEndpoint + "/results"

	// EventsEndpoint polls the event log, with the from and limit query
	// parameters
	EventsEndpoint   = "/events"
	FromQueryParam   = "from"
	LimitQueryParam  = "limit"
	DefaultEventPage = 100
	MaxEventPage     = 1000
)
