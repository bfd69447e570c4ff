package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/api"
	"github.com/vocdoni/silentvote/types"
)

// ResponseError is a non 200 response of the API. It matches the api.Error
// with the same code, so callers can use errors.Is(err, api.ErrAlreadyVoted).
type ResponseError struct {
	Status  int
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %d (code %d: %s)", errCodeNot200, e.Status, e.Code, e.Message)
}

// Is reports whether target is the api.Error with the same code.
func (e *ResponseError) Is(target error) bool {
	t, ok := target.(api.Error)
	return ok && e.Code != 0 && t.Code == e.Code
}

func responseError(data []byte, status int) error {
	var body struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return &ResponseError{Status: status, Message: string(data)}
	}
	return &ResponseError{Status: status, Code: body.Code, Message: body.Err}
}

// call performs the request and decodes a successful response into out,
// which may be nil.
func (c *HTTPclient) call(method string, body, out any, params []string, urlPath ...string) error {
	data, status, err := c.Request(method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return responseError(data, status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

func proposalPath(id uint64, parts ...string) []string {
	return append([]string{"proposals", strconv.FormatUint(id, 10)}, parts...)
}

func contractPath(id uint64, parts ...string) []string {
	return append([]string{"contract", "proposals", strconv.FormatUint(id, 10)}, parts...)
}

// Info returns the ledger address and the encryption key.
func (c *HTTPclient) Info() (*api.InfoResponse, error) {
	info := &api.InfoResponse{}
	return info, c.call(HTTPGET, nil, info, nil, api.InfoEndpoint)
}

// CreateProposal creates a proposal and returns its id. The request must be
// signed by its creator.
func (c *HTTPclient) CreateProposal(req *api.NewProposal) (uint64, error) {
	resp := &api.NewProposalResponse{}
	if err := c.call(HTTPPOST, req, resp, nil, api.ProposalsEndpoint); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Proposals lists the proposal ids.
func (c *HTTPclient) Proposals() (*api.ProposalList, error) {
	list := &api.ProposalList{}
	return list, c.call(HTTPGET, nil, list, nil, api.ProposalsEndpoint)
}

// Proposal returns the snapshot of a proposal.
func (c *HTTPclient) Proposal(id uint64) (*api.ProposalResponse, error) {
	p := &api.ProposalResponse{}
	return p, c.call(HTTPGET, nil, p, nil, proposalPath(id)...)
}

// ProposalHandles returns the published counter handles of a proposal.
func (c *HTTPclient) ProposalHandles(id uint64) (types.Handle, types.Handle, error) {
	h := &api.ProposalHandles{}
	if err := c.call(HTTPGET, nil, h, nil, proposalPath(id, "handles")...); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return h.Yes, h.No, nil
}

// Voter returns whether addr voted on a proposal, with its tree proof.
func (c *HTTPclient) Voter(id uint64, addr common.Address) (*api.VoterResponse, error) {
	v := &api.VoterResponse{}
	return v, c.call(HTTPGET, nil, v, nil, proposalPath(id, "voters", addr.Hex())...)
}

// Vote casts an encrypted vote.
func (c *HTTPclient) Vote(id uint64, vote *api.Vote) error {
	return c.call(HTTPPOST, vote, nil, nil, proposalPath(id, "votes")...)
}

// AllowDecryption opens the decryption gate and returns the handles.
func (c *HTTPclient) AllowDecryption(id uint64) (types.Handle, types.Handle, error) {
	h := &api.ProposalHandles{}
	if err := c.call(HTTPPOST, struct{}{}, h, nil, proposalPath(id, "decryption")...); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return h.Yes, h.No, nil
}

// SubmitResults finalizes a proposal with the decrypted totals.
func (c *HTTPclient) SubmitResults(id uint64, res *api.DecryptedResults) error {
	return c.call(HTTPPOST, res, nil, nil, proposalPath(id, "results")...)
}

// Results returns the results view of a proposal.
func (c *HTTPclient) Results(id uint64) (*types.Results, error) {
	res := &types.Results{}
	return res, c.call(HTTPGET, nil, res, nil, proposalPath(id, "results")...)
}

// Events polls the event log.
func (c *HTTPclient) Events(from uint64, limit int) (*api.EventList, error) {
	list := &api.EventList{}
	params := []string{
		api.FromQueryParam, strconv.FormatUint(from, 10),
		api.LimitQueryParam, strconv.Itoa(limit),
	}
	return list, c.call(HTTPGET, nil, list, params, api.EventsEndpoint)
}

// ContractProposals lists the proposal ids of the contract the node follows.
func (c *HTTPclient) ContractProposals() (*api.ProposalList, error) {
	list := &api.ProposalList{}
	return list, c.call(HTTPGET, nil, list, nil, api.ContractProposalsEndpoint)
}

// ContractProposal returns the snapshot of a contract proposal.
func (c *HTTPclient) ContractProposal(id uint64) (*api.ProposalResponse, error) {
	p := &api.ProposalResponse{}
	return p, c.call(HTTPGET, nil, p, nil, contractPath(id)...)
}

// ContractProposalHandles returns the counter handles published on chain.
func (c *HTTPclient) ContractProposalHandles(id uint64) (types.Handle, types.Handle, error) {
	h := &api.ProposalHandles{}
	if err := c.call(HTTPGET, nil, h, nil, contractPath(id, "handles")...); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return h.Yes, h.No, nil
}

// ContractVoter returns whether addr voted on a contract proposal.
func (c *HTTPclient) ContractVoter(id uint64, addr common.Address) (*api.VoterResponse, error) {
	v := &api.VoterResponse{}
	return v, c.call(HTTPGET, nil, v, nil, contractPath(id, "voters", addr.Hex())...)
}

// ContractResults returns the results view of a contract proposal.
func (c *HTTPclient) ContractResults(id uint64) (*types.Results, error) {
	res := &types.Results{}
	return res, c.call(HTTPGET, nil, res, nil, contractPath(id, "results")...)
}
