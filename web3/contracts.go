// Package web3 binds a SilentVote contract deployed on an EVM chain. The
// binding is read-only: it serves the ledger queries and decodes the ledger
// events from the chain logs, so the results reader can follow an on-chain
// deployment the same way it follows the local ledger.
package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
	"github.com/vocdoni/silentvote/web3/rpc"
)

const web3QueryTimeout = 10 * time.Second

var parsedABI = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(SilentVoteABI))
	if err != nil {
		panic(fmt.Sprintf("invalid SilentVote ABI: %v", err))
	}
	return a
}()

// Backend is the chain access the binding needs.
type Backend interface {
	bind.ContractCaller
	bind.ContractFilterer
}

// Contract is a read-only binding to a SilentVote contract.
type Contract struct {
	ChainID  uint64
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
	web3pool *rpc.Web3Pool
}

// NewContract binds the contract at address through the given backend.
func NewContract(address common.Address, backend Backend) *Contract {
	return &Contract{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, parsedABI, backend, nil, backend),
	}
}

// DialContract binds the contract at address through a pool of web3
// endpoints. All the endpoints must serve the same chain.
func DialContract(address common.Address, web3rpcs ...string) (*Contract, error) {
	if len(web3rpcs) == 0 {
		return nil, fmt.Errorf("no web3 endpoints")
	}
	w3pool := rpc.NewWeb3Pool()
	chainID, err := w3pool.AddEndpoint(web3rpcs[0])
	if err != nil {
		return nil, fmt.Errorf("failed to add web3 endpoint: %w", err)
	}
	for _, uri := range web3rpcs[1:] {
		id, err := w3pool.AddEndpoint(uri)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "uri", uri, "error", err.Error())
			continue
		}
		if id != chainID {
			return nil, fmt.Errorf("endpoint %s serves chain %d, expected %d", uri, id, chainID)
		}
	}
	cli, err := w3pool.Client(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	c := NewContract(address, cli)
	c.ChainID = chainID
	c.web3pool = w3pool
	return c, nil
}

// AddWeb3Endpoint adds a new web3 endpoint to the pool of a dialed contract.
func (c *Contract) AddWeb3Endpoint(web3rpc string) error {
	if c.web3pool == nil {
		return fmt.Errorf("contract is not bound through a web3 pool")
	}
	chainID, err := c.web3pool.AddEndpoint(web3rpc)
	if err != nil {
		return err
	}
	if chainID != c.ChainID {
		return fmt.Errorf("endpoint serves chain %d, expected %d", chainID, c.ChainID)
	}
	return nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) call(method string, args ...any) ([]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

// ProposalCount returns the number of proposals of the contract.
func (c *Contract) ProposalCount() (uint64, error) {
	out, err := c.call("proposalCount")
	if err != nil {
		return 0, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int).Uint64(), nil
}

// exists maps an id outside the contract range to tally.ErrNotFound.
func (c *Contract) exists(id uint64) error {
	count, err := c.ProposalCount()
	if err != nil {
		return err
	}
	if id == 0 || id > count {
		return fmt.Errorf("%w: %d", tally.ErrNotFound, id)
	}
	return nil
}

// Proposal returns the snapshot of a proposal. The contract does not
// expose the start time nor the vote count.
func (c *Contract) Proposal(id uint64) (*types.Proposal, error) {
	if err := c.exists(id); err != nil {
		return nil, err
	}
	out, err := c.call("getProposal", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	p := &types.Proposal{
		ID:           id,
		Title:        *abi.ConvertType(out[0], new(string)).(*string),
		Creator:      *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		EndTime:      time.Unix(abi.ConvertType(out[2], new(big.Int)).(*big.Int).Int64(), 0).UTC(),
		Status:       types.ProposalStatus(*abi.ConvertType(out[3], new(uint8)).(*uint8)),
		DecryptedYes: *abi.ConvertType(out[4], new(uint64)).(*uint64),
		DecryptedNo:  *abi.ConvertType(out[5], new(uint64)).(*uint64),
	}
	if p.YesHandle, p.NoHandle, err = c.proposalHandles(id); err != nil {
		return nil, err
	}
	return p, nil
}

// ProposalHandles returns the published counter handles of a proposal.
func (c *Contract) ProposalHandles(id uint64) (types.Handle, types.Handle, error) {
	if err := c.exists(id); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return c.proposalHandles(id)
}

func (c *Contract) proposalHandles(id uint64) (types.Handle, types.Handle, error) {
	out, err := c.call("getProposalHandles", new(big.Int).SetUint64(id))
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	yes := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	no := *abi.ConvertType(out[1], new([32]byte)).(*[32]byte)
	return types.Handle(yes), types.Handle(no), nil
}

// HasUserVoted reports whether addr voted on the proposal.
func (c *Contract) HasUserVoted(id uint64, addr common.Address) (bool, error) {
	if err := c.exists(id); err != nil {
		return false, err
	}
	out, err := c.call("hasUserVoted", new(big.Int).SetUint64(id), addr)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// IsVotingActive reports whether the proposal accepts votes.
func (c *Contract) IsVotingActive(id uint64) (bool, error) {
	if err := c.exists(id); err != nil {
		return false, err
	}
	out, err := c.call("isVotingActive", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Events returns the ledger events logged by the contract between the given
// blocks, in log order. A nil end block means the latest one.
func (c *Contract) Events(ctx context.Context, start uint64, end *uint64) ([]*types.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(start),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{eventIDs()},
	}
	if end != nil {
		query.ToBlock = new(big.Int).SetUint64(*end)
	}
	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}
	events := make([]*types.Event, 0, len(logs))
	for _, l := range logs {
		ev, err := ParseEvent(l)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func eventIDs() []common.Hash {
	var ids []common.Hash
	for _, name := range []types.EventType{
		types.EventProposalCreated,
		types.EventVoteCast,
		types.EventDecryptionReady,
		types.EventResultsDecrypted,
	} {
		ids = append(ids, parsedABI.Events[string(name)].ID)
	}
	return ids
}

// ErrUnknownEvent is returned when a log is not a SilentVote event.
var ErrUnknownEvent = errors.New("unknown event")

// ParseEvent decodes a SilentVote log into a ledger event. The sequence
// number is the block number of the log.
func ParseEvent(l gethtypes.Log) (*types.Event, error) {
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("%w: %d topics", ErrUnknownEvent, len(l.Topics))
	}
	event, err := parsedABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
	}
	values := make(map[string]any)
	if err := parsedABI.UnpackIntoMap(values, event.Name, l.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", event.Name, err)
	}
	ev := &types.Event{
		Seq:        l.BlockNumber,
		Type:       types.EventType(event.Name),
		ProposalID: new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64(),
	}
	switch ev.Type {
	case types.EventProposalCreated:
		ev.Title = values["title"].(string)
		ev.Creator = values["creator"].(common.Address)
		ev.End = time.Unix(values["endTime"].(*big.Int).Int64(), 0).UTC()
	case types.EventVoteCast:
		ev.Voter = values["voter"].(common.Address)
	case types.EventDecryptionReady:
		ev.YesHandle = types.Handle(values["yesHandle"].([32]byte))
		ev.NoHandle = types.Handle(values["noHandle"].([32]byte))
	case types.EventResultsDecrypted:
		ev.Yes = values["yesVotes"].(uint64)
		ev.No = values["noVotes"].(uint64)
	}
	return ev, nil
}

var _ Backend = (*rpc.Client)(nil)
