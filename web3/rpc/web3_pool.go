package rpc

// This package contains the Web3Pool struct, a pool of web3 endpoints grouped
// by chainID. It provides a read-only implementation of the bind contract
// backend interfaces that balances the calls between the available endpoints
// of a chainID. An endpoint that fails is flagged as disabled and the call is
// retried on the next one. If every endpoint of a chainID fails, the pool
// enables all of them again and starts over.

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vocdoni/silentvote/log"
)

const (
	// DefaultMaxWeb3ClientRetries is the default number of retries to connect to
	// a web3 provider.
	DefaultMaxWeb3ClientRetries = 5
	// checkWeb3EndpointsTimeout is the timeout to check the web3 endpoints.
	checkWeb3EndpointsTimeout = time.Second * 10
)

// Web3Endpoint is a web3 provider of a chain.
type Web3Endpoint struct {
	ChainID uint64 `json:"chainId"`
	URI     string `json:"uri"`
	client  *ethclient.Client
}

// Web3Iterator rotates over the endpoints of a chain, skipping the disabled
// ones.
type Web3Iterator struct {
	mu        sync.Mutex
	endpoints []*Web3Endpoint
	disabled  map[string]bool
	next      int
}

// NewWeb3Iterator returns an iterator over the given endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{endpoints: endpoints, disabled: make(map[string]bool)}
}

// Add appends an endpoint to the iterator.
func (w *Web3Iterator) Add(endpoint *Web3Endpoint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.endpoints = append(w.endpoints, endpoint)
}

// Next returns the next available endpoint. When all of them are disabled
// they are enabled again.
func (w *Web3Iterator) Next() (*Web3Endpoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints")
	}
	if len(w.disabled) >= len(w.endpoints) {
		w.disabled = make(map[string]bool)
	}
	for range w.endpoints {
		e := w.endpoints[w.next%len(w.endpoints)]
		w.next++
		if !w.disabled[e.URI] {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no available endpoints")
}

// Disable flags the endpoint with the given uri as unavailable.
func (w *Web3Iterator) Disable(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.endpoints {
		if e.URI == uri {
			w.disabled[uri] = true
		}
	}
}

// Available returns the number of enabled endpoints.
func (w *Web3Iterator) Available() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.endpoints) - len(w.disabled)
}

// Disabled returns the number of disabled endpoints.
func (w *Web3Iterator) Disabled() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.disabled)
}

// Web3Pool struct contains a map of chainID-[]*Web3Endpoint, where
// the key is the chainID and the value is a list of Web3Endpoint.
type Web3Pool struct {
	mu        sync.RWMutex
	endpoints map[uint64]*Web3Iterator
}

// NewWeb3Pool method returns a new *Web3Pool instance.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{
		endpoints: make(map[uint64]*Web3Iterator),
	}
}

// AddEndpoint method adds a new web3 provider URI to the Web3Pool.
// It returns the chainID of the endpoint added to the pool.
func (nm *Web3Pool) AddEndpoint(uri string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), checkWeb3EndpointsTimeout)
	defer cancel()
	client, err := connect(ctx, uri)
	if err != nil {
		return 0, err
	}
	bChainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("error getting the chainID from the web3 provider '%s': %w", uri, err)
	}
	chainID := bChainID.Uint64()
	endpoint := &Web3Endpoint{
		ChainID: chainID,
		URI:     uri,
		client:  client,
	}
	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, ok := nm.endpoints[chainID]; !ok {
		nm.endpoints[chainID] = NewWeb3Iterator(endpoint)
	} else {
		nm.endpoints[chainID].Add(endpoint)
	}
	return chainID, nil
}

// Endpoint method returns the next available Web3Endpoint of the chainID
// provided.
func (nm *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if endpoints, ok := nm.endpoints[chainID]; ok {
		return endpoints.Next()
	}
	return nil, fmt.Errorf("no endpoint found for chainID %d", chainID)
}

// DisableEndpoint method sets the available flag to false for the URI provided
// in the chainID provided.
func (nm *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if endpoints, ok := nm.endpoints[chainID]; ok {
		endpoints.Disable(uri)
	}
}

// NumberOfEndpoints method returns the total number (or just the available ones)
// of endpoints for the chainID provided.
func (nm *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if endpoints, ok := nm.endpoints[chainID]; ok {
		n := endpoints.Available()
		if !onlyAvailable {
			n += endpoints.Disabled()
		}
		return n
	}
	return 0
}

// Client method returns a new *Client instance for the chainID provided.
// It returns an error if the endpoint is not found.
func (nm *Web3Pool) Client(chainID uint64) (*Client, error) {
	if _, err := nm.Endpoint(chainID); err != nil {
		return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", chainID, err)
	}
	return &Client{w3p: nm, chainID: chainID}, nil
}

// Client is a read-only contract backend over the endpoints of a chain.
// It implements bind.ContractCaller and bind.ContractFilterer.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// retry runs fn on the available endpoints until one succeeds.
func (c *Client) retry(fn func(*ethclient.Client) error) error {
	attempts := c.w3p.NumberOfEndpoints(c.chainID, false)
	var err error
	for range attempts {
		var endpoint *Web3Endpoint
		if endpoint, err = c.w3p.Endpoint(c.chainID); err != nil {
			return err
		}
		if err = fn(endpoint.client); err == nil {
			return nil
		}
		log.Warnw("web3 call failed, trying next endpoint", "uri", endpoint.URI, "error", err.Error())
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
	}
	return fmt.Errorf("all endpoints failed for chainID %d: %w", c.chainID, err)
}

// ChainID returns the chainID of the client.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// CodeAt implements bind.ContractCaller.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var code []byte
	err := c.retry(func(cli *ethclient.Client) (err error) {
		code, err = cli.CodeAt(ctx, account, blockNumber)
		return
	})
	return code, err
}

// CallContract implements bind.ContractCaller.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.retry(func(cli *ethclient.Client) (err error) {
		out, err = cli.CallContract(ctx, call, blockNumber)
		return
	})
	return out, err
}

// FilterLogs implements bind.ContractFilterer.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error) {
	var logs []gethtypes.Log
	err := c.retry(func(cli *ethclient.Client) (err error) {
		logs, err = cli.FilterLogs(ctx, query)
		return
	})
	return logs, err
}

// SubscribeFilterLogs implements bind.ContractFilterer.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	var sub ethereum.Subscription
	err := c.retry(func(cli *ethclient.Client) (err error) {
		sub, err = cli.SubscribeFilterLogs(ctx, query, ch)
		return
	})
	return sub, err
}

// connect method returns a new *ethclient.Client instance for the URI provided.
// It retries to connect to the web3 provider if it fails, up to the
// DefaultMaxWeb3ClientRetries times.
func connect(ctx context.Context, uri string) (client *ethclient.Client, err error) {
	for i := 0; i < DefaultMaxWeb3ClientRetries; i++ {
		if client, err = ethclient.DialContext(ctx, uri); err != nil {
			continue
		}
		return
	}
	return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
}
