// Package tally implements the confidential yes/no ledger: the proposal
// registry, the vote ledger that accumulates encrypted choices into
// encrypted counters, and the gate that lets the counters be decrypted once
// voting is over. The ledger never sees a plaintext choice nor a plaintext
// counter, it only handles references to ciphertexts held by a coprocessor.
//
// Every mutating operation runs under a single lock, which is the total
// order of the ledger, and persists its effects in a single storage
// transaction.
package tally

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/storage"
	"github.com/vocdoni/silentvote/types"
)

// DefaultAddress is the account the ledger uses with the coprocessor when
// none is configured.
var DefaultAddress = common.HexToAddress("0x5170000000000000000000000000000000000001")

// Options configures a Ledger.
type Options struct {
	// Address identifies the ledger in the coprocessor ACL and binds the
	// encrypted inputs. It is the contract address on a chain deployment.
	Address common.Address
	// Clock provides the current time. Defaults to the system clock.
	Clock Clock
	// MaxTitleLength bounds the title length, in characters.
	MaxTitleLength int
	// MinDuration and MaxDuration bound the voting duration, in minutes.
	MinDuration uint64
	MaxDuration uint64
	// EventBuffer is the channel size of each subscription.
	EventBuffer int
}

// DefaultOptions returns the default ledger options.
func DefaultOptions() *Options {
	return &Options{
		Address:        DefaultAddress,
		Clock:          SystemClock{},
		MaxTitleLength: types.MaxTitleLength,
		MinDuration:    types.MinDurationMinutes,
		MaxDuration:    types.MaxDurationMinutes,
		EventBuffer:    64,
	}
}

// Ledger is the proposal registry, vote ledger and decryption gate.
type Ledger struct {
	mu       sync.Mutex
	stg      *storage.Storage
	cp       fhe.Coprocessor
	verifier fhe.DecryptionVerifier
	opts     Options

	subsLock sync.RWMutex
	subs     map[int]chan *types.Event
	nextSub  int
}

// New returns a Ledger over the given storage, coprocessor and decryption
// verifier. A nil opts selects DefaultOptions; zero fields of opts are
// filled with their defaults.
func New(stg *storage.Storage, cp fhe.Coprocessor, verifier fhe.DecryptionVerifier, opts *Options) (*Ledger, error) {
	if stg == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if cp == nil {
		return nil, fmt.Errorf("coprocessor cannot be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("decryption verifier cannot be nil")
	}
	o := *DefaultOptions()
	if opts != nil {
		if opts.Address != (common.Address{}) {
			o.Address = opts.Address
		}
		if opts.Clock != nil {
			o.Clock = opts.Clock
		}
		if opts.MaxTitleLength > 0 {
			o.MaxTitleLength = opts.MaxTitleLength
		}
		if opts.MinDuration > 0 {
			o.MinDuration = opts.MinDuration
		}
		if opts.MaxDuration > 0 {
			o.MaxDuration = opts.MaxDuration
		}
		if opts.EventBuffer > 0 {
			o.EventBuffer = opts.EventBuffer
		}
	}
	if o.MinDuration > o.MaxDuration {
		return nil, fmt.Errorf("min duration %d is above max duration %d", o.MinDuration, o.MaxDuration)
	}
	return &Ledger{
		stg:      stg,
		cp:       cp,
		verifier: verifier,
		opts:     o,
		subs:     make(map[int]chan *types.Event),
	}, nil
}

// Address returns the account of the ledger.
func (l *Ledger) Address() common.Address {
	return l.opts.Address
}

// now returns the ledger time, with the resolution stored on proposals.
func (l *Ledger) now() time.Time {
	return l.opts.Clock.Now().UTC().Truncate(time.Second)
}

// proposal loads a proposal, mapping a missing one to ErrNotFound.
func (l *Ledger) proposal(id uint64) (*types.Proposal, error) {
	p, err := l.stg.Proposal(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read proposal %d: %w", id, err)
	}
	return p, nil
}

// grant makes the ledger access to handles permanent.
func (l *Ledger) grant(handles ...types.Handle) error {
	for _, h := range handles {
		if err := l.cp.Allow(h, l.opts.Address, l.opts.Address); err != nil {
			return fmt.Errorf("cannot grant access to %s: %w", h, err)
		}
	}
	return nil
}

func logEvent(ev *types.Event) {
	log.Infow("ledger event", "seq", ev.Seq, "type", string(ev.Type), "proposal", ev.ProposalID)
}
