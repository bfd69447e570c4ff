package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
)

const gatePageSize = 100

// GateConfig configures the GateService.
type GateConfig struct {
	// Interval between sweeps.
	Interval time.Duration
	// AutoOpen opens the decryption gate of ended proposals.
	AutoOpen bool
	// AutoSubmit decrypts pending proposals through the oracle and submits
	// the results.
	AutoSubmit bool
	// OracleTimeout bounds each oracle request.
	OracleTimeout time.Duration
}

// DefaultGateConfig returns the default GateService configuration.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Interval:      10 * time.Second,
		AutoOpen:      true,
		AutoSubmit:    true,
		OracleTimeout: 30 * time.Second,
	}
}

// GateService periodically moves ended proposals through the decryption
// gate. Oracle failures are logged and the proposal is retried on the next
// sweep.
type GateService struct {
	ledger    *tally.Ledger
	decrypter oracle.Decrypter
	conf      GateConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	sweepLock sync.Mutex
	// first is the lowest proposal id that may still need work.
	first uint64
}

// NewGate creates a new GateService. The decrypter may be nil when
// AutoSubmit is disabled.
func NewGate(ledger *tally.Ledger, decrypter oracle.Decrypter, conf GateConfig) (*GateService, error) {
	if conf.Interval <= 0 {
		return nil, fmt.Errorf("invalid gate interval %s", conf.Interval)
	}
	if conf.AutoSubmit && decrypter == nil {
		return nil, fmt.Errorf("auto submit requires a decrypter")
	}
	if conf.OracleTimeout <= 0 {
		conf.OracleTimeout = DefaultGateConfig().OracleTimeout
	}
	return &GateService{
		ledger:    ledger,
		decrypter: decrypter,
		conf:      conf,
		first:     1,
	}, nil
}

// Start begins the periodic sweeps. It returns an error if the service is
// already running.
func (gs *GateService) Start(ctx context.Context) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, gs.cancel = context.WithCancel(ctx)
	gs.done = make(chan struct{})
	go gs.run(ctx, gs.done)
	return nil
}

// Stop halts the service and waits for the running sweep to finish.
func (gs *GateService) Stop() {
	gs.mu.Lock()
	cancel, done := gs.cancel, gs.done
	gs.cancel, gs.done = nil, nil
	gs.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (gs *GateService) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(gs.conf.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := gs.Sweep(ctx); err != nil {
				log.Warnw("gate sweep failed", "error", err.Error())
			}
		}
	}
}

// Sweep runs a single pass over the proposals that are not decrypted yet.
// Errors on individual proposals are logged and skipped, only errors
// reading the ledger are returned.
func (gs *GateService) Sweep(ctx context.Context) error {
	gs.sweepLock.Lock()
	defer gs.sweepLock.Unlock()
	first := gs.first
	settled := true
	for from := first; ; from += gatePageSize {
		proposals, err := gs.ledger.Proposals(from, gatePageSize)
		if err != nil {
			return err
		}
		for _, p := range proposals {
			if ctx.Err() != nil {
				return nil
			}
			gs.process(ctx, p)
			if p.Status == types.ProposalDecrypted && settled {
				first = p.ID + 1
				continue
			}
			settled = false
		}
		if len(proposals) < gatePageSize {
			break
		}
	}
	gs.first = first
	return nil
}

// process moves a proposal as far as the configuration allows. The
// proposal is updated in place.
func (gs *GateService) process(ctx context.Context, p *types.Proposal) {
	if p.Status == types.ProposalActive && gs.conf.AutoOpen {
		yes, no, err := gs.ledger.AllowDecryption(p.ID)
		switch {
		case err == nil:
			p.Status, p.YesHandle, p.NoHandle = types.ProposalPendingDecryption, yes, no
			log.Infow("decryption gate opened", "proposal", p.ID)
		case errors.Is(err, tally.ErrVotingNotEnded):
			return
		case errors.Is(err, tally.ErrNotActive):
			// opened by someone else since the page was read
			fresh, err := gs.ledger.Proposal(p.ID)
			if err != nil {
				log.Warnw("cannot reload proposal", "proposal", p.ID, "error", err.Error())
				return
			}
			*p = *fresh
		default:
			log.Warnw("cannot open decryption gate", "proposal", p.ID, "error", err.Error())
			return
		}
	}
	if p.Status != types.ProposalPendingDecryption || !gs.conf.AutoSubmit {
		return
	}

	octx, cancel := context.WithTimeout(ctx, gs.conf.OracleTimeout)
	defer cancel()
	dec, err := gs.decrypter.PublicDecrypt(octx, []types.Handle{p.YesHandle, p.NoHandle})
	if err != nil {
		log.Warnw("oracle decryption failed, retrying on next sweep", "proposal", p.ID, "error", err.Error())
		return
	}
	yes, no := dec.Values[0], dec.Values[1]
	if err := gs.ledger.SubmitDecryptedResults(p.ID, yes, no, dec.Proof); err != nil {
		if errors.Is(err, tally.ErrNotPending) {
			p.Status = types.ProposalDecrypted
			return
		}
		log.Warnw("cannot submit results", "proposal", p.ID, "error", err.Error())
		return
	}
	p.Status, p.DecryptedYes, p.DecryptedNo = types.ProposalDecrypted, yes, no
}
