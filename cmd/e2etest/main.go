// Command e2etest drives a full proposal lifecycle through the HTTP API:
// create a proposal, cast encrypted votes, wait for the decryption gate and
// check the official totals. Without --host it starts an in-memory node whose
// clock is moved forward instead of waiting for the voting period.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/silentvote/api"
	apiclient "github.com/vocdoni/silentvote/api/client"
	"github.com/vocdoni/silentvote/crypto/ecc/bjj"
	"github.com/vocdoni/silentvote/crypto/ethereum"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/service"
	"github.com/vocdoni/silentvote/storage"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
)

// localNode is an in-memory node with a manual clock.
type localNode struct {
	url   string
	clock *tally.ManualClock
	stop  func()
}

func startLocalNode(ctx context.Context) (*localNode, error) {
	committee, err := oracle.NewCommittee(3, 2)
	if err != nil {
		return nil, err
	}
	cp, err := fhe.NewCoprocessor(memdb.New(), committee.PublicKey())
	if err != nil {
		return nil, err
	}
	clock := tally.NewManualClock(time.Now())
	stg := storage.New(memdb.New())
	ledger, err := tally.New(stg, cp, committee.Verifier(), &tally.Options{Clock: clock})
	if err != nil {
		return nil, err
	}
	kms := oracle.NewKMS(committee, cp, 1<<16)

	results := service.NewResultsReader(ledger, kms)
	results.SetClock(clock)
	apiService := service.NewAPI(&api.APIConfig{
		Host:          "127.0.0.1",
		Port:          0,
		Ledger:        ledger,
		Results:       results,
		EncryptionKey: committee.PublicKey(),
		ChainID:       1,
	})
	if err := apiService.Start(ctx); err != nil {
		return nil, err
	}
	gateConf := service.DefaultGateConfig()
	gateConf.Interval = 500 * time.Millisecond
	gate, err := service.NewGate(ledger, kms, gateConf)
	if err != nil {
		apiService.Stop()
		return nil, err
	}
	if err := gate.Start(ctx); err != nil {
		apiService.Stop()
		return nil, err
	}
	return &localNode{
		url:   "http://" + apiService.Addr(),
		clock: clock,
		stop: func() {
			gate.Stop()
			apiService.Stop()
			stg.Close()
		},
	}, nil
}

func main() {
	host := flag.String("host", "", "API url of a running node, an in-memory node is started if empty")
	voters := flag.Int("voters", 10, "number of voters")
	yes := flag.Int("yes", 6, "number of voters choosing yes")
	duration := flag.Uint64("duration", 1, "voting period in minutes")
	timeout := flag.Duration("timeout", 2*time.Minute, "time to wait for the official results once voting ended")
	logLevel := flag.String("logLevel", "debug", "log level")
	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	if *voters < 1 {
		log.Fatal("at least one voter is required")
	}
	if *yes > *voters {
		log.Fatalf("yes voters (%d) above total voters (%d)", *yes, *voters)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var node *localNode
	if *host == "" {
		var err error
		node, err = startLocalNode(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer node.stop()
		*host = node.url
		log.Infow("local node started", "url", node.url)
	}

	if err := run(*host, node, *voters, *yes, *duration, *timeout); err != nil {
		log.Errorw(err, "e2e test failed")
		return
	}
	log.Info("e2e test passed")
}

func run(host string, node *localNode, voters, yes int, duration uint64, timeout time.Duration) error {
	if _, err := url.Parse(host); err != nil {
		return err
	}
	cli, err := apiclient.New(host)
	if err != nil {
		return err
	}
	info, err := cli.Info()
	if err != nil {
		return err
	}
	if info.Curve != bjj.CurveType {
		return fmt.Errorf("unsupported curve %q", info.Curve)
	}
	pubKey := bjj.New()
	if err := pubKey.Unmarshal(info.EncryptionKey); err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	input := fhe.NewInputBuilder(pubKey)

	creator, err := newAccount()
	if err != nil {
		return err
	}
	req := &api.NewProposal{
		Title:           fmt.Sprintf("e2e %s", time.Now().Format(time.RFC3339)),
		DurationMinutes: duration,
	}
	if err := req.Sign(creator, info.Address); err != nil {
		return err
	}
	id, err := cli.CreateProposal(req)
	if err != nil {
		return err
	}
	log.Infow("proposal created", "id", id, "creator", creator.AddressString())

	accounts := make([]*ethereum.SignKeys, voters)
	for i := range voters {
		if accounts[i], err = newAccount(); err != nil {
			return err
		}
		if err := castVote(cli, input, info.Address, id, i < yes, accounts[i]); err != nil {
			return fmt.Errorf("vote %d: %w", i, err)
		}
		log.Debugw("vote cast", "proposal", id, "voter", accounts[i].AddressString())
	}

	// a second vote of the first voter must be rejected
	first := accounts[0]
	if err := castVote(cli, input, info.Address, id, false, first); !errors.Is(err, api.ErrAlreadyVoted) {
		return fmt.Errorf("expected already voted, got %v", err)
	}

	voter, err := cli.Voter(id, first.Address())
	if err != nil {
		return err
	}
	if !voter.HasVoted || voter.Proof == nil {
		return fmt.Errorf("voter %s not found in the voters tree", first.AddressString())
	}

	p, err := cli.Proposal(id)
	if err != nil {
		return err
	}
	if p.VoteCount != uint64(voters) || !p.IsVotingActive {
		return fmt.Errorf("unexpected proposal state: %d votes, active %t", p.VoteCount, p.IsVotingActive)
	}
	if _, err := cli.Results(id); !errors.Is(err, api.ErrVotingNotEnded) {
		return fmt.Errorf("expected voting not ended, got %v", err)
	}

	if node != nil {
		node.clock.Advance(time.Duration(duration)*time.Minute + time.Second)
	} else {
		wait := time.Until(p.EndTime) + time.Second
		log.Infow("waiting for the voting period to end", "wait", wait.String())
		time.Sleep(wait)
	}

	res, err := waitResults(cli, id, timeout)
	if err != nil {
		return err
	}
	log.Infow("official results", "proposal", id, "yes", res.Yes, "no", res.No, "outcome", res.Outcome)
	if res.Yes != uint64(yes) || res.No != uint64(voters-yes) {
		return fmt.Errorf("wrong totals: got %d/%d, expected %d/%d", res.Yes, res.No, yes, voters-yes)
	}

	events, err := cli.Events(0, 0)
	if err != nil {
		return err
	}
	counts := make(map[types.EventType]int)
	for _, ev := range events.Events {
		if ev.ProposalID == id {
			counts[ev.Type]++
		}
	}
	if counts[types.EventProposalCreated] != 1 || counts[types.EventVoteCast] != voters ||
		counts[types.EventDecryptionReady] != 1 || counts[types.EventResultsDecrypted] != 1 {
		return fmt.Errorf("unexpected events: %v", counts)
	}
	return nil
}

func newAccount() (*ethereum.SignKeys, error) {
	k := ethereum.NewSignKeys()
	if err := k.Generate(); err != nil {
		return nil, err
	}
	return k, nil
}

// castVote encrypts the choice of the account and sends it signed.
func castVote(cli *apiclient.HTTPclient, input *fhe.InputBuilder, ledger common.Address, id uint64,
	choice bool, account *ethereum.SignKeys,
) error {
	handle, proof, err := input.EncryptBool(choice, ledger, account.Address())
	if err != nil {
		return err
	}
	vote := &api.Vote{Handle: handle, Proof: proof}
	if err := vote.Sign(account, ledger, id); err != nil {
		return err
	}
	return cli.Vote(id, vote)
}

// waitResults polls the results of a proposal until they are official.
func waitResults(cli *apiclient.HTTPclient, id uint64, timeout time.Duration) (*types.Results, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		res, err := cli.Results(id)
		switch {
		case err != nil:
			log.Debugw("results not available yet", "proposal", id, "error", err.Error())
		case res.Official:
			return res, nil
		default:
			log.Debugw("results not official yet", "proposal", id, "status", res.Status)
		}
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("timeout waiting for the results of proposal %d", id)
}
