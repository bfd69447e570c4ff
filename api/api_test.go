package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/api"
	"github.com/vocdoni/silentvote/api/client"
	"github.com/vocdoni/silentvote/crypto/ecc/bjj"
	"github.com/vocdoni/silentvote/crypto/ethereum"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/storage"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db/metadb"
)

type testNode struct {
	client  *client.HTTPclient
	clock   *tally.ManualClock
	kms     *oracle.KMS
	address common.Address
}

func newSigner(c *qt.C) *ethereum.SignKeys {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return k
}

func newTestLedger(c *qt.C, address common.Address) (*tally.Ledger, *oracle.Committee, *fhe.ElGamalCoprocessor, *tally.ManualClock) {
	committee, err := oracle.NewCommittee(3, 2)
	c.Assert(err, qt.IsNil)
	cp, err := fhe.NewCoprocessor(metadb.NewTest(c.TB), committee.PublicKey())
	c.Assert(err, qt.IsNil)
	clock := tally.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ledger, err := tally.New(storage.New(metadb.NewTest(c.TB)), cp, committee.Verifier(),
		&tally.Options{Address: address, Clock: clock})
	c.Assert(err, qt.IsNil)
	return ledger, committee, cp, clock
}

func newTestNode(c *qt.C) *testNode {
	return newContractTestNode(c, nil, nil)
}

func newContractTestNode(c *qt.C, contract api.ContractSource, results api.ResultsSource) *testNode {
	ledger, committee, cp, clock := newTestLedger(c, tally.DefaultAddress)
	a, err := api.New(&api.APIConfig{
		Ledger:          ledger,
		EncryptionKey:   committee.PublicKey(),
		ChainID:         31337,
		Contract:        contract,
		ContractResults: results,
	})
	c.Assert(err, qt.IsNil)

	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)
	cli, err := client.New(srv.URL)
	c.Assert(err, qt.IsNil)
	cli.SetRetries(1)
	return &testNode{
		client:  cli,
		clock:   clock,
		kms:     oracle.NewKMS(committee, cp, 1000),
		address: a.Address(),
	}
}

// createProposal sends a proposal request signed by creator.
func (n *testNode) createProposal(c *qt.C, title string, duration uint64, creator *ethereum.SignKeys) (uint64, error) {
	req := &api.NewProposal{Title: title, DurationMinutes: duration}
	c.Assert(req.Sign(creator, n.address), qt.IsNil)
	return n.client.CreateProposal(req)
}

// encrypt builds the input of voter with the key announced by the node.
func (n *testNode) encrypt(c *qt.C, choice bool, voter common.Address) (types.Handle, []byte) {
	info, err := n.client.Info()
	c.Assert(err, qt.IsNil)
	pub := bjj.New()
	c.Assert(pub.Unmarshal(info.EncryptionKey), qt.IsNil)
	h, proof, err := fhe.NewInputBuilder(pub).EncryptBool(choice, info.Address, voter)
	c.Assert(err, qt.IsNil)
	return h, proof
}

// vote casts a vote signed by voter.
func (n *testNode) vote(c *qt.C, id uint64, choice bool, voter *ethereum.SignKeys) error {
	h, proof := n.encrypt(c, choice, voter.Address())
	v := &api.Vote{Handle: h, Proof: proof}
	c.Assert(v.Sign(voter, n.address, id), qt.IsNil)
	return n.client.Vote(id, v)
}

func TestProposalLifecycle(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(c)
	cli := n.client
	creator, alice, bob := newSigner(c), newSigner(c), newSigner(c)

	info, err := cli.Info()
	c.Assert(err, qt.IsNil)
	c.Assert(info.ChainID, qt.Equals, uint64(31337))
	c.Assert(info.Address, qt.Equals, tally.DefaultAddress)

	id, err := n.createProposal(c, "Q1", 5, creator)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))

	p, err := cli.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Title, qt.Equals, "Q1")
	c.Assert(p.Creator, qt.Equals, creator.Address())
	c.Assert(p.IsVotingActive, qt.IsTrue)

	c.Assert(n.vote(c, id, true, alice), qt.IsNil)
	c.Assert(n.vote(c, id, true, alice), qt.ErrorIs, api.ErrAlreadyVoted)
	c.Assert(n.vote(c, id, false, bob), qt.IsNil)

	voter, err := cli.Voter(id, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(voter.HasVoted, qt.IsTrue)
	c.Assert(voter.Proof.Exists, qt.IsTrue)

	_, _, err = cli.AllowDecryption(id)
	c.Assert(err, qt.ErrorIs, api.ErrVotingNotEnded)
	_, err = cli.Results(id)
	c.Assert(err, qt.ErrorIs, api.ErrOracleUnavailable)

	n.clock.Advance(6 * time.Minute)
	c.Assert(n.vote(c, id, true, creator), qt.ErrorIs, api.ErrVotingEnded)

	yes, no, err := cli.AllowDecryption(id)
	c.Assert(err, qt.IsNil)
	gotYes, gotNo, err := cli.ProposalHandles(id)
	c.Assert(err, qt.IsNil)
	c.Assert(gotYes, qt.Equals, yes)
	c.Assert(gotNo, qt.Equals, no)

	dec, err := n.kms.PublicDecrypt(context.Background(), []types.Handle{yes, no})
	c.Assert(err, qt.IsNil)
	err = cli.SubmitResults(id, &api.DecryptedResults{Yes: 2, No: 0, Proof: dec.Proof})
	c.Assert(err, qt.ErrorIs, api.ErrInvalidDecryptionProof)
	c.Assert(cli.SubmitResults(id, &api.DecryptedResults{Yes: 1, No: 1, Proof: dec.Proof}), qt.IsNil)
	err = cli.SubmitResults(id, &api.DecryptedResults{Yes: 1, No: 1, Proof: dec.Proof})
	c.Assert(err, qt.ErrorIs, api.ErrNotPending)

	res, err := cli.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Official, qt.IsTrue)
	c.Assert(res.Yes, qt.Equals, uint64(1))
	c.Assert(res.No, qt.Equals, uint64(1))
	c.Assert(res.Outcome, qt.Equals, "Tied")

	list, err := cli.Proposals()
	c.Assert(err, qt.IsNil)
	c.Assert(list.IDs, qt.DeepEquals, []uint64{1})

	events, err := cli.Events(0, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(events.Events, qt.HasLen, 2)
	c.Assert(events.Events[0].Type, qt.Equals, types.EventProposalCreated)
	c.Assert(events.Next, qt.Equals, uint64(3))
	events, err = cli.Events(events.Next, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events.Events, qt.HasLen, 3)
	c.Assert(events.Events[2].Type, qt.Equals, types.EventResultsDecrypted)
}

func TestErrors(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(c)
	cli := n.client
	creator, alice := newSigner(c), newSigner(c)

	_, err := n.createProposal(c, "", 5, creator)
	c.Assert(err, qt.ErrorIs, api.ErrInvalidTitle)
	_, err = n.createProposal(c, "x", 43201, creator)
	c.Assert(err, qt.ErrorIs, api.ErrInvalidDuration)
	_, err = n.createProposal(c, "x", 0, creator)
	c.Assert(err, qt.ErrorIs, api.ErrInvalidDuration)

	_, err = cli.Proposal(9)
	c.Assert(err, qt.ErrorIs, api.ErrProposalNotFound)
	_, _, err = cli.ProposalHandles(9)
	c.Assert(err, qt.ErrorIs, api.ErrProposalNotFound)
	_, err = cli.Voter(9, alice.Address())
	c.Assert(err, qt.ErrorIs, api.ErrProposalNotFound)

	data, status, err := cli.Request(client.HTTPGET, nil, nil, "proposals", "abc")
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, api.ErrMalformedProposalID.HTTPstatus, qt.Commentf("%s", data))
	_, status, err = cli.Request(client.HTTPGET, nil, nil, "proposals", "1", "voters", "0xnope")
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, api.ErrMalformedAddress.HTTPstatus)
	_, status, err = cli.Request(client.HTTPGET, nil, []string{api.FromQueryParam, "-1"}, api.EventsEndpoint)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, api.ErrMalformedParam.HTTPstatus)

	id, err := n.createProposal(c, "proofs", 5, creator)
	c.Assert(err, qt.IsNil)
	garbage := &api.Vote{Handle: types.Handle{0x01}, Proof: []byte{0x02}}
	c.Assert(garbage.Sign(alice, n.address, id), qt.IsNil)
	c.Assert(cli.Vote(id, garbage), qt.ErrorIs, api.ErrInvalidProof)
	_, _, err = cli.AllowDecryption(id)
	c.Assert(err, qt.ErrorIs, api.ErrVotingNotEnded)
	err = cli.SubmitResults(id, &api.DecryptedResults{})
	c.Assert(err, qt.ErrorIs, api.ErrNotPending)

	n.clock.Advance(5 * time.Minute)
	_, _, err = cli.AllowDecryption(id)
	c.Assert(err, qt.IsNil)
	_, _, err = cli.AllowDecryption(id)
	c.Assert(err, qt.ErrorIs, api.ErrNotActive)
}

func TestSignatures(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(c)
	cli := n.client
	creator, alice, mallory := newSigner(c), newSigner(c), newSigner(c)

	// a proposal on behalf of someone else
	req := &api.NewProposal{Title: "forged", DurationMinutes: 5}
	c.Assert(req.Sign(mallory, n.address), qt.IsNil)
	req.Creator = creator.Address()
	_, err := cli.CreateProposal(req)
	c.Assert(err, qt.ErrorIs, api.ErrInvalidSignature)

	// the title is covered by the signature
	c.Assert(req.Sign(creator, n.address), qt.IsNil)
	req.Title = "changed"
	_, err = cli.CreateProposal(req)
	c.Assert(err, qt.ErrorIs, api.ErrInvalidSignature)

	_, err = cli.CreateProposal(&api.NewProposal{Title: "unsigned", DurationMinutes: 5, Creator: creator.Address()})
	c.Assert(err, qt.ErrorIs, api.ErrInvalidSignature)

	id, err := n.createProposal(c, "Q", 5, creator)
	c.Assert(err, qt.IsNil)
	other, err := n.createProposal(c, "Q2", 5, creator)
	c.Assert(err, qt.IsNil)

	// mallory builds a valid input for alice and signs it herself
	h, proof := n.encrypt(c, true, alice.Address())
	forged := &api.Vote{Handle: h, Proof: proof}
	c.Assert(forged.Sign(mallory, n.address, id), qt.IsNil)
	forged.Voter = alice.Address()
	c.Assert(cli.Vote(id, forged), qt.ErrorIs, api.ErrInvalidSignature)

	forged.Signature = nil
	c.Assert(cli.Vote(id, forged), qt.ErrorIs, api.ErrInvalidSignature)

	// a signature of alice for another proposal or another ledger
	replay := &api.Vote{Handle: h, Proof: proof}
	c.Assert(replay.Sign(alice, n.address, other), qt.IsNil)
	c.Assert(cli.Vote(id, replay), qt.ErrorIs, api.ErrInvalidSignature)
	c.Assert(replay.Sign(alice, common.HexToAddress("0x01"), id), qt.IsNil)
	c.Assert(cli.Vote(id, replay), qt.ErrorIs, api.ErrInvalidSignature)

	voter, err := cli.Voter(id, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(voter.HasVoted, qt.IsFalse)

	// alice can still cast her own vote
	c.Assert(n.vote(c, id, true, alice), qt.IsNil)
	voter, err = cli.Voter(id, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(voter.HasVoted, qt.IsTrue)
}

// fixedResults serves the results of a single proposal.
type fixedResults struct {
	results *types.Results
}

func (f *fixedResults) Results(_ context.Context, id uint64) (*types.Results, error) {
	if id != f.results.ProposalID {
		return nil, fmt.Errorf("%w: %d", tally.ErrNotFound, id)
	}
	return f.results, nil
}

func TestContractRoutes(t *testing.T) {
	c := qt.New(t)
	// a second ledger stands for the contract the node follows
	chain, chainCommittee, _, _ := newTestLedger(c, common.HexToAddress("0x00000000000000000000000000000000000000c1"))
	creator, alice := newSigner(c), newSigner(c)
	id, err := chain.CreateProposal("on chain", 5, creator.Address())
	c.Assert(err, qt.IsNil)
	_, err = chain.CreateProposal("on chain too", 5, creator.Address())
	c.Assert(err, qt.IsNil)
	h, proof, err := fhe.NewInputBuilder(chainCommittee.PublicKey()).EncryptBool(true, chain.Address(), alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(chain.Vote(id, h, proof, alice.Address()), qt.IsNil)

	results := &fixedResults{results: &types.Results{ProposalID: id, Yes: 1, Status: types.ProposalActive, Outcome: "Approved"}}
	n := newContractTestNode(c, chain, results)
	cli := n.client

	list, err := cli.ContractProposals()
	c.Assert(err, qt.IsNil)
	c.Assert(list.IDs, qt.DeepEquals, []uint64{1, 2})
	local, err := cli.Proposals()
	c.Assert(err, qt.IsNil)
	c.Assert(local.Count, qt.Equals, uint64(0))

	p, err := cli.ContractProposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Title, qt.Equals, "on chain")
	c.Assert(p.IsVotingActive, qt.IsTrue)
	_, err = cli.Proposal(id)
	c.Assert(err, qt.ErrorIs, api.ErrProposalNotFound)

	voter, err := cli.ContractVoter(id, alice.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(voter.HasVoted, qt.IsTrue)
	c.Assert(voter.Proof, qt.IsNil)

	_, _, err = cli.ContractProposalHandles(id)
	c.Assert(err, qt.IsNil)
	_, _, err = cli.ContractProposalHandles(7)
	c.Assert(err, qt.ErrorIs, api.ErrProposalNotFound)

	res, err := cli.ContractResults(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Yes, qt.Equals, uint64(1))
	_, err = cli.ContractResults(7)
	c.Assert(err, qt.ErrorIs, api.ErrProposalNotFound)

	// without a contract the routes are not served
	plain := newTestNode(c)
	_, status, err := plain.client.Request(client.HTTPGET, nil, nil, "contract", "proposals")
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, http.StatusNotFound)

	_, err = api.New(&api.APIConfig{Ledger: chain, EncryptionKey: chainCommittee.PublicKey(), Contract: chain})
	c.Assert(err, qt.ErrorMatches, "contract and contract results must be set together")
}
