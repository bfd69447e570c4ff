package storage

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	creator = common.HexToAddress("0xc0ffee0000000000000000000000000000000001")
	voterA  = common.HexToAddress("0xaa")
	voterB  = common.HexToAddress("0xbb")
	start   = time.Unix(1700000000, 0).UTC()
)

func testProposal(id uint64) (*types.Proposal, *types.Counters, *types.Event) {
	p := &types.Proposal{
		ID:        id,
		Title:     "Q1",
		Creator:   creator,
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
		Status:    types.ProposalActive,
	}
	counters := &types.Counters{
		Yes: types.NewHandle([]byte{byte(id), 1}, types.ValueTypeUint64),
		No:  types.NewHandle([]byte{byte(id), 2}, types.ValueTypeUint64),
	}
	ev := &types.Event{Type: types.EventProposalCreated, ProposalID: id, Title: p.Title, Creator: creator, End: p.EndTime}
	return p, counters, ev
}

func TestProposals(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	count, err := stg.ProposalCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(0))
	_, err = stg.Proposal(1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	// ids must be sequential
	p, counters, ev := testProposal(2)
	c.Assert(stg.CreateProposal(p, counters, ev), qt.IsNotNil)

	p, counters, ev = testProposal(1)
	c.Assert(stg.CreateProposal(p, counters, ev), qt.IsNil)
	c.Assert(ev.Seq, qt.Equals, uint64(1))
	p2, counters2, ev2 := testProposal(2)
	c.Assert(stg.CreateProposal(p2, counters2, ev2), qt.IsNil)
	c.Assert(ev2.Seq, qt.Equals, uint64(2))

	count, err = stg.ProposalCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(2))

	got, err := stg.Proposal(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, p)
	gotCounters, err := stg.Counters(1)
	c.Assert(err, qt.IsNil)
	c.Assert(gotCounters, qt.DeepEquals, counters)

	list, err := stg.ListProposals(0, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[1].ID, qt.Equals, uint64(2))
	list, err = stg.ListProposals(2, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	list, err = stg.ListProposals(1, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)

	p.Status = types.ProposalPendingDecryption
	p.YesHandle, p.NoHandle = counters.Yes, counters.No
	c.Assert(stg.UpdateProposal(p, &types.Event{Type: types.EventDecryptionReady, ProposalID: 1}), qt.IsNil)
	got, err = stg.Proposal(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, types.ProposalPendingDecryption)
	c.Assert(got.YesHandle, qt.Equals, counters.Yes)

	missing, _, _ := testProposal(9)
	c.Assert(stg.UpdateProposal(missing, nil), qt.ErrorIs, ErrNotFound)

	events, err := stg.Events(0, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 3)
	c.Assert(events[0].Type, qt.Equals, types.EventProposalCreated)
	c.Assert(events[0].End.Equal(p.EndTime), qt.IsTrue)
	c.Assert(events[2].Type, qt.Equals, types.EventDecryptionReady)
	events, err = stg.Events(3, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	last, err := stg.LastEventSeq()
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, uint64(3))
}

func TestCommitVote(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	p, counters, ev := testProposal(1)
	c.Assert(stg.CreateProposal(p, counters, ev), qt.IsNil)

	rec := &types.VoteRecord{
		ProposalID: 1,
		Voter:      voterA,
		Ballot:     types.NewHandle([]byte("ballot"), types.ValueTypeBool),
		Time:       start.Add(time.Minute),
	}
	newCounters := &types.Counters{
		Yes: types.NewHandle([]byte("yes1"), types.ValueTypeUint64),
		No:  types.NewHandle([]byte("no1"), types.ValueTypeUint64),
	}
	voteEv := &types.Event{Type: types.EventVoteCast, ProposalID: 1, Voter: voterA}
	c.Assert(stg.CommitVote(rec, newCounters, voteEv), qt.IsNil)
	c.Assert(voteEv.Seq, qt.Equals, uint64(2))

	voted, err := stg.HasVoted(1, voterA)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	voted, err = stg.HasVoted(1, voterB)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)
	gotRec, err := stg.VoteRecord(1, voterA)
	c.Assert(err, qt.IsNil)
	c.Assert(gotRec, qt.DeepEquals, rec)
	gotCounters, err := stg.Counters(1)
	c.Assert(err, qt.IsNil)
	c.Assert(gotCounters, qt.DeepEquals, newCounters)
	got, err := stg.Proposal(1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.VoteCount, qt.Equals, uint64(1))

	tree, err := stg.VotersTree(1)
	c.Assert(err, qt.IsNil)
	inTree, err := tree.HasVoter(voterA)
	c.Assert(err, qt.IsNil)
	c.Assert(inTree, qt.IsTrue)

	// a second vote of the same voter changes nothing
	again := &types.Counters{Yes: types.NewHandle([]byte("yes2"), types.ValueTypeUint64)}
	err = stg.CommitVote(rec, again, &types.Event{Type: types.EventVoteCast, ProposalID: 1, Voter: voterA})
	c.Assert(err, qt.ErrorIs, ErrExists)
	gotCounters, err = stg.Counters(1)
	c.Assert(err, qt.IsNil)
	c.Assert(gotCounters, qt.DeepEquals, newCounters)
	last, err := stg.LastEventSeq()
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, uint64(2))

	recB := &types.VoteRecord{ProposalID: 1, Voter: voterB, Ballot: types.NewHandle([]byte("b"), types.ValueTypeBool), Time: start}
	c.Assert(stg.CommitVote(recB, newCounters, nil), qt.IsNil)
	votes, err := stg.Votes(1)
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 2)
	c.Assert(votes[0].Voter, qt.Equals, voterA)
}

func TestCommitVoteAtomic(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	// the proposal does not exist, so the transaction fails after the
	// record was staged
	rec := &types.VoteRecord{ProposalID: 7, Voter: voterA, Ballot: types.NewHandle([]byte("x"), types.ValueTypeBool)}
	err := stg.CommitVote(rec, &types.Counters{}, &types.Event{Type: types.EventVoteCast, ProposalID: 7})
	c.Assert(err, qt.IsNotNil)

	voted, err := stg.HasVoted(7, voterA)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)
	_, err = stg.Counters(7)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	tree, err := stg.VotersTree(7)
	c.Assert(err, qt.IsNil)
	inTree, err := tree.HasVoter(voterA)
	c.Assert(err, qt.IsNil)
	c.Assert(inTree, qt.IsFalse)
	last, err := stg.LastEventSeq()
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, uint64(0))
}

func TestCommitteeKeys(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, err := stg.CommitteeKeys()
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	committee, err := oracle.NewCommittee(3, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(stg.SetCommitteeKeys(committee.Keys()), qt.IsNil)
	keys, err := stg.CommitteeKeys()
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.DeepEquals, committee.Keys())

	restored, err := oracle.RestoreCommittee(keys)
	c.Assert(err, qt.IsNil)
	c.Assert(restored.Signers(), qt.DeepEquals, committee.Signers())
}
