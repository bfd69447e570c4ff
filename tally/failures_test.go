package tally

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

// countingCoprocessor counts the encrypted operations the ledger requests.
type countingCoprocessor struct {
	fhe.Coprocessor
	mu    sync.Mutex
	calls map[string]int
}

func newCountingCoprocessor(cp fhe.Coprocessor) *countingCoprocessor {
	return &countingCoprocessor{Coprocessor: cp, calls: make(map[string]int)}
}

func (cc *countingCoprocessor) count(op string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.calls[op]++
}

func (cc *countingCoprocessor) total() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	n := 0
	for _, v := range cc.calls {
		n += v
	}
	return n
}

func (cc *countingCoprocessor) reset() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	clear(cc.calls)
}

func (cc *countingCoprocessor) Validate(input types.Handle, proof []byte, caller, user common.Address) (types.Handle, error) {
	cc.count("Validate")
	return cc.Coprocessor.Validate(input, proof, caller, user)
}

func (cc *countingCoprocessor) Select(cond, ifTrue, ifFalse types.Handle, caller common.Address) (types.Handle, error) {
	cc.count("Select")
	return cc.Coprocessor.Select(cond, ifTrue, ifFalse, caller)
}

func (cc *countingCoprocessor) AddPlain(counter types.Handle, value uint64, caller common.Address) (types.Handle, error) {
	cc.count("AddPlain")
	return cc.Coprocessor.AddPlain(counter, value, caller)
}

func (cc *countingCoprocessor) Allow(h types.Handle, account, caller common.Address) error {
	cc.count("Allow")
	return cc.Coprocessor.Allow(h, account, caller)
}

func TestDuplicateVoteSkipsCoprocessor(t *testing.T) {
	c := qt.New(t)
	var counter *countingCoprocessor
	tl := newTestLedgerWith(c, metadb.NewTest(t), func(cp fhe.Coprocessor) fhe.Coprocessor {
		counter = newCountingCoprocessor(cp)
		return counter
	})

	id, err := tl.CreateProposal("Q", 5, creator)
	c.Assert(err, qt.IsNil)
	c.Assert(tl.vote(c, id, true, alice), qt.IsNil)
	c.Assert(counter.calls["Validate"], qt.Equals, 1)
	c.Assert(counter.calls["Select"], qt.Equals, 2)
	c.Assert(counter.calls["AddPlain"], qt.Equals, 2)

	counter.reset()
	err = tl.Vote(id, types.Handle{0x01}, []byte("garbage"), alice)
	c.Assert(err, qt.ErrorIs, ErrAlreadyVoted)
	c.Assert(counter.total(), qt.Equals, 0)

	// the proof is checked before anything else is computed for a new voter
	err = tl.Vote(id, types.Handle{0x01}, []byte("garbage"), bob)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	c.Assert(counter.calls["Validate"], qt.Equals, 1)
	c.Assert(counter.total(), qt.Equals, 1)
}

var errCommit = errors.New("commit failed")

// failingDB fails every write transaction commit while failing is set.
type failingDB struct {
	db.Database
	mu      sync.Mutex
	failing bool
}

func (f *failingDB) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *failingDB) WriteTx() db.WriteTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &failingTx{WriteTx: f.Database.WriteTx(), fail: f.failing}
}

type failingTx struct {
	db.WriteTx
	fail bool
}

func (tx *failingTx) Commit() error {
	if tx.fail {
		tx.Discard()
		return errCommit
	}
	return tx.WriteTx.Commit()
}

func TestAllowDecryptionStorageFailure(t *testing.T) {
	c := qt.New(t)
	database := &failingDB{Database: metadb.NewTest(t)}
	tl := newTestLedgerWith(c, database, nil)

	id, err := tl.CreateProposal("Q", 1, creator)
	c.Assert(err, qt.IsNil)
	c.Assert(tl.vote(c, id, true, alice), qt.IsNil)
	tl.clock.Advance(time.Minute)
	counters, err := tl.stg.Counters(id)
	c.Assert(err, qt.IsNil)

	database.setFailing(true)
	_, _, err = tl.AllowDecryption(id)
	c.Assert(err, qt.ErrorIs, errCommit)

	// the counters of a proposal that is still active are not served
	p, err := tl.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Status, qt.Equals, types.ProposalActive)
	c.Assert(p.YesHandle.IsZero(), qt.IsTrue)
	for _, h := range []types.Handle{counters.Yes, counters.No} {
		public, err := tl.cp.IsPubliclyDecryptable(h)
		c.Assert(err, qt.IsNil)
		c.Assert(public, qt.IsFalse)
	}

	database.setFailing(false)
	yes, no, err := tl.AllowDecryption(id)
	c.Assert(err, qt.IsNil)
	c.Assert(yes, qt.Equals, counters.Yes)
	c.Assert(no, qt.Equals, counters.No)
	dec := tl.decrypt(c, yes, no)
	c.Assert(dec.Values, qt.DeepEquals, []uint64{1, 0})
}
