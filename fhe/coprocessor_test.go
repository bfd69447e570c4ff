package fhe

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/crypto/ecc/bjj"
	"github.com/vocdoni/silentvote/crypto/elgamal"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	ledgerAddr = common.HexToAddress("0x5afe000000000000000000000000000000000001")
	voterA     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	voterB     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func newTestCoprocessor(c *qt.C) (*ElGamalCoprocessor, *big.Int) {
	pub, priv, err := elgamal.GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)
	cp, err := NewCoprocessor(metadb.NewTest(c.TB), pub)
	c.Assert(err, qt.IsNil)
	return cp, priv
}

func decryptHandle(c *qt.C, cp *ElGamalCoprocessor, priv *big.Int, h types.Handle) uint64 {
	rec, err := cp.record(h)
	c.Assert(err, qt.IsNil)
	ct, err := cp.ciphertext(rec)
	c.Assert(err, qt.IsNil)
	_, msg, err := elgamal.Decrypt(cp.PublicKey(), priv, ct.C1, ct.C2, 1000)
	c.Assert(err, qt.IsNil)
	return msg.Uint64()
}

// castVote runs the accumulation used by the ledger for a single ballot.
func castVote(c *qt.C, cp *ElGamalCoprocessor, yes, no types.Handle, choice bool, voter common.Address) (types.Handle, types.Handle) {
	input, proof, err := NewInputBuilder(cp.PublicKey()).EncryptBool(choice, ledgerAddr, voter)
	c.Assert(err, qt.IsNil)
	ballot, err := cp.Validate(input, proof, ledgerAddr, voter)
	c.Assert(err, qt.IsNil)
	c.Assert(ballot, qt.Equals, input)

	yesPlus, err := cp.AddPlain(yes, 1, ledgerAddr)
	c.Assert(err, qt.IsNil)
	newYes, err := cp.Select(ballot, yesPlus, yes, ledgerAddr)
	c.Assert(err, qt.IsNil)
	noPlus, err := cp.AddPlain(no, 1, ledgerAddr)
	c.Assert(err, qt.IsNil)
	newNo, err := cp.Select(ballot, no, noPlus, ledgerAddr)
	c.Assert(err, qt.IsNil)

	c.Assert(cp.Allow(newYes, ledgerAddr, ledgerAddr), qt.IsNil)
	c.Assert(cp.Allow(newNo, ledgerAddr, ledgerAddr), qt.IsNil)
	cp.ClearTransient(ledgerAddr)
	return newYes, newNo
}

func newCounters(c *qt.C, cp *ElGamalCoprocessor) (types.Handle, types.Handle) {
	yes, err := cp.TrivialEncrypt(0, ledgerAddr)
	c.Assert(err, qt.IsNil)
	no, err := cp.TrivialEncrypt(0, ledgerAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(yes, qt.Not(qt.Equals), no)
	c.Assert(yes.Type(), qt.Equals, types.ValueTypeUint64)
	c.Assert(cp.Allow(yes, ledgerAddr, ledgerAddr), qt.IsNil)
	c.Assert(cp.Allow(no, ledgerAddr, ledgerAddr), qt.IsNil)
	cp.ClearTransient(ledgerAddr)
	return yes, no
}

func TestAccumulation(t *testing.T) {
	c := qt.New(t)
	cp, priv := newTestCoprocessor(c)

	yes, no := newCounters(c, cp)
	voters := []struct {
		addr   common.Address
		choice bool
	}{
		{voterA, true},
		{voterB, false},
		{common.HexToAddress("0xcc"), true},
	}
	for _, v := range voters {
		yes, no = castVote(c, cp, yes, no, v.choice, v.addr)
	}
	c.Assert(decryptHandle(c, cp, priv, yes), qt.Equals, uint64(2))
	c.Assert(decryptHandle(c, cp, priv, no), qt.Equals, uint64(1))

	// handles are not served until flagged
	_, err := cp.Ciphertext(yes)
	c.Assert(err, qt.ErrorIs, ErrNotDecryptable)
	c.Assert(cp.MakePubliclyDecryptable(yes, ledgerAddr), qt.IsNil)
	c.Assert(cp.MakePubliclyDecryptable(no, ledgerAddr), qt.IsNil)
	public, err := cp.IsPubliclyDecryptable(yes)
	c.Assert(err, qt.IsNil)
	c.Assert(public, qt.IsTrue)
	ct, err := cp.Ciphertext(no)
	c.Assert(err, qt.IsNil)
	_, msg, err := elgamal.Decrypt(cp.PublicKey(), priv, ct.C1, ct.C2, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(msg.Uint64(), qt.Equals, uint64(1))
}

func TestValidateRejects(t *testing.T) {
	c := qt.New(t)
	cp, _ := newTestCoprocessor(c)
	builder := NewInputBuilder(cp.PublicKey())

	input, proof, err := builder.EncryptBool(true, ledgerAddr, voterA)
	c.Assert(err, qt.IsNil)

	// replayed by another voter
	_, err = cp.Validate(input, proof, ledgerAddr, voterB)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// submitted to another contract
	_, err = cp.Validate(input, proof, voterB, voterA)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// handle from a different ciphertext
	other, _, err := builder.EncryptBool(true, ledgerAddr, voterA)
	c.Assert(err, qt.IsNil)
	_, err = cp.Validate(other, proof, ledgerAddr, voterA)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// tampered proof scalar
	tampered := append([]byte{}, proof...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = cp.Validate(input, tampered, ledgerAddr, voterA)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// truncated bundle
	_, err = cp.Validate(input, proof[:SizeInputProof-1], ledgerAddr, voterA)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// an encryption of 2 cannot be proven as a bit
	k, err := elgamal.RandK(cp.PublicKey())
	c.Assert(err, qt.IsNil)
	ct, err := elgamal.NewCiphertext(cp.PublicKey()).Encrypt(big.NewInt(2), cp.PublicKey(), k)
	c.Assert(err, qt.IsNil)
	bitProof, err := elgamal.ProveBit(cp.PublicKey(), ct, true, k, inputContext(ledgerAddr, voterA)...)
	c.Assert(err, qt.IsNil)
	forged := append(ct.Serialize(), bitProof.Serialize()...)
	_, err = cp.Validate(InputHandle(ct.Serialize(), ledgerAddr, voterA), forged, ledgerAddr, voterA)
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)

	// the genuine input still validates
	h, err := cp.Validate(input, proof, ledgerAddr, voterA)
	c.Assert(err, qt.IsNil)
	c.Assert(h, qt.Equals, input)
}

func TestSelectLineage(t *testing.T) {
	c := qt.New(t)
	cp, priv := newTestCoprocessor(c)

	a, err := cp.TrivialEncrypt(3, ledgerAddr)
	c.Assert(err, qt.IsNil)
	b, err := cp.TrivialEncrypt(3, ledgerAddr)
	c.Assert(err, qt.IsNil)
	input, proof, err := NewInputBuilder(cp.PublicKey()).EncryptBool(false, ledgerAddr, voterA)
	c.Assert(err, qt.IsNil)
	cond, err := cp.Validate(input, proof, ledgerAddr, voterA)
	c.Assert(err, qt.IsNil)

	_, err = cp.Select(cond, a, b, ledgerAddr)
	c.Assert(err, qt.ErrorIs, ErrUnsupportedSelect)

	// the condition must be a boolean
	_, err = cp.Select(a, a, a, ledgerAddr)
	c.Assert(err, qt.ErrorIs, ErrTypeMismatch)

	// a + 5 versus a + 2 with a false condition selects a + 2
	a5, err := cp.AddPlain(a, 5, ledgerAddr)
	c.Assert(err, qt.IsNil)
	a2, err := cp.AddPlain(a, 2, ledgerAddr)
	c.Assert(err, qt.IsNil)
	res, err := cp.Select(cond, a5, a2, ledgerAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(decryptHandle(c, cp, priv, res), qt.Equals, uint64(5))
}

func TestAccessControl(t *testing.T) {
	c := qt.New(t)
	cp, _ := newTestCoprocessor(c)

	h, err := cp.TrivialEncrypt(0, ledgerAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(cp.IsAllowed(h, ledgerAddr), qt.IsTrue)

	// other accounts cannot operate on the handle nor grant access to it
	_, err = cp.AddPlain(h, 1, voterA)
	c.Assert(err, qt.ErrorIs, ErrAccessDenied)
	c.Assert(cp.Allow(h, voterA, voterA), qt.ErrorIs, ErrAccessDenied)
	c.Assert(cp.MakePubliclyDecryptable(h, voterA), qt.ErrorIs, ErrAccessDenied)

	// transient access is dropped unless made permanent
	cp.ClearTransient(ledgerAddr)
	_, err = cp.AddPlain(h, 1, ledgerAddr)
	c.Assert(err, qt.ErrorIs, ErrAccessDenied)

	h2, err := cp.TrivialEncrypt(0, ledgerAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(cp.Allow(h2, ledgerAddr, ledgerAddr), qt.IsNil)
	c.Assert(cp.Allow(h2, voterA, ledgerAddr), qt.IsNil)
	cp.ClearTransient(ledgerAddr)
	_, err = cp.AddPlain(h2, 1, ledgerAddr)
	c.Assert(err, qt.IsNil)
	_, err = cp.AddPlain(h2, 1, voterA)
	c.Assert(err, qt.IsNil)

	_, err = cp.AddPlain(types.Handle{1}, 1, ledgerAddr)
	c.Assert(err, qt.ErrorIs, ErrUnknownHandle)
}

func TestHandleSequencePersists(t *testing.T) {
	c := qt.New(t)
	pub, _, err := elgamal.GenerateKey(bjj.New())
	c.Assert(err, qt.IsNil)
	database := metadb.NewTest(t)

	cp, err := NewCoprocessor(database, pub)
	c.Assert(err, qt.IsNil)
	first, err := cp.TrivialEncrypt(0, ledgerAddr)
	c.Assert(err, qt.IsNil)

	reopened, err := NewCoprocessor(database, pub)
	c.Assert(err, qt.IsNil)
	c.Assert(reopened.seq, qt.Equals, uint64(1))
	second, err := reopened.TrivialEncrypt(0, ledgerAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.Not(qt.Equals), first)
}

func TestRevokePublicDecryption(t *testing.T) {
	c := qt.New(t)
	cp, _ := newTestCoprocessor(c)
	yes, _ := newCounters(c, cp)

	c.Assert(cp.RevokePublicDecryption(yes, voterA), qt.ErrorIs, ErrAccessDenied)
	// revoking a private handle is a no-op
	c.Assert(cp.RevokePublicDecryption(yes, ledgerAddr), qt.IsNil)

	c.Assert(cp.MakePubliclyDecryptable(yes, ledgerAddr), qt.IsNil)
	_, err := cp.Ciphertext(yes)
	c.Assert(err, qt.IsNil)

	c.Assert(cp.RevokePublicDecryption(yes, ledgerAddr), qt.IsNil)
	public, err := cp.IsPubliclyDecryptable(yes)
	c.Assert(err, qt.IsNil)
	c.Assert(public, qt.IsFalse)
	_, err = cp.Ciphertext(yes)
	c.Assert(err, qt.ErrorIs, ErrNotDecryptable)

	_, err = cp.IsPubliclyDecryptable(types.Handle{0x01})
	c.Assert(err, qt.ErrorIs, ErrUnknownHandle)
	c.Assert(cp.RevokePublicDecryption(types.Handle{0x01}, ledgerAddr), qt.ErrorIs, ErrUnknownHandle)
}
