package fhe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/crypto/elgamal"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// operation codes mixed into the handle digests
const (
	opInput byte = iota + 1
	opTrivial
	opAdd
	opSelect
)

var (
	ciphertextPrefix = []byte("ct/")
	aclPrefix        = []byte("acl/")
	metaPrefix       = []byte("n/")

	seqKey = []byte("seq")
)

// record is the stored form of a ciphertext. Root and Offset track the
// lineage of additive results: the plaintext behind the record equals the
// plaintext behind Root plus Offset. Select relies on it to combine operands.
type record struct {
	Ciphertext []byte          `cbor:"0,keyasint,omitempty"`
	Type       types.ValueType `cbor:"1,keyasint,omitempty"`
	Root       types.Handle    `cbor:"2,keyasint,omitempty"`
	Offset     uint64          `cbor:"3,keyasint,omitempty"`
	Public     bool            `cbor:"4,keyasint,omitempty"`
}

// ElGamalCoprocessor implements Coprocessor with exponential ElGamal
// ciphertexts under a threshold public key. It can add known values, select
// between operands of the same lineage and never decrypts anything: public
// decryption is left to the key holders.
type ElGamalCoprocessor struct {
	db        db.Database
	publicKey ecc.Point
	encMode   cbor.EncMode

	mu        sync.RWMutex
	seq       uint64
	transient map[common.Address]map[types.Handle]struct{}
}

var _ Coprocessor = (*ElGamalCoprocessor)(nil)

// NewCoprocessor returns a coprocessor that stores its ciphertexts in
// database and encrypts under publicKey.
func NewCoprocessor(database db.Database, publicKey ecc.Point) (*ElGamalCoprocessor, error) {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cannot create cbor encoder: %w", err)
	}
	cp := &ElGamalCoprocessor{
		db:        database,
		publicKey: publicKey,
		encMode:   encMode,
		transient: make(map[common.Address]map[types.Handle]struct{}),
	}
	seq, err := prefixeddb.NewPrefixedReader(database, metaPrefix).Get(seqKey)
	switch {
	case err == nil:
		cp.seq = binary.BigEndian.Uint64(seq)
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return nil, fmt.Errorf("cannot read handle sequence: %w", err)
	}
	return cp, nil
}

// PublicKey returns the encryption key of the coprocessor.
func (cp *ElGamalCoprocessor) PublicKey() ecc.Point {
	return cp.publicKey
}

// Validate implements Coprocessor.
func (cp *ElGamalCoprocessor) Validate(input types.Handle, proof []byte, caller, user common.Address) (types.Handle, error) {
	ct, bitProof, err := parseInputProof(cp.publicKey, proof)
	if err != nil {
		return types.Handle{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if input.Type() != types.ValueTypeBool {
		return types.Handle{}, fmt.Errorf("%w: input is %s", ErrInvalidProof, input.Type())
	}
	if InputHandle(ct.Serialize(), caller, user) != input {
		return types.Handle{}, fmt.Errorf("%w: handle does not match ciphertext", ErrInvalidProof)
	}
	if err := bitProof.Verify(cp.publicKey, ct, inputContext(caller, user)...); err != nil {
		return types.Handle{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	if _, err := cp.record(input); errors.Is(err, ErrUnknownHandle) {
		rec := &record{Ciphertext: ct.Serialize(), Type: types.ValueTypeBool, Root: input}
		if err := cp.store(input, rec, false); err != nil {
			return types.Handle{}, err
		}
	} else if err != nil {
		return types.Handle{}, err
	}
	cp.allowTransient(input, caller)
	return input, nil
}

// TrivialEncrypt implements Coprocessor.
func (cp *ElGamalCoprocessor) TrivialEncrypt(value uint64, caller common.Address) (types.Handle, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	ct := elgamal.NewCiphertext(cp.publicKey).Trivial(value)
	h := cp.nextHandle(types.ValueTypeUint64, opTrivial, ct.Serialize())
	if err := cp.store(h, &record{Ciphertext: ct.Serialize(), Type: types.ValueTypeUint64, Root: h}, true); err != nil {
		return types.Handle{}, err
	}
	cp.allowTransient(h, caller)
	return h, nil
}

// AddPlain implements Coprocessor.
func (cp *ElGamalCoprocessor) AddPlain(counter types.Handle, value uint64, caller common.Address) (types.Handle, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	rec, err := cp.operand(counter, caller, types.ValueTypeUint64)
	if err != nil {
		return types.Handle{}, err
	}
	ct, err := cp.ciphertext(rec)
	if err != nil {
		return types.Handle{}, err
	}
	sum := elgamal.NewCiphertext(cp.publicKey).AddPlain(ct, new(big.Int).SetUint64(value))
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], value)
	h := cp.nextHandle(types.ValueTypeUint64, opAdd, counter[:], v[:])
	res := &record{
		Ciphertext: sum.Serialize(),
		Type:       types.ValueTypeUint64,
		Root:       rec.Root,
		Offset:     rec.Offset + value,
	}
	if err := cp.store(h, res, true); err != nil {
		return types.Handle{}, err
	}
	cp.allowTransient(h, caller)
	return h, nil
}

// Select implements Coprocessor. With ifTrue = ifFalse + d for a known d, the
// result is computed as ifFalse + d*cond, so both outcomes take the same
// operations. Operands that do not share a lineage root are rejected with
// ErrUnsupportedSelect.
func (cp *ElGamalCoprocessor) Select(cond, ifTrue, ifFalse types.Handle, caller common.Address) (types.Handle, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	condRec, err := cp.operand(cond, caller, types.ValueTypeBool)
	if err != nil {
		return types.Handle{}, err
	}
	a, err := cp.operand(ifTrue, caller, types.ValueTypeUint64)
	if err != nil {
		return types.Handle{}, err
	}
	b, err := cp.operand(ifFalse, caller, types.ValueTypeUint64)
	if err != nil {
		return types.Handle{}, err
	}
	if a.Root != b.Root {
		return types.Handle{}, ErrUnsupportedSelect
	}
	condCt, err := cp.ciphertext(condRec)
	if err != nil {
		return types.Handle{}, err
	}
	bCt, err := cp.ciphertext(b)
	if err != nil {
		return types.Handle{}, err
	}
	d := new(big.Int).Sub(new(big.Int).SetUint64(a.Offset), new(big.Int).SetUint64(b.Offset))
	scaled := elgamal.NewCiphertext(cp.publicKey).ScalarMult(condCt, d)
	res := elgamal.NewCiphertext(cp.publicKey).Add(bCt, scaled)

	h := cp.nextHandle(types.ValueTypeUint64, opSelect, cond[:], ifTrue[:], ifFalse[:])
	if err := cp.store(h, &record{Ciphertext: res.Serialize(), Type: types.ValueTypeUint64, Root: h}, true); err != nil {
		return types.Handle{}, err
	}
	cp.allowTransient(h, caller)
	return h, nil
}

// MakePubliclyDecryptable implements Coprocessor.
func (cp *ElGamalCoprocessor) MakePubliclyDecryptable(h types.Handle, caller common.Address) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	rec, err := cp.record(h)
	if err != nil {
		return err
	}
	if !cp.isAllowed(h, caller) {
		return fmt.Errorf("%w: %s for %s", ErrAccessDenied, h, caller)
	}
	if rec.Public {
		return nil
	}
	rec.Public = true
	if err := cp.store(h, rec, false); err != nil {
		return err
	}
	log.Debugw("handle made publicly decryptable", "handle", h.String())
	return nil
}

// RevokePublicDecryption implements Coprocessor.
func (cp *ElGamalCoprocessor) RevokePublicDecryption(h types.Handle, caller common.Address) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	rec, err := cp.record(h)
	if err != nil {
		return err
	}
	if !cp.isAllowed(h, caller) {
		return fmt.Errorf("%w: %s for %s", ErrAccessDenied, h, caller)
	}
	if !rec.Public {
		return nil
	}
	rec.Public = false
	if err := cp.store(h, rec, false); err != nil {
		return err
	}
	log.Debugw("public decryption revoked", "handle", h.String())
	return nil
}

// IsPubliclyDecryptable reports whether h was flagged for public decryption.
func (cp *ElGamalCoprocessor) IsPubliclyDecryptable(h types.Handle) (bool, error) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	rec, err := cp.record(h)
	if err != nil {
		return false, err
	}
	return rec.Public, nil
}

// Ciphertext returns the ciphertext behind a publicly decryptable handle.
func (cp *ElGamalCoprocessor) Ciphertext(h types.Handle) (*elgamal.Ciphertext, error) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	rec, err := cp.record(h)
	if err != nil {
		return nil, err
	}
	if !rec.Public {
		return nil, fmt.Errorf("%w: %s", ErrNotDecryptable, h)
	}
	return cp.ciphertext(rec)
}

// operand loads the record of h and checks that caller may use it and that
// it holds a value of type t.
func (cp *ElGamalCoprocessor) operand(h types.Handle, caller common.Address, t types.ValueType) (*record, error) {
	rec, err := cp.record(h)
	if err != nil {
		return nil, err
	}
	if !cp.isAllowed(h, caller) {
		return nil, fmt.Errorf("%w: %s for %s", ErrAccessDenied, h, caller)
	}
	if rec.Type != t {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrTypeMismatch, h, rec.Type, t)
	}
	return rec, nil
}

func (cp *ElGamalCoprocessor) record(h types.Handle) (*record, error) {
	data, err := prefixeddb.NewPrefixedReader(cp.db, ciphertextPrefix).Get(h[:])
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if err != nil {
		return nil, err
	}
	rec := &record{}
	if err := cbor.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("cannot decode ciphertext record: %w", err)
	}
	return rec, nil
}

func (cp *ElGamalCoprocessor) ciphertext(rec *record) (*elgamal.Ciphertext, error) {
	ct := elgamal.NewCiphertext(cp.publicKey)
	if err := ct.Deserialize(rec.Ciphertext); err != nil {
		return nil, fmt.Errorf("corrupted ciphertext record: %w", err)
	}
	return ct, nil
}

// store writes rec under h. When bumpSeq is set the handle sequence is
// persisted in the same transaction.
func (cp *ElGamalCoprocessor) store(h types.Handle, rec *record, bumpSeq bool) error {
	data, err := cp.encMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot encode ciphertext record: %w", err)
	}
	tx := cp.db.WriteTx()
	defer tx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(tx, ciphertextPrefix).Set(h[:], data); err != nil {
		return err
	}
	if bumpSeq {
		seq := make([]byte, 8)
		binary.BigEndian.PutUint64(seq, cp.seq)
		if err := prefixeddb.NewPrefixedWriteTx(tx, metaPrefix).Set(seqKey, seq); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// nextHandle derives a fresh handle from the operation, its operands and
// the next sequence number.
func (cp *ElGamalCoprocessor) nextHandle(t types.ValueType, op byte, operands ...[]byte) types.Handle {
	cp.seq++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], cp.seq)
	data := append([][]byte{{op}}, operands...)
	data = append(data, seq[:])
	return types.NewHandle(ethcrypto.Keccak256(data...), t)
}
