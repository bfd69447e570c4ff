// Package fhe defines the encrypted computation capabilities consumed by the
// tally ledger and provides an implementation based on exponential ElGamal.
//
// Values live in a coprocessor and are referenced by 32 byte handles. The
// ledger never sees a ciphertext: it asks the coprocessor to validate client
// inputs, to combine handles, to keep access to the handles it owns and, once
// voting is over, to flag handles as publicly decryptable so that the
// decryption oracle will serve them.
package fhe

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/types"
)

var (
	// ErrInvalidProof is returned when an encrypted input does not match its proof.
	ErrInvalidProof = errors.New("invalid input proof")
	// ErrUnknownHandle is returned when a handle does not reference a ciphertext.
	ErrUnknownHandle = errors.New("unknown handle")
	// ErrAccessDenied is returned when the caller is not allowed to use a handle.
	ErrAccessDenied = errors.New("access denied to handle")
	// ErrTypeMismatch is returned when an operand has the wrong value type.
	ErrTypeMismatch = errors.New("handle type mismatch")
	// ErrUnsupportedSelect is returned when the select operands cannot be
	// combined by the backend.
	ErrUnsupportedSelect = errors.New("unsupported select operands")
	// ErrNotDecryptable is returned when a handle was not made publicly decryptable.
	ErrNotDecryptable = errors.New("handle is not publicly decryptable")
)

// Coprocessor is the set of encrypted operations used by the ledger. The
// caller argument identifies the account performing the operation, which
// must be allowed on every operand. Results are allowed to the caller until
// ClearTransient is called; Allow makes the access permanent.
type Coprocessor interface {
	// Validate checks an encrypted boolean input submitted by user against
	// its proof and returns the handle of the validated value.
	Validate(input types.Handle, proof []byte, caller, user common.Address) (types.Handle, error)
	// TrivialEncrypt returns a handle to a public encryption of value.
	TrivialEncrypt(value uint64, caller common.Address) (types.Handle, error)
	// Select returns a handle to ifTrue when cond holds and to ifFalse
	// otherwise. The work done is the same for both outcomes.
	Select(cond, ifTrue, ifFalse types.Handle, caller common.Address) (types.Handle, error)
	// AddPlain returns a handle to counter + value.
	AddPlain(counter types.Handle, value uint64, caller common.Address) (types.Handle, error)
	// Allow grants account permanent access to h.
	Allow(h types.Handle, account, caller common.Address) error
	// MakePubliclyDecryptable flags h so that anyone may request its plaintext.
	MakePubliclyDecryptable(h types.Handle, caller common.Address) error
	// RevokePublicDecryption clears the public flag of h. It undoes a
	// MakePubliclyDecryptable whose outcome could not be recorded.
	RevokePublicDecryption(h types.Handle, caller common.Address) error
	// ClearTransient drops the temporary allowances of caller.
	ClearTransient(caller common.Address)
}

// DecryptionVerifier checks that cleartexts are the genuine plaintexts of
// handles, as attested by proof.
type DecryptionVerifier interface {
	VerifyDecryptionProof(handles []types.Handle, cleartexts []uint64, proof []byte) error
}
