package api

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/crypto/ethereum"
	"github.com/vocdoni/silentvote/types"
)

// VoteSignatureMessage is the message a voter signs to cast the encrypted
// input on a proposal of the ledger.
func VoteSignatureMessage(ledger common.Address, proposalID uint64, input types.Handle) []byte {
	msg := make([]byte, 0, common.AddressLength+8+types.HandleLength)
	msg = append(msg, ledger.Bytes()...)
	msg = binary.BigEndian.AppendUint64(msg, proposalID)
	return append(msg, input[:]...)
}

// ProposalSignatureMessage is the message a creator signs to open a
// proposal on the ledger.
func ProposalSignatureMessage(ledger common.Address, title string, durationMinutes uint64) []byte {
	msg := make([]byte, 0, common.AddressLength+8+len(title))
	msg = append(msg, ledger.Bytes()...)
	msg = binary.BigEndian.AppendUint64(msg, durationMinutes)
	return append(msg, title...)
}

// Sign sets the voter and the signature of the vote.
func (v *Vote) Sign(signer *ethereum.SignKeys, ledger common.Address, proposalID uint64) error {
	sig, err := signer.SignEthereum(VoteSignatureMessage(ledger, proposalID, v.Handle))
	if err != nil {
		return err
	}
	v.Voter = signer.Address()
	v.Signature = sig
	return nil
}

// Sign sets the creator and the signature of the proposal request.
func (p *NewProposal) Sign(signer *ethereum.SignKeys, ledger common.Address) error {
	sig, err := signer.SignEthereum(ProposalSignatureMessage(ledger, p.Title, p.DurationMinutes))
	if err != nil {
		return err
	}
	p.Creator = signer.Address()
	p.Signature = sig
	return nil
}

// checkSigner returns ErrInvalidSignature unless signature over msg was made
// by expected.
func checkSigner(msg, signature []byte, expected common.Address) error {
	if len(signature) == 0 {
		return ErrInvalidSignature.With("missing signature")
	}
	signer, err := ethereum.AddrFromSignature(msg, signature)
	if err != nil {
		return ErrInvalidSignature.WithErr(err)
	}
	if signer != expected {
		return ErrInvalidSignature.Withf("signed by %s, not %s", signer.Hex(), expected.Hex())
	}
	return nil
}
