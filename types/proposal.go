package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProposalStatus is the lifecycle position of a proposal. The numeric values
// match the uint8 status of the SilentVote contract.
type ProposalStatus uint8

const (
	ProposalActive ProposalStatus = iota
	ProposalPendingDecryption
	ProposalDecrypted
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalActive:
		return "active"
	case ProposalPendingDecryption:
		return "pendingDecryption"
	case ProposalDecrypted:
		return "decrypted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Proposal is the public snapshot of a proposal. YesHandle and NoHandle are
// zero until the decryption gate publishes them, and the decrypted totals are
// only meaningful once the status is ProposalDecrypted.
type Proposal struct {
	ID           uint64         `json:"id"           cbor:"0,keyasint,omitempty"`
	Title        string         `json:"title"        cbor:"1,keyasint,omitempty"`
	Creator      common.Address `json:"creator"      cbor:"2,keyasint,omitempty"`
	StartTime    time.Time      `json:"startTime"    cbor:"3,keyasint,omitempty"`
	EndTime      time.Time      `json:"endTime"      cbor:"4,keyasint,omitempty"`
	Status       ProposalStatus `json:"status"       cbor:"5,keyasint,omitempty"`
	YesHandle    Handle         `json:"yesHandle"    cbor:"6,keyasint,omitempty"`
	NoHandle     Handle         `json:"noHandle"     cbor:"7,keyasint,omitempty"`
	DecryptedYes uint64         `json:"decryptedYes" cbor:"8,keyasint,omitempty"`
	DecryptedNo  uint64         `json:"decryptedNo"  cbor:"9,keyasint,omitempty"`
	VoteCount    uint64         `json:"voteCount"    cbor:"10,keyasint,omitempty"`
}

func (p *Proposal) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Counters holds the working encrypted counters of a proposal. They are
// private to the ledger until the gate opens.
type Counters struct {
	Yes Handle `cbor:"0,keyasint,omitempty"`
	No  Handle `cbor:"1,keyasint,omitempty"`
}

// VoteRecord is the persisted fact that an address voted on a proposal. The
// choice is only referenced through the validated ballot handle.
type VoteRecord struct {
	ProposalID uint64         `json:"proposalId" cbor:"0,keyasint,omitempty"`
	Voter      common.Address `json:"voter"      cbor:"1,keyasint,omitempty"`
	Ballot     Handle         `json:"ballot"     cbor:"2,keyasint,omitempty"`
	Time       time.Time      `json:"time"       cbor:"3,keyasint,omitempty"`
}

// VoterProof is a merkle proof of inclusion (or exclusion) of a voter in the
// voters tree of a proposal.
type VoterProof struct {
	Root     HexBytes `json:"root"`
	Key      HexBytes `json:"key"`
	Value    HexBytes `json:"value"`
	Siblings HexBytes `json:"siblings"`
	Exists   bool     `json:"exists"`
}

// Results is a view of the decrypted totals of a proposal. Official is true
// only when the totals were finalized on the ledger.
type Results struct {
	ProposalID uint64         `json:"proposalId"`
	Yes        uint64         `json:"yes"`
	No         uint64         `json:"no"`
	Official   bool           `json:"official"`
	Status     ProposalStatus `json:"status"`
	Outcome    string         `json:"outcome"`
}

// Outcome labels a tally.
func Outcome(yes, no uint64) string {
	switch {
	case yes == 0 && no == 0:
		return "No votes"
	case yes > no:
		return "Passed"
	case no > yes:
		return "Rejected"
	default:
		return "Tied"
	}
}

// ProposalIDBytes returns the big-endian key of a proposal id.
func ProposalIDBytes(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// ProposalIDFromBytes decodes a key produced by ProposalIDBytes.
func ProposalIDFromBytes(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid proposal id length: %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
