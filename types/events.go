package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names the observations emitted by the ledger.
type EventType string

const (
	EventProposalCreated  EventType = "ProposalCreated"
	EventVoteCast         EventType = "VoteCast"
	EventDecryptionReady  EventType = "DecryptionReady"
	EventResultsDecrypted EventType = "ResultsDecrypted"
)

// Event is a single observation of the ledger. Only the fields relevant to
// its type are set: ProposalCreated carries Title, Creator and End; VoteCast
// carries Voter; DecryptionReady carries the handles; ResultsDecrypted
// carries Yes and No. A vote choice is never part of an event.
type Event struct {
	Seq        uint64         `json:"seq"                 cbor:"0,keyasint,omitempty"`
	Type       EventType      `json:"type"                cbor:"1,keyasint,omitempty"`
	ProposalID uint64         `json:"proposalId"          cbor:"2,keyasint,omitempty"`
	Title      string         `json:"title,omitempty"     cbor:"3,keyasint,omitempty"`
	Creator    common.Address `json:"creator"             cbor:"4,keyasint,omitempty"`
	End        time.Time      `json:"end"                 cbor:"5,keyasint,omitempty"`
	Voter      common.Address `json:"voter"               cbor:"6,keyasint,omitempty"`
	YesHandle  Handle         `json:"yesHandle"           cbor:"7,keyasint,omitempty"`
	NoHandle   Handle         `json:"noHandle"            cbor:"8,keyasint,omitempty"`
	Yes        uint64         `json:"yes"                 cbor:"9,keyasint,omitempty"`
	No         uint64         `json:"no"                  cbor:"10,keyasint,omitempty"`
	Time       time.Time      `json:"time"                cbor:"11,keyasint,omitempty"`
}
