// Package storage persists the ledger artifacts in a prefixed key-value
// store. Every artifact is CBOR encoded with deterministic options. The
// following prefixes are used:
//   - 'p/' for proposals
//   - 'c/' for the private working counters
//   - 'v/' for vote records
//   - 'e/' for the event log
//   - 'n/' for metadata (next proposal id, next event sequence, keys)
//   - 't/<id>/' for the voters tree of each proposal
//
// Operations that change the ledger state write all their artifacts in a
// single write transaction, so a failure leaves nothing visible.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/state"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	proposalPrefix = []byte("p/")
	countersPrefix = []byte("c/")
	votePrefix     = []byte("v/")
	eventPrefix    = []byte("e/")
	metaPrefix     = []byte("n/")

	nextProposalKey  = []byte("nextProposal")
	nextEventKey     = []byte("nextEvent")
	committeeKeysKey = []byte("committee")
)

var (
	// ErrNotFound is returned when an artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when an artifact that must be unique is already stored.
	ErrExists = errors.New("already exists")
)

// Storage wraps the database with the artifact accessors of the ledger.
type Storage struct {
	db      db.Database
	encMode cbor.EncMode

	treesLock sync.Mutex
	trees     map[uint64]*state.VotersTree
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		// the core deterministic options are always valid
		panic(err)
	}
	return &Storage{
		db:      database,
		encMode: encMode,
		trees:   make(map[uint64]*state.VotersTree),
	}
}

// DB returns the underlying database.
func (s *Storage) DB() db.Database {
	return s.db
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("cannot close database", "error", err.Error())
	}
}

// VotersTree returns the voters tree of a proposal.
func (s *Storage) VotersTree(proposalID uint64) (*state.VotersTree, error) {
	s.treesLock.Lock()
	defer s.treesLock.Unlock()
	if t, ok := s.trees[proposalID]; ok {
		return t, nil
	}
	t, err := state.OpenVotersTree(s.db, proposalID)
	if err != nil {
		return nil, err
	}
	s.trees[proposalID] = t
	return t, nil
}

func (s *Storage) encodeArtifact(a any) ([]byte, error) {
	data, err := s.encMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func decodeArtifact(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// getArtifact reads the artifact stored under prefix/key into out. It
// returns ErrNotFound if there is no such key.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return decodeArtifact(data, out)
}

// setArtifactTx encodes a and writes it under prefix/key within wTx.
func (s *Storage) setArtifactTx(wTx db.WriteTx, prefix, key []byte, a any) error {
	data, err := s.encodeArtifact(a)
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(wTx, prefix).Set(key, data)
}

// hasKeyTx reports whether prefix/key exists, reading through wTx.
func hasKeyTx(wTx db.WriteTx, prefix, key []byte) (bool, error) {
	_, err := prefixeddb.NewPrefixedWriteTx(wTx, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
