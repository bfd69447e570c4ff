package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vocdoni/silentvote/oracle"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// getUint64Tx reads a metadata counter within wTx. Missing counters are zero.
func getUint64Tx(wTx db.WriteTx, key []byte) (uint64, error) {
	data, err := prefixeddb.NewPrefixedWriteTx(wTx, metaPrefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupted counter %s", key)
	}
	return binary.BigEndian.Uint64(data), nil
}

func setUint64Tx(wTx db.WriteTx, key []byte, v uint64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	return prefixeddb.NewPrefixedWriteTx(wTx, metaPrefix).Set(key, data)
}

// getUint64 reads a metadata counter. Missing counters are zero.
func (s *Storage) getUint64(key []byte) (uint64, error) {
	data, err := prefixeddb.NewPrefixedReader(s.db, metaPrefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupted counter %s", key)
	}
	return binary.BigEndian.Uint64(data), nil
}

// SetCommitteeKeys stores the secrets of the local decryption committee.
func (s *Storage) SetCommitteeKeys(keys *oracle.CommitteeKeys) error {
	if keys == nil {
		return fmt.Errorf("nil committee keys")
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := s.setArtifactTx(wTx, metaPrefix, committeeKeysKey, keys); err != nil {
		return err
	}
	return wTx.Commit()
}

// CommitteeKeys loads the secrets of the local decryption committee. Returns
// ErrNotFound if none were stored.
func (s *Storage) CommitteeKeys() (*oracle.CommitteeKeys, error) {
	keys := &oracle.CommitteeKeys{}
	if err := s.getArtifact(metaPrefix, committeeKeysKey, keys); err != nil {
		return nil, err
	}
	return keys, nil
}
