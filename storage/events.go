package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db"
)

func eventKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// appendEventTx assigns the next sequence number to ev and writes it within
// wTx. A nil event is ignored.
func (s *Storage) appendEventTx(wTx db.WriteTx, ev *types.Event) error {
	if ev == nil {
		return nil
	}
	last, err := getUint64Tx(wTx, nextEventKey)
	if err != nil {
		return err
	}
	ev.Seq = last + 1
	if err := s.setArtifactTx(wTx, eventPrefix, eventKey(ev.Seq), ev); err != nil {
		return fmt.Errorf("set event: %w", err)
	}
	return setUint64Tx(wTx, nextEventKey, ev.Seq)
}

// LastEventSeq returns the sequence number of the last event, zero if the
// log is empty.
func (s *Storage) LastEventSeq() (uint64, error) {
	return s.getUint64(nextEventKey)
}

// Event returns the event with the given sequence number, or ErrNotFound.
func (s *Storage) Event(seq uint64) (*types.Event, error) {
	ev := &types.Event{}
	if err := s.getArtifact(eventPrefix, eventKey(seq), ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Events returns up to limit events starting at sequence number from. A
// non-positive limit returns every event after from.
func (s *Storage) Events(from uint64, limit int) ([]*types.Event, error) {
	if from == 0 {
		from = 1
	}
	var events []*types.Event
	for seq := from; limit <= 0 || len(events) < limit; seq++ {
		ev, err := s.Event(seq)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
