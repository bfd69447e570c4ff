package tally

import (
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/types"
)

// Subscribe returns a channel receiving the events emitted from now on and a
// function to cancel the subscription. Delivery never blocks the ledger: when
// the channel is full the event is dropped for that subscriber, which can
// recover it from the event log.
func (l *Ledger) Subscribe() (<-chan *types.Event, func()) {
	l.subsLock.Lock()
	defer l.subsLock.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan *types.Event, l.opts.EventBuffer)
	l.subs[id] = ch
	return ch, func() {
		l.subsLock.Lock()
		defer l.subsLock.Unlock()
		if ch, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
	}
}

func (l *Ledger) emit(ev *types.Event) {
	logEvent(ev)
	l.subsLock.RLock()
	defer l.subsLock.RUnlock()
	for id, ch := range l.subs {
		e := *ev
		select {
		case ch <- &e:
		default:
			log.Warnw("event subscriber is full, dropping event", "subscriber", id, "seq", ev.Seq)
		}
	}
}
