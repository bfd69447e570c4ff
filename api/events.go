package api

import (
	"net/http"
)

// events returns a page of the event log
// GET /events?from=N&limit=M
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	from, err := queryUint(r, FromQueryParam, 1)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	limit, err := queryUint(r, LimitQueryParam, DefaultEventPage)
	if err != nil {
		err.(Error).Write(w)
		return
	}
	if limit == 0 || limit > MaxEventPage {
		limit = MaxEventPage
	}
	if from == 0 {
		from = 1
	}
	events, err := a.ledger.Events(from, int(limit))
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	next := from
	if len(events) > 0 {
		next = events[len(events)-1].Seq + 1
	}
	httpWriteJSON(w, &EventList{Events: events, Next: next})
}
