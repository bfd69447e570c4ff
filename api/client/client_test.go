package client

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/api"
)

// droppingServer closes the connection of the first failures requests of
// each method without answering.
type droppingServer struct {
	mu       sync.Mutex
	failures int
	requests map[string]int
}

func (s *droppingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == api.PingEndpoint {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mu.Lock()
	s.requests[r.Method]++
	drop := s.requests[r.Method] <= s.failures
	s.mu.Unlock()
	if drop {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"count":0,"ids":[]}`))
}

func (s *droppingServer) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method]
}

func TestRequestRetries(t *testing.T) {
	c := qt.New(t)
	srv := &droppingServer{failures: 1, requests: make(map[string]int)}
	ts := httptest.NewServer(srv)
	c.Cleanup(ts.Close)

	cli, err := New(ts.URL)
	c.Assert(err, qt.IsNil)
	// no connection reuse, so the transport never replays a request itself
	cli.c.Transport = &http.Transport{DisableKeepAlives: true}
	cli.retryDelay = time.Millisecond

	// a lost vote response is reported, never sent twice
	err = cli.Vote(1, &api.Vote{})
	c.Assert(err, qt.IsNotNil)
	c.Assert(srv.count(http.MethodPost), qt.Equals, 1)

	list, err := cli.Proposals()
	c.Assert(err, qt.IsNil)
	c.Assert(list.Count, qt.Equals, uint64(0))
	c.Assert(srv.count(http.MethodGet), qt.Equals, 2)

	cli.SetRetries(1)
	srv.mu.Lock()
	srv.failures = 3
	srv.mu.Unlock()
	_, err = cli.Proposals()
	c.Assert(err, qt.ErrorMatches, "http request failed after 1 attempts: .*")
	c.Assert(srv.count(http.MethodGet), qt.Equals, 3)
}
