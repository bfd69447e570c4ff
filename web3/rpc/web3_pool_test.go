package rpc

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestWeb3Iterator(t *testing.T) {
	c := qt.New(t)
	it := NewWeb3Iterator(&Web3Endpoint{URI: "a"}, &Web3Endpoint{URI: "b"})
	it.Add(&Web3Endpoint{URI: "c"})

	var seen []string
	for range 3 {
		e, err := it.Next()
		c.Assert(err, qt.IsNil)
		seen = append(seen, e.URI)
	}
	c.Assert(seen, qt.DeepEquals, []string{"a", "b", "c"})

	it.Disable("b")
	c.Assert(it.Available(), qt.Equals, 2)
	c.Assert(it.Disabled(), qt.Equals, 1)
	for range 4 {
		e, err := it.Next()
		c.Assert(err, qt.IsNil)
		c.Assert(e.URI, qt.Not(qt.Equals), "b")
	}

	// all disabled enables them again
	it.Disable("a")
	it.Disable("c")
	e, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(e, qt.IsNotNil)
	c.Assert(it.Disabled(), qt.Equals, 0)

	_, err = NewWeb3Iterator().Next()
	c.Assert(err, qt.ErrorMatches, "no endpoints")
}

func TestWeb3PoolUnknownChain(t *testing.T) {
	c := qt.New(t)
	pool := NewWeb3Pool()
	_, err := pool.Client(1)
	c.Assert(err, qt.ErrorMatches, "error getting endpoint for chainID 1.*")
	c.Assert(pool.NumberOfEndpoints(1, false), qt.Equals, 0)
}
