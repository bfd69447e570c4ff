package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db/metadb"
)

const testChainID = 11155111

var owner = common.HexToAddress("0x5afe000000000000000000000000000000000001")

func newTestRelayer(c *qt.C) (*httptest.Server, *oracle.Committee, *fhe.ElGamalCoprocessor) {
	committee, err := oracle.NewCommittee(3, 2)
	c.Assert(err, qt.IsNil)
	cp, err := fhe.NewCoprocessor(metadb.NewTest(c.TB), committee.PublicKey())
	c.Assert(err, qt.IsNil)
	relayer := oracle.NewRelayer(oracle.NewKMS(committee, cp, 1000), testChainID)
	srv := httptest.NewServer(relayer.Router())
	c.Cleanup(srv.Close)
	return srv, committee, cp
}

func publicHandle(c *qt.C, cp *fhe.ElGamalCoprocessor, v uint64, public bool) types.Handle {
	h, err := cp.TrivialEncrypt(v, owner)
	c.Assert(err, qt.IsNil)
	if public {
		c.Assert(cp.MakePubliclyDecryptable(h, owner), qt.IsNil)
	}
	return h
}

func TestPublicDecrypt(t *testing.T) {
	c := qt.New(t)
	srv, committee, cp := newTestRelayer(c)

	cli, err := New(srv.URL, testChainID)
	c.Assert(err, qt.IsNil)
	cli.SetVerifier(committee.Verifier())

	handles := []types.Handle{publicHandle(c, cp, 1, true), publicHandle(c, cp, 1, true)}
	dec, err := cli.PublicDecrypt(context.Background(), handles)
	c.Assert(err, qt.IsNil)
	c.Assert(dec.Values, qt.DeepEquals, []uint64{1, 1})
	c.Assert(dec.Signatures, qt.HasLen, 2)
	c.Assert(committee.Verifier().VerifyDecryptionProof(handles, dec.Values, dec.Proof), qt.IsNil)

	// a private handle is refused by the relayer
	_, err = cli.PublicDecrypt(context.Background(), []types.Handle{publicHandle(c, cp, 0, false)})
	c.Assert(err, qt.ErrorIs, ErrNotAllowed)

	// another chain is rejected
	other, err := New(srv.URL, 1)
	c.Assert(err, qt.IsNil)
	_, err = other.PublicDecrypt(context.Background(), handles)
	c.Assert(err, qt.ErrorMatches, "relayer error: 400.*unsupported chain id.*")
}

func TestUntrustedRelayer(t *testing.T) {
	c := qt.New(t)
	srv, _, cp := newTestRelayer(c)

	// signatures from another committee do not verify
	stranger, err := oracle.NewCommittee(3, 2)
	c.Assert(err, qt.IsNil)
	cli, err := New(srv.URL, testChainID)
	c.Assert(err, qt.IsNil)
	cli.SetVerifier(stranger.Verifier())
	_, err = cli.PublicDecrypt(context.Background(), []types.Handle{publicHandle(c, cp, 2, true)})
	c.Assert(err, qt.ErrorIs, ErrUnverifiedResult)
}

func TestFailFast(t *testing.T) {
	c := qt.New(t)

	calls := 0
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "Web server is returning an unknown error", 520)
	}))
	defer down.Close()
	cli, err := New(down.URL, testChainID)
	c.Assert(err, qt.IsNil)
	_, err = cli.PublicDecrypt(context.Background(), []types.Handle{{1}})
	c.Assert(err, qt.ErrorIs, ErrRelayerDown)
	c.Assert(calls, qt.Equals, 1)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	cli, err = New(slow.URL, testChainID)
	c.Assert(err, qt.IsNil)
	cli.SetTimeout(50 * time.Millisecond)
	_, err = cli.PublicDecrypt(context.Background(), []types.Handle{{1}})
	c.Assert(err, qt.ErrorIs, ErrTimeout)

	_, err = New("not a url", testChainID)
	c.Assert(err, qt.IsNotNil)
}

func TestParseResponse(t *testing.T) {
	c := qt.New(t)
	h1 := types.NewHandle([]byte{1}, types.ValueTypeUint64)
	h2 := types.NewHandle([]byte{2}, types.ValueTypeUint64)
	handles := []types.Handle{h1, h2}

	words := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000003" +
		"0000000000000000000000000000000000000000000000000000000000000001"
	dec, err := ParseResponse(handles, &oracle.PublicDecryptResponse{
		Response: []oracle.DecryptedValue{{DecryptedValue: words}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(dec.Values, qt.DeepEquals, []uint64{3, 1})
	c.Assert(dec.Proof, qt.IsNil)

	dec, err = ParseResponse(handles, &oracle.PublicDecryptResponse{
		ClearValues: map[string]string{h1.String(): "7", h2.String(): "0"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(dec.Values, qt.DeepEquals, []uint64{7, 0})

	dec, err = ParseResponse(handles, &oracle.PublicDecryptResponse{
		DecryptedValues: map[string]string{h1.String(): "0x02", h2.String(): "5"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(dec.Values, qt.DeepEquals, []uint64{2, 5})

	_, err = ParseResponse(handles, &oracle.PublicDecryptResponse{
		ClearValues: map[string]string{h1.String(): "7"},
	})
	c.Assert(err, qt.ErrorIs, ErrMalformedResponse)
	_, err = ParseResponse(handles, &oracle.PublicDecryptResponse{
		Response: []oracle.DecryptedValue{{DecryptedValue: "0x0003"}},
	})
	c.Assert(err, qt.ErrorIs, ErrMalformedResponse)
	_, err = ParseResponse(handles, &oracle.PublicDecryptResponse{})
	c.Assert(err, qt.ErrorIs, ErrMalformedResponse)
}
