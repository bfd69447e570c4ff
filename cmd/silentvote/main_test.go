package main

import (
	"testing"

	qt "github.com/frankban/quicktest"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/silentvote/storage"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestLoadCommittee(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))

	first, err := loadCommittee(stg, 3, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(first.Nodes(), qt.HasLen, 3)

	// the stored committee wins over the requested size
	second, err := loadCommittee(stg, 5, 4)
	c.Assert(err, qt.IsNil)
	c.Assert(second.Nodes(), qt.HasLen, 3)
	c.Assert(second.PublicKey().Equal(first.PublicKey()), qt.IsTrue)
	c.Assert(second.Signers(), qt.DeepEquals, first.Signers())

	_, err = loadCommittee(storage.New(metadb.NewTest(t)), 2, 3)
	c.Assert(err, qt.IsNotNil)
}

func TestApplyEnv(t *testing.T) {
	c := qt.New(t)
	saved := flag.CommandLine
	t.Cleanup(func() { flag.CommandLine = saved })

	flag.CommandLine = flag.NewFlagSet("silentvote", flag.ContinueOnError)
	port := flag.Int("port", 9090, "")
	host := flag.String("host", "0.0.0.0", "")
	c.Assert(flag.CommandLine.Parse([]string{"--host", "127.0.0.1"}), qt.IsNil)

	t.Setenv("SILENTVOTE_PORT", "8080")
	t.Setenv("SILENTVOTE_HOST", "10.0.0.1")
	applyEnv()
	c.Assert(*port, qt.Equals, 8080)
	// command line flags take precedence
	c.Assert(*host, qt.Equals, "127.0.0.1")
}

func TestContractVerifier(t *testing.T) {
	c := qt.New(t)
	signers := []string{
		"0x00000000000000000000000000000000000000a1",
		"0x00000000000000000000000000000000000000a2",
		"0x00000000000000000000000000000000000000a3",
	}
	valid := func() *config {
		return &config{
			contractAddress:   "0x00000000000000000000000000000000000000c1",
			web3rpcs:          []string{"http://127.0.0.1:8545"},
			contractRelayer:   "http://127.0.0.1:9091",
			contractSigners:   signers,
			contractThreshold: 2,
		}
	}

	v, err := contractVerifier(valid())
	c.Assert(err, qt.IsNil)
	c.Assert(v.Threshold(), qt.Equals, 2)

	for _, tc := range []struct {
		name   string
		modify func(*config)
		err    string
	}{
		{"bad address", func(conf *config) { conf.contractAddress = "0xnope" }, "invalid contract address .*"},
		{"no rpc", func(conf *config) { conf.web3rpcs = nil }, "contract mode requires at least one web3 rpc"},
		{"no relayer", func(conf *config) { conf.contractRelayer = "" }, "contract mode requires a contract relayer"},
		{"no signers", func(conf *config) { conf.contractSigners = nil }, "contract mode requires the contract relayer signers"},
		{"bad signer", func(conf *config) { conf.contractSigners = []string{signers[0], "zz"} }, `invalid contract signer "zz"`},
		{"threshold", func(conf *config) { conf.contractThreshold = 4 }, "invalid threshold 4 for 3 signers"},
	} {
		conf := valid()
		tc.modify(conf)
		_, err := contractVerifier(conf)
		c.Assert(err, qt.ErrorMatches, tc.err, qt.Commentf("%s", tc.name))
	}
}
