// Command silentvote runs a SilentVote node: the confidential tally ledger,
// its HTTP API, the decryption gate worker and, optionally, the relayer in
// front of the local decryption committee.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/silentvote/api"
	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/oracle/client"
	"github.com/vocdoni/silentvote/service"
	"github.com/vocdoni/silentvote/storage"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/web3"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const envPrefix = "SILENTVOTE_"

var coprocessorPrefix = []byte("fhe/")

type config struct {
	dataDir         string
	logLevel        string
	logOutput       string
	host            string
	port            int
	oraclePort      int
	relayerURL      string
	chainID         uint64
	ledgerAddress   string
	committeeSize   int
	threshold       int
	maxValue        uint64
	gate            service.GateConfig
	web3rpcs        []string
	contractAddress string
	// contract mode: the relayer serving the contract chain and the
	// committee that signs its decryptions
	contractRelayer   string
	contractSigners   []string
	contractThreshold int
}

func main() {
	conf := loadConfig()
	log.Init(conf.logLevel, conf.logOutput, nil)
	if err := run(conf); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() *config {
	conf := &config{gate: service.DefaultGateConfig()}
	flag.StringVar(&conf.dataDir, "datadir", "", "data directory, the ledger is kept in memory if empty")
	flag.StringVar(&conf.logLevel, "logLevel", log.LogLevelInfo, "log level (debug, info, warn, error)")
	flag.StringVar(&conf.logOutput, "logOutput", "stdout", "log output (stdout, stderr or a file path)")
	flag.StringVar(&conf.host, "host", "0.0.0.0", "API listen host")
	flag.IntVar(&conf.port, "port", 9090, "API listen port")
	flag.IntVar(&conf.oraclePort, "oraclePort", 0, "serve the local committee as a relayer on this port (0 disables it)")
	flag.StringVar(&conf.relayerURL, "relayer", "", "decrypt through the relayer at this url instead of the local committee")
	flag.Uint64Var(&conf.chainID, "chainId", 1, "chain id the decryption proofs are bound to")
	flag.StringVar(&conf.ledgerAddress, "address", tally.DefaultAddress.Hex(), "ledger account address")
	flag.IntVar(&conf.committeeSize, "committeeSize", 3, "number of decryption committee nodes")
	flag.IntVar(&conf.threshold, "threshold", 2, "signatures required on a decryption")
	flag.Uint64Var(&conf.maxValue, "maxValue", 1<<20, "largest counter value the committee decrypts")
	flag.DurationVar(&conf.gate.Interval, "gateInterval", conf.gate.Interval, "interval between decryption gate sweeps")
	flag.BoolVar(&conf.gate.AutoOpen, "gateAutoOpen", conf.gate.AutoOpen, "open the decryption gate of ended proposals")
	flag.BoolVar(&conf.gate.AutoSubmit, "gateAutoSubmit", conf.gate.AutoSubmit, "decrypt and submit the results of pending proposals")
	flag.DurationVar(&conf.gate.OracleTimeout, "oracleTimeout", conf.gate.OracleTimeout, "timeout of each decryption request")
	flag.StringSliceVar(&conf.web3rpcs, "web3rpc", nil, "web3 rpc endpoints of a deployed contract")
	flag.StringVar(&conf.contractAddress, "contract", "", "serve the proposals of the contract deployed at this address under /contract")
	flag.StringVar(&conf.contractRelayer, "contractRelayer", "", "relayer url that decrypts the handles of the contract")
	flag.StringSliceVar(&conf.contractSigners, "contractSigners", nil, "committee addresses that sign the contract relayer decryptions")
	flag.IntVar(&conf.contractThreshold, "contractThreshold", 1, "contract relayer signatures required on a decryption")
	flag.CommandLine.SortFlags = false
	flag.Parse()
	applyEnv()
	return conf
}

// applyEnv sets every flag not given on the command line from its
// SILENTVOTE_<NAME> environment variable.
func applyEnv() {
	flag.VisitAll(func(f *flag.Flag) {
		if f.Changed {
			return
		}
		v, ok := os.LookupEnv(envPrefix + strings.ToUpper(f.Name))
		if !ok {
			return
		}
		if err := flag.Set(f.Name, v); err != nil {
			fmt.Fprintf(os.Stderr, "invalid %s%s: %v\n", envPrefix, strings.ToUpper(f.Name), err)
			os.Exit(2)
		}
	})
}

func openDatabase(dataDir string) (db.Database, error) {
	if dataDir == "" {
		log.Warn("no data directory, the ledger is kept in memory")
		return memdb.New(), nil
	}
	return metadb.New(db.TypePebble, dataDir)
}

// loadCommittee restores the committee persisted in stg or creates and
// persists a new one.
func loadCommittee(stg *storage.Storage, size, threshold int) (*oracle.Committee, error) {
	keys, err := stg.CommitteeKeys()
	switch {
	case err == nil:
		committee, err := oracle.RestoreCommittee(keys)
		if err != nil {
			return nil, fmt.Errorf("cannot restore committee: %w", err)
		}
		log.Infow("committee restored", "nodes", len(committee.Nodes()))
		return committee, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	committee, err := oracle.NewCommittee(size, threshold)
	if err != nil {
		return nil, err
	}
	if err := stg.SetCommitteeKeys(committee.Keys()); err != nil {
		return nil, fmt.Errorf("cannot store committee keys: %w", err)
	}
	log.Infow("committee created", "nodes", size, "threshold", threshold)
	return committee, nil
}

// contractVerifier checks the contract mode flags and returns the verifier
// of the decryptions of the contract relayer. The local committee does not
// hold the key of the contract handles, so its signers cannot be used.
func contractVerifier(conf *config) (*oracle.Verifier, error) {
	if !common.IsHexAddress(conf.contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", conf.contractAddress)
	}
	if len(conf.web3rpcs) == 0 {
		return nil, fmt.Errorf("contract mode requires at least one web3 rpc")
	}
	if conf.contractRelayer == "" {
		return nil, fmt.Errorf("contract mode requires a contract relayer")
	}
	if len(conf.contractSigners) == 0 {
		return nil, fmt.Errorf("contract mode requires the contract relayer signers")
	}
	signers := make([]common.Address, 0, len(conf.contractSigners))
	for _, s := range conf.contractSigners {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid contract signer %q", s)
		}
		signers = append(signers, common.HexToAddress(s))
	}
	return oracle.NewVerifier(signers, conf.contractThreshold)
}

// dialContract binds the contract and the reader of its results, which
// decrypts through the contract relayer.
func dialContract(conf *config, verifier *oracle.Verifier) (*web3.Contract, *service.ResultsReader, error) {
	contract, err := web3.DialContract(common.HexToAddress(conf.contractAddress), conf.web3rpcs...)
	if err != nil {
		return nil, nil, err
	}
	rc, err := client.New(conf.contractRelayer, contract.ChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot reach contract relayer: %w", err)
	}
	rc.SetVerifier(verifier)
	rc.SetTimeout(conf.gate.OracleTimeout)
	log.Infow("following contract",
		"address", contract.Address().Hex(),
		"chainId", contract.ChainID,
		"relayer", conf.contractRelayer,
		"threshold", verifier.Threshold())
	return contract, service.NewResultsReader(contract, rc), nil
}

func run(conf *config) error {
	if !common.IsHexAddress(conf.ledgerAddress) {
		return fmt.Errorf("invalid ledger address %q", conf.ledgerAddress)
	}
	var verifier *oracle.Verifier
	if conf.contractAddress != "" {
		var err error
		if verifier, err = contractVerifier(conf); err != nil {
			return err
		}
	}
	database, err := openDatabase(conf.dataDir)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	stg := storage.New(database)
	defer stg.Close()

	committee, err := loadCommittee(stg, conf.committeeSize, conf.threshold)
	if err != nil {
		return err
	}
	cp, err := fhe.NewCoprocessor(prefixeddb.NewPrefixedDatabase(database, coprocessorPrefix), committee.PublicKey())
	if err != nil {
		return err
	}
	ledger, err := tally.New(stg, cp, committee.Verifier(), &tally.Options{
		Address: common.HexToAddress(conf.ledgerAddress),
	})
	if err != nil {
		return err
	}
	kms := oracle.NewKMS(committee, cp, conf.maxValue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if conf.oraclePort > 0 {
		ors := service.NewOracle(kms, conf.chainID, conf.host, conf.oraclePort)
		if err := ors.Start(ctx); err != nil {
			return err
		}
		defer ors.Stop()
	}

	var decrypter oracle.Decrypter = kms
	if conf.relayerURL != "" {
		rc, err := client.New(conf.relayerURL, conf.chainID)
		if err != nil {
			return err
		}
		rc.SetVerifier(committee.Verifier())
		rc.SetTimeout(conf.gate.OracleTimeout)
		decrypter = rc
		log.Infow("decrypting through relayer", "url", conf.relayerURL)
	}

	apiConf := &api.APIConfig{
		Host:          conf.host,
		Port:          conf.port,
		Ledger:        ledger,
		Results:       service.NewResultsReader(ledger, decrypter),
		EncryptionKey: committee.PublicKey(),
		ChainID:       conf.chainID,
	}
	if verifier != nil {
		contract, contractResults, err := dialContract(conf, verifier)
		if err != nil {
			return err
		}
		apiConf.Contract = contract
		apiConf.ContractResults = contractResults
	}
	apiService := service.NewAPI(apiConf)
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	defer apiService.Stop()

	gate, err := service.NewGate(ledger, decrypter, conf.gate)
	if err != nil {
		return err
	}
	if err := gate.Start(ctx); err != nil {
		return err
	}
	defer gate.Stop()

	log.Infow("silentvote node started",
		"api", apiService.Addr(),
		"address", ledger.Address().Hex(),
		"chainId", strconv.FormatUint(conf.chainID, 10))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infow("received signal, shutting down", "signal", sig.String())
	return nil
}
