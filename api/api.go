// Package api exposes the ledger over HTTP. Every operation of the ledger has
// an endpoint, errors are returned as JSON documents carrying a stable code.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/silentvote/crypto/ecc"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/tally"
	"github.com/vocdoni/silentvote/types"
)

// ResultsSource provides the results view of a proposal.
type ResultsSource interface {
	Results(ctx context.Context, proposalID uint64) (*types.Results, error)
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host string
	Port int
	// Ledger is the tally ledger served by the API.
	Ledger *tally.Ledger
	// Results is optional. Without it the results endpoint only serves
	// decrypted proposals.
	Results ResultsSource
	// EncryptionKey is the public key voters encrypt their choice with.
	EncryptionKey ecc.Point
	ChainID       uint64
	// Contract and ContractResults are set together to serve the proposals
	// of an on-chain deployment under the /contract routes.
	Contract        ContractSource
	ContractResults ResultsSource
}

// API type represents the API HTTP server.
type API struct {
	router          *chi.Mux
	ledger          *tally.Ledger
	results         ResultsSource
	contract        ContractSource
	contractResults ResultsSource
	info            *InfoResponse
}

// New creates a new API instance with the given configuration. It does not
// listen, the caller serves Router().
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Ledger == nil {
		return nil, fmt.Errorf("missing ledger instance")
	}
	if conf.EncryptionKey == nil {
		return nil, fmt.Errorf("missing encryption key")
	}
	if (conf.Contract == nil) != (conf.ContractResults == nil) {
		return nil, fmt.Errorf("contract and contract results must be set together")
	}
	a := &API{
		ledger:          conf.Ledger,
		results:         conf.Results,
		contract:        conf.Contract,
		contractResults: conf.ContractResults,
		info: &InfoResponse{
			Address:       conf.Ledger.Address(),
			ChainID:       conf.ChainID,
			EncryptionKey: conf.EncryptionKey.Marshal(),
			Curve:         conf.EncryptionKey.Type(),
		},
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router.
func (a *API) Router() *chi.Mux {
	return a.router
}

// Address returns the ledger address served by the API.
func (a *API) Address() common.Address {
	return a.info.Address
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteJSON(w, a.info)
	})
	log.Infow("register handler", "endpoint", ProposalsEndpoint, "method", "POST")
	a.router.Post(ProposalsEndpoint, a.newProposal)
	log.Infow("register handler", "endpoint", ProposalsEndpoint, "method", "GET")
	a.router.Get(ProposalsEndpoint, a.proposals)
	log.Infow("register handler", "endpoint", ProposalEndpoint, "method", "GET")
	a.router.Get(ProposalEndpoint, a.proposal)
	log.Infow("register handler", "endpoint", ProposalHandlesEndpoint, "method", "GET")
	a.router.Get(ProposalHandlesEndpoint, a.proposalHandles)
	log.Infow("register handler", "endpoint", VoterEndpoint, "method", "GET")
	a.router.Get(VoterEndpoint, a.voter)
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
	log.Infow("register handler", "endpoint", DecryptionEndpoint, "method", "POST")
	a.router.Post(DecryptionEndpoint, a.allowDecryption)
	log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "POST")
	a.router.Post(ResultsEndpoint, a.submitResults)
	log.Infow("register handler", "endpoint", ResultsEndpoint, "method", "GET")
	a.router.Get(ResultsEndpoint, a.proposalResults)
	log.Infow("register handler", "endpoint", EventsEndpoint, "method", "GET")
	a.router.Get(EventsEndpoint, a.events)
	if a.contract != nil {
		a.registerContractHandlers()
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
