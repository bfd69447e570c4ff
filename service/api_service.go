package service

import (
	"context"
	"fmt"

	"github.com/vocdoni/silentvote/api"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	conf   api.APIConfig
	api    *api.API
	server httpServer
}

// NewAPI creates a new APIService instance. The host and port of conf are
// the listening address.
func NewAPI(conf *api.APIConfig) *APIService {
	return &APIService{
		conf:   *conf,
		server: httpServer{name: "api", host: conf.Host, port: conf.Port},
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(_ context.Context) error {
	a, err := api.New(&as.conf)
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	if err := as.server.start(a.Router()); err != nil {
		return err
	}
	as.api = a
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.server.stop()
}

// HostPort returns the configured host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.conf.Host, as.conf.Port
}

// Addr returns the address the API server listens on.
func (as *APIService) Addr() string {
	return as.server.addr()
}
