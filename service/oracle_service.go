package service

import (
	"context"

	"github.com/vocdoni/silentvote/oracle"
)

// OracleService serves the relayer endpoint in front of a KMS committee.
type OracleService struct {
	relayer *oracle.Relayer
	server  httpServer
}

// NewOracle creates a new OracleService for the KMS on the given chain.
func NewOracle(kms *oracle.KMS, chainID uint64, host string, port int) *OracleService {
	return &OracleService{
		relayer: oracle.NewRelayer(kms, chainID),
		server:  httpServer{name: "oracle", host: host, port: port},
	}
}

// Start begins the relayer server.
func (ors *OracleService) Start(_ context.Context) error {
	return ors.server.start(ors.relayer.Router())
}

// Stop halts the relayer server.
func (ors *OracleService) Stop() {
	ors.server.stop()
}

// Addr returns the address the relayer listens on.
func (ors *OracleService) Addr() string {
	return ors.server.addr()
}
