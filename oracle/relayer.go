package oracle

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/vocdoni/silentvote/log"
)

// maxHandlesPerRequest bounds the work of a single decryption request.
const maxHandlesPerRequest = 32

// Relayer exposes a KMS over HTTP.
type Relayer struct {
	router  *chi.Mux
	kms     *KMS
	chainID uint64
}

// NewRelayer returns a relayer serving kms for the given chain id.
func NewRelayer(kms *KMS, chainID uint64) *Relayer {
	r := &Relayer{kms: kms, chainID: chainID}
	r.router = chi.NewRouter()
	r.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	r.router.Use(middleware.Logger)
	r.router.Use(middleware.Recoverer)
	r.router.Use(middleware.Throttle(20))
	r.router.Use(middleware.Timeout(45 * time.Second))
	log.Infow("register handler", "endpoint", PublicDecryptEndpoint, "method", "POST")
	r.router.Post(PublicDecryptEndpoint, r.publicDecrypt)
	return r
}

// Router returns the HTTP handler of the relayer.
func (r *Relayer) Router() http.Handler {
	return r.router
}

func (r *Relayer) publicDecrypt(w http.ResponseWriter, req *http.Request) {
	reqID := uuid.New().String()
	body := &PublicDecryptRequest{}
	if err := json.NewDecoder(req.Body).Decode(body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request: %w", err))
		return
	}
	if body.ChainID != r.chainID {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported chain id %d", body.ChainID))
		return
	}
	if len(body.CiphertextHandles) > maxHandlesPerRequest {
		writeError(w, http.StatusBadRequest, fmt.Errorf("too many handles: %d", len(body.CiphertextHandles)))
		return
	}
	dec, err := r.kms.PublicDecrypt(req.Context(), body.CiphertextHandles)
	switch {
	case errors.Is(err, ErrNoHandles), errors.Is(err, ErrNotAllowed):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		log.Warnw("public decryption failed", "requestId", reqID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	words := make([]byte, 0, len(dec.Values)*32)
	clearValues := make(map[string]string, len(dec.Values))
	for i, v := range dec.Values {
		words = append(words, common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)...)
		clearValues[dec.Handles[i].String()] = strconv.FormatUint(v, 10)
	}
	sigs := make([]string, len(dec.Signatures))
	for i, s := range dec.Signatures {
		sigs[i] = "0x" + hex.EncodeToString(s)
	}
	log.Infow("public decryption served", "requestId", reqID, "handles", len(dec.Handles))
	writeJSON(w, http.StatusOK, &PublicDecryptResponse{
		RequestID: reqID,
		Response: []DecryptedValue{{
			DecryptedValue: "0x" + hex.EncodeToString(words),
			Signatures:     sigs,
		}},
		ClearValues:     clearValues,
		DecryptionProof: "0x" + hex.EncodeToString(dec.Proof),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jdata); err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, &ErrorResponse{Error: err.Error()})
}
