package oracle

import "github.com/vocdoni/silentvote/types"

// PublicDecryptEndpoint is the relayer endpoint serving public decryptions.
const PublicDecryptEndpoint = "/v1/public-decrypt"

// PublicDecryptRequest asks the relayer for the cleartexts of handles.
type PublicDecryptRequest struct {
	ChainID           uint64         `json:"chainId"`
	CiphertextHandles []types.Handle `json:"ciphertextHandles"`
	ExtraData         string         `json:"extraData"`
}

// DecryptedValue is a relayer result entry. DecryptedValue concatenates one
// 32 byte big-endian word per requested handle, hex encoded.
type DecryptedValue struct {
	DecryptedValue string   `json:"decrypted_value"`
	Signatures     []string `json:"signatures"`
}

// PublicDecryptResponse is the relayer answer. Clients must accept the
// Response list as well as the ClearValues or DecryptedValues maps, keyed by
// handle with decimal values.
type PublicDecryptResponse struct {
	RequestID       string            `json:"requestId,omitempty"`
	Response        []DecryptedValue  `json:"response,omitempty"`
	ClearValues     map[string]string `json:"clearValues,omitempty"`
	DecryptedValues map[string]string `json:"decryptedValues,omitempty"`
	DecryptionProof string            `json:"decryptionProof,omitempty"`
}

// ErrorResponse is the body of a failed relayer request.
type ErrorResponse struct {
	Error string `json:"error"`
}
