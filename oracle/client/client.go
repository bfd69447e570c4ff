// Package client implements the relayer client used to request public
// decryptions. Requests are never retried: a failure is reported to the
// caller, which decides when to ask again.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/vocdoni/silentvote/fhe"
	"github.com/vocdoni/silentvote/log"
	"github.com/vocdoni/silentvote/oracle"
	"github.com/vocdoni/silentvote/types"
	"github.com/vocdoni/silentvote/util"
)

// DefaultTimeout bounds every decryption request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrRelayerDown is returned when the relayer answers with a server error.
	ErrRelayerDown = errors.New("relayer is down")
	// ErrNotAllowed is returned when a handle is not publicly decryptable.
	ErrNotAllowed = errors.New("not allowed for decryption")
	// ErrTimeout is returned when the relayer does not answer in time.
	ErrTimeout = errors.New("decryption timeout")
	// ErrMalformedResponse is returned when the relayer answer cannot be parsed.
	ErrMalformedResponse = errors.New("malformed relayer response")
	// ErrUnverifiedResult is returned when the result signatures do not verify.
	ErrUnverifiedResult = errors.New("decryption result does not verify")
)

// Client requests public decryptions to a relayer.
type Client struct {
	c        *http.Client
	host     *url.URL
	chainID  uint64
	verifier fhe.DecryptionVerifier
}

var _ oracle.Decrypter = (*Client)(nil)

// New returns a client for the relayer at host.
func New(host string, chainID uint64) (*Client, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if hostURL.Scheme == "" || hostURL.Host == "" {
		return nil, fmt.Errorf("invalid relayer url %q", host)
	}
	return &Client{
		c:       &http.Client{Timeout: DefaultTimeout},
		host:    hostURL,
		chainID: chainID,
	}, nil
}

// SetVerifier makes the client check the result signatures with v.
func (c *Client) SetVerifier(v fhe.DecryptionVerifier) {
	c.verifier = v
}

// SetTimeout configures the timeout of every request.
func (c *Client) SetTimeout(d time.Duration) {
	c.c.Timeout = d
}

// PublicDecrypt implements oracle.Decrypter.
func (c *Client) PublicDecrypt(ctx context.Context, handles []types.Handle) (*oracle.Decryption, error) {
	if len(handles) == 0 {
		return nil, oracle.ErrNoHandles
	}
	body, err := json.Marshal(&oracle.PublicDecryptRequest{
		ChainID:           c.chainID,
		CiphertextHandles: handles,
		ExtraData:         "0x00",
	})
	if err != nil {
		return nil, err
	}
	u := *c.host
	u.Path = path.Join(u.Path, oracle.PublicDecryptEndpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	log.Debugw("public decryption request", "url", u.String(), "handles", len(handles))

	resp, err := c.c.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
			return nil, fmt.Errorf("%w (%s)", ErrTimeout, c.c.Timeout)
		}
		return nil, fmt.Errorf("relayer request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		text := string(data)
		switch {
		case strings.Contains(text, "not allowed"):
			return nil, fmt.Errorf("%w: %s", ErrNotAllowed, strings.TrimSpace(text))
		case resp.StatusCode >= 500 || strings.Contains(text, "Web server"):
			return nil, fmt.Errorf("%w: %d", ErrRelayerDown, resp.StatusCode)
		default:
			return nil, fmt.Errorf("relayer error: %d (%s)", resp.StatusCode, strings.TrimSpace(text))
		}
	}

	result := &oracle.PublicDecryptResponse{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	dec, err := ParseResponse(handles, result)
	if err != nil {
		return nil, err
	}
	if c.verifier != nil {
		if err := c.verifier.VerifyDecryptionProof(handles, dec.Values, dec.Proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnverifiedResult, err)
		}
	}
	return dec, nil
}

// ParseResponse extracts the cleartexts and proof for handles from a relayer
// answer. The packed response list takes precedence over the value maps.
func ParseResponse(handles []types.Handle, resp *oracle.PublicDecryptResponse) (*oracle.Decryption, error) {
	dec := &oracle.Decryption{Handles: handles}
	var err error
	switch {
	case len(resp.Response) > 0 && resp.Response[0].DecryptedValue != "":
		dec.Values, err = parseWords(resp.Response[0].DecryptedValue, len(handles))
	case resp.ClearValues != nil:
		dec.Values, err = parseMap(resp.ClearValues, handles)
	case resp.DecryptedValues != nil:
		dec.Values, err = parseMap(resp.DecryptedValues, handles)
	default:
		err = fmt.Errorf("%w: no values", ErrMalformedResponse)
	}
	if err != nil {
		return nil, err
	}

	if len(resp.Response) > 0 {
		for _, s := range resp.Response[0].Signatures {
			sig, err := decodeHex(s)
			if err != nil {
				return nil, fmt.Errorf("%w: signature: %v", ErrMalformedResponse, err)
			}
			dec.Signatures = append(dec.Signatures, sig)
		}
	}
	switch {
	case resp.DecryptionProof != "":
		if dec.Proof, err = decodeHex(resp.DecryptionProof); err != nil {
			return nil, fmt.Errorf("%w: proof: %v", ErrMalformedResponse, err)
		}
	case len(dec.Signatures) > 0:
		if dec.Proof, err = oracle.EncodeProof(dec.Signatures); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return dec, nil
}

func parseWords(s string, n int) ([]uint64, error) {
	words, err := decodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(words) < n*32 {
		return nil, fmt.Errorf("%w: %d bytes for %d values", ErrMalformedResponse, len(words), n)
	}
	values := make([]uint64, n)
	for i := range values {
		v := new(big.Int).SetBytes(words[i*32 : (i+1)*32])
		if !v.IsUint64() {
			return nil, fmt.Errorf("%w: value %d out of range", ErrMalformedResponse, i)
		}
		values[i] = v.Uint64()
	}
	return values, nil
}

func parseMap(m map[string]string, handles []types.Handle) ([]uint64, error) {
	values := make([]uint64, len(handles))
	for i, h := range handles {
		s, ok := m[h.String()]
		if !ok {
			return nil, fmt.Errorf("%w: missing value for %s", ErrMalformedResponse, h)
		}
		v, ok := new(big.Int).SetString(s, 0)
		if !ok || !v.IsUint64() {
			return nil, fmt.Errorf("%w: invalid value %q for %s", ErrMalformedResponse, s, h)
		}
		values[i] = v.Uint64()
	}
	return values, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(util.TrimHex(s))
}
