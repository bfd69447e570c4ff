// Package client is a typed HTTP client of the SilentVote API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/vocdoni/silentvote/api"
	"github.com/vocdoni/silentvote/log"
)

const (
	// HTTPGET is the method of read requests.
	HTTPGET = http.MethodGet
	// HTTPPOST is the method of the requests that change the ledger.
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries is the number of attempts of a GET request whose
	// connection fails. Other methods are sent once.
	DefaultRetries = 3
	// DefaultTimeout is the timeout of every request.
	DefaultTimeout = 10 * time.Second

	defaultRetryDelay = 500 * time.Millisecond
)

// HTTPclient is the SilentVote API HTTP client.
type HTTPclient struct {
	c          *http.Client
	host       *url.URL
	retries    int
	retryDelay time.Duration
}

// New returns a client of the API served at host, once it answers a ping.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    DefaultTimeout,
		DisableCompression: false,
		WriteBufferSize:    1 * 1024 * 1024, // 1 MiB
		ReadBufferSize:     1 * 1024 * 1024, // 1 MiB
	}
	c := &HTTPclient{
		c:          &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:       hostURL,
		retries:    DefaultRetries,
		retryDelay: defaultRetryDelay,
	}
	log.Debugw("http client created", "host", hostURL.String())
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return c, nil
}

// SetRetries sets the number of attempts of a GET request.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// Request sends a raw request to the endpoint at urlPath and returns the
// response body and status code. A non nil jsonBody is sent as JSON. params
// holds query parameters as key, value pairs; an unpaired last key is
// ignored.
//
// Only GET requests are retried when the connection fails. A POST whose
// response was lost may have been applied, so sending it again could turn a
// committed vote into an already voted error.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}
	u, err := c.endpoint(params, urlPath...)
	if err != nil {
		return nil, 0, err
	}
	log.Debugw("http client request",
		"type", method,
		"url", u,
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	attempts := 1
	if method == HTTPGET {
		attempts = c.retries
	}
	var resp *http.Response
	for i := 1; ; i++ {
		if resp, err = c.do(method, u, body); err == nil {
			break
		}
		log.Warnw("http request failed", "error", err.Error(), "method", method, "attempt", i, "attempts", attempts)
		if i >= attempts {
			return nil, 0, fmt.Errorf("http request failed after %d attempts: %w", i, err)
		}
		time.Sleep(c.retryDelay)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// endpoint joins urlPath and the query params to the host url.
func (c *HTTPclient) endpoint(params []string, urlPath ...string) (string, error) {
	u, err := url.Parse(c.host.String())
	if err != nil {
		return "", fmt.Errorf("failed to parse host URL: %w", err)
	}
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i < len(params)-1; i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

// do sends a single request with a fresh body reader.
func (c *HTTPclient) do(method, u string, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
	}
	return c.c.Do(req)
}
