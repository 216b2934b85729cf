// Package xrpc implements the AT Protocol's XRPC wire protocol: HTTP
// request construction, session-aware bearer token selection, and
// typed response decoding, independent of any particular transport.
package xrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// refreshSessionNSID is the one operation that authenticates with the
// refresh token instead of the access token.
const refreshSessionNSID = "com.atproto.server.refreshSession"

// HTTPDoer is the collaborator interface for issuing HTTP requests,
// satisfied by *http.Client, including one whose Transport is a
// DPoP-aware RoundTripper.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the options every XRPC client recognizes.
type Config struct {
	Endpoint       string
	LabelersHeader []LabelerHeader
	ProxyHeader    *ProxyHeader
}

// Client sends XRPC requests against a single PDS/AppView endpoint.
type Client struct {
	httpClient HTTPDoer
	tokens     TokenSource // nil for unauthenticated clients

	mu     sync.RWMutex
	config Config
}

// New constructs a Client. tokens may be nil for unauthenticated use
// (e.g. public AppView queries, or during the initial login exchange).
func New(httpClient HTTPDoer, tokens TokenSource, config Config) *Client {
	return &Client{httpClient: httpClient, tokens: tokens, config: config}
}

// WithProxyHeader returns a clone of the client configured to send
// atproto-proxy: <did>#<serviceType> on every request. This is how a
// single session is reused to call a different service (e.g. a labeler
// or feed generator) on the user's behalf, without affecting the
// original client.
func (c *Client) WithProxyHeader(p ProxyHeader) *Client {
	c.mu.RLock()
	config := c.config
	c.mu.RUnlock()
	config.ProxyHeader = &p
	return &Client{httpClient: c.httpClient, tokens: c.tokens, config: config}
}

// SetLabelersHeader updates the atproto-accept-labelers header sent on
// every request, in place (unlike WithProxyHeader, this does not clone
// the client — the spec models labeler selection as live configuration,
// not a per-call override).
func (c *Client) SetLabelersHeader(labelers []LabelerHeader) {
	c.mu.Lock()
	c.config.LabelersHeader = labelers
	c.mu.Unlock()
}

// SetEndpoint updates the base URI requests are sent against, e.g. when
// a session refresh reveals a new PDS endpoint in the account's DID
// document.
func (c *Client) SetEndpoint(endpoint string) {
	c.mu.Lock()
	c.config.Endpoint = endpoint
	c.mu.Unlock()
}

// Endpoint returns the client's current base URI.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Endpoint
}

// Send issues req and returns the successful response, or an *Error for
// any non-2xx status.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("xrpc: %s %s: %w", req.Method, req.NSID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("xrpc: reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorBody(resp.StatusCode, body)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       body,
	}, nil
}

// Decode unmarshals a successful JSON response into out. It is the
// caller's responsibility to check ContentType first when the operation
// may return raw bytes (e.g. blob downloads).
func (r *Response) Decode(out any) error {
	return json.Unmarshal(r.Bytes, out)
}

// IsJSON reports whether the response body is JSON, per its
// Content-Type header.
func (r *Response) IsJSON() bool {
	return strings.HasPrefix(r.ContentType, "application/json")
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	c.mu.RLock()
	config := c.config
	c.mu.RUnlock()

	u, err := buildURL(config.Endpoint, req.NSID, req.Parameters)
	if err != nil {
		return nil, err
	}

	body, err := requestBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), u, body)
	if err != nil {
		return nil, fmt.Errorf("xrpc: build request: %w", err)
	}

	if body != nil {
		encoding := req.Encoding
		if encoding == "" {
			encoding = "application/json"
		}
		httpReq.Header.Set("Content-Type", encoding)
	}

	if c.tokens != nil {
		if token, ok := c.tokens.TokenForNSID(req.NSID); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if len(config.LabelersHeader) > 0 {
		httpReq.Header.Set("atproto-accept-labelers", formatLabelersHeader(config.LabelersHeader))
	}
	if config.ProxyHeader != nil {
		httpReq.Header.Set("atproto-proxy", config.ProxyHeader.DID+"#"+config.ProxyHeader.ServiceType)
	}

	return httpReq, nil
}

func buildURL(endpoint, nsid string, parameters map[string]string) (string, error) {
	base := strings.TrimSuffix(endpoint, "/")
	u, err := url.Parse(base + "/xrpc/" + nsid)
	if err != nil {
		return "", fmt.Errorf("xrpc: invalid endpoint: %w", err)
	}
	if len(parameters) > 0 {
		q := u.Query()
		for k, v := range parameters {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func requestBody(req Request) (io.Reader, error) {
	if req.InputBytes != nil {
		return bytes.NewReader(req.InputBytes), nil
	}
	if req.Input != nil {
		b, err := json.Marshal(req.Input)
		if err != nil {
			return nil, fmt.Errorf("xrpc: marshal input: %w", err)
		}
		return bytes.NewReader(b), nil
	}
	return nil, nil
}

func formatLabelersHeader(labelers []LabelerHeader) string {
	parts := make([]string, len(labelers))
	for i, l := range labelers {
		if l.Redact {
			parts[i] = l.DID + ";redact"
		} else {
			parts[i] = l.DID
		}
	}
	return strings.Join(parts, ", ")
}

func parseErrorBody(status int, body []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return &Error{StatusCode: status, Name: "Unknown", Message: string(body)}
	}
	return &Error{StatusCode: status, Name: payload.Error, Message: payload.Message}
}
