package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/go-atproto/atproto/xrpc"
)

const refreshSessionNSID = "com.atproto.server.refreshSession"

// ErrNoSession is returned when an operation requires an active session
// but the store is empty.
var ErrNoSession = errors.New("session: no active session")

// Manager owns a Store and a writable XRPC endpoint, presenting the
// xrpc capability to callers with automatic bearer token selection and
// single-flight refresh-on-expiry.
type Manager struct {
	store  Store
	client *xrpc.Client

	refreshGroup singleflight.Group
}

// NewManager constructs a Manager. httpClient is the underlying HTTP
// transport (typically *http.Client); endpoint is the PDS host the
// session was created against.
func NewManager(httpClient xrpc.HTTPDoer, store Store, endpoint string) *Manager {
	m := &Manager{store: store}
	m.client = xrpc.New(httpClient, m, xrpc.Config{Endpoint: endpoint})
	return m
}

// TokenForNSID implements xrpc.TokenSource: the refresh-session
// operation authenticates with the refresh token, everything else with
// the access token.
func (m *Manager) TokenForNSID(nsid string) (string, bool) {
	sess, ok := m.store.Get()
	if !ok {
		return "", false
	}
	if nsid == refreshSessionNSID {
		return sess.RefreshJwt, sess.RefreshJwt != ""
	}
	return sess.AccessJwt, sess.AccessJwt != ""
}

// Session returns the current session, if any.
func (m *Manager) Session() (Session, bool) {
	return m.store.Get()
}

// SetSession installs a session obtained out-of-band (e.g. from
// com.atproto.server.createSession) and points the client at endpoint.
func (m *Manager) SetSession(sess Session, endpoint string) {
	m.store.Set(sess)
	m.client.SetEndpoint(endpoint)
}

// SetEndpoint updates the PDS host requests are sent against.
func (m *Manager) SetEndpoint(endpoint string) {
	m.client.SetEndpoint(endpoint)
}

// Endpoint returns the current PDS host.
func (m *Manager) Endpoint() string {
	return m.client.Endpoint()
}

// SetLabelersHeader updates the atproto-accept-labelers header sent on
// every request.
func (m *Manager) SetLabelersHeader(labelers []xrpc.LabelerHeader) {
	m.client.SetLabelersHeader(labelers)
}

// Client returns the underlying xrpc.Client, for callers that need a
// capability without the retry wrapper (e.g. to build a proxied clone).
func (m *Manager) Client() *xrpc.Client {
	return m.client
}

// WithProxyHeader returns a Manager clone that shares this Manager's
// store and refresh coalescing but sends an additional atproto-proxy
// header, without affecting the original.
func (m *Manager) WithProxyHeader(p xrpc.ProxyHeader) *Manager {
	return &Manager{store: m.store, client: m.client.WithProxyHeader(p)}
}

// Send issues req, transparently refreshing the session and replaying
// the request exactly once if the server reports ExpiredToken.
func (m *Manager) Send(ctx context.Context, req xrpc.Request) (*xrpc.Response, error) {
	if _, ok := m.store.Get(); !ok {
		return nil, ErrNoSession
	}

	resp, err := m.client.Send(ctx, req)
	if !isExpiredToken(err) {
		return resp, err
	}

	if rerr := m.refresh(ctx); rerr != nil {
		return nil, fmt.Errorf("session: refresh after ExpiredToken: %w", rerr)
	}

	return m.client.Send(ctx, req)
}

func isExpiredToken(err error) bool {
	var xerr *xrpc.Error
	return errors.As(err, &xerr) && xerr.Name == "ExpiredToken"
}

// refresh coalesces concurrent refresh attempts into one in-flight
// request process-wide per Manager; all callers observe its result.
func (m *Manager) refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.doRefresh(ctx)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	resp, err := m.client.Send(ctx, xrpc.Request{Method: xrpc.Procedure, NSID: refreshSessionNSID})
	if err != nil {
		m.store.Clear()
		return err
	}

	var out struct {
		AccessJwt  string         `json:"accessJwt"`
		RefreshJwt string         `json:"refreshJwt"`
		DID        string         `json:"did"`
		Handle     string         `json:"handle"`
		DidDoc     map[string]any `json:"didDoc"`
	}
	if err := resp.Decode(&out); err != nil {
		m.store.Clear()
		return fmt.Errorf("session: decode refresh response: %w", err)
	}

	m.store.Set(Session{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		DID:        out.DID,
		Handle:     out.Handle,
		DidDoc:     out.DidDoc,
	})

	if pds := pdsFromDidDoc(out.DidDoc); pds != "" {
		m.client.SetEndpoint(pds)
	}
	return nil
}

// pdsFromDidDoc extracts the AtprotoPersonalDataServer service endpoint
// from a raw (JSON-decoded-to-map) DID document, if present.
func pdsFromDidDoc(doc map[string]any) string {
	services, ok := doc["service"].([]any)
	if !ok {
		return ""
	}
	for _, raw := range services {
		svc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if svc["type"] != "AtprotoPersonalDataServer" {
			continue
		}
		endpoint, _ := svc["serviceEndpoint"].(string)
		return endpoint
	}
	return ""
}
