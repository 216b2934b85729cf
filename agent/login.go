package agent

import (
	"context"
	"fmt"

	"github.com/go-atproto/atproto/session"
	"github.com/go-atproto/atproto/xrpc"
)

const (
	createSessionNSID = "com.atproto.server.createSession"
	getSessionNSID    = "com.atproto.server.getSession"
)

// Login resolves identifier and password against endpoint via
// com.atproto.server.createSession and returns an Agent backed by a
// fresh session.Manager. identifier may be a handle, DID, or email,
// matching what the PDS itself accepts.
func Login(ctx context.Context, httpClient xrpc.HTTPDoer, endpoint, identifier, password string) (*Agent, error) {
	mgr := session.NewManager(httpClient, session.NewMemoryStore(), endpoint)

	resp, err := mgr.Client().Send(ctx, xrpc.Request{
		Method: xrpc.Procedure,
		NSID:   createSessionNSID,
		Input: map[string]string{
			"identifier": identifier,
			"password":   password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: login: %w", err)
	}

	var out struct {
		AccessJwt  string         `json:"accessJwt"`
		RefreshJwt string         `json:"refreshJwt"`
		DID        string         `json:"did"`
		Handle     string         `json:"handle"`
		DidDoc     map[string]any `json:"didDoc"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("agent: login: decode response: %w", err)
	}

	mgr.SetSession(session.Session{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		DID:        out.DID,
		Handle:     out.Handle,
		DidDoc:     out.DidDoc,
	}, endpoint)

	return newAgent(mgr, out.DID, out.Handle), nil
}

// Resume rebuilds an Agent from a previously persisted session (e.g.
// loaded from the caller's own storage) without a fresh login. The
// caller is responsible for having captured a valid, unexpired session;
// an expired access token is handled transparently by the first request
// through the normal ExpiredToken-refresh path.
func Resume(httpClient xrpc.HTTPDoer, endpoint string, sess session.Session) *Agent {
	mgr := session.NewManager(httpClient, session.NewMemoryStore(), endpoint)
	mgr.SetSession(sess, endpoint)
	return newAgent(mgr, sess.DID, sess.Handle)
}

// RefreshIdentity re-fetches the account's own session info via
// com.atproto.server.getSession, useful after an external process
// changed the account's handle or PDS.
func (a *Agent) RefreshIdentity(ctx context.Context) error {
	resp, err := a.client.Send(ctx, xrpc.Request{Method: xrpc.Query, NSID: getSessionNSID})
	if err != nil {
		return fmt.Errorf("agent: refresh identity: %w", err)
	}
	var out struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	}
	if err := resp.Decode(&out); err != nil {
		return fmt.Errorf("agent: refresh identity: decode response: %w", err)
	}
	a.did = out.DID
	a.handle = out.Handle
	return nil
}
