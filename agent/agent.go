// Package agent composes a session (password or OAuth) and an XRPC
// client into the acyclic dependency shape an application actually
// drives: Agent -> session-backed Client ->
// HTTPDoer, with the session store owned by the session package and
// read only through it, avoiding the cyclic agent/session/client
// ownership the source risks.
package agent

import (
	"context"

	"github.com/go-atproto/atproto/xrpc"
)

// Client is the capability an Agent drives: send a request, and read or
// rewrite the endpoint it is sent against. Both *session.Manager
// (password flow, augmented with SetEndpoint/Endpoint) and *xrpc.Client
// (OAuth flow, via OAuthSession.XRPCClient) satisfy it.
type Client interface {
	Send(ctx context.Context, req xrpc.Request) (*xrpc.Response, error)
	SetEndpoint(endpoint string)
	Endpoint() string
}

// Agent is the typed surface application code drives: the XRPC
// capability plus the account identity it is acting as, once known.
type Agent struct {
	client Client
	did    string
	handle string
}

// newAgent wraps an already-authenticated Client. Exported constructors
// (Login, Resume, FromOAuthSession) are the entry points, so every Agent
// starts with its DID set. FromOAuthSession leaves the handle empty.
func newAgent(client Client, did, handle string) *Agent {
	return &Agent{client: client, did: did, handle: handle}
}

// DID returns the account this agent is acting as.
func (a *Agent) DID() string { return a.did }

// Handle returns the account's handle, if known.
func (a *Agent) Handle() string { return a.handle }

// Send issues a raw XRPC request through the agent's current client. It
// exists for operations this package does not wrap with a typed
// convenience method (most of the lexicon surface — createRecord,
// getProfile and friends cover the cross-cutting ones that every
// integration needs).
func (a *Agent) Send(ctx context.Context, req xrpc.Request) (*xrpc.Response, error) {
	return a.client.Send(ctx, req)
}
