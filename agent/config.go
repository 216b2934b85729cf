package agent

import (
	"github.com/go-atproto/atproto/session"
	"github.com/go-atproto/atproto/xrpc"
)

// ConfigureEndpoint repoints the agent's requests at a new base URI
// (e.g. after discovering a different PDS for the account).
func (a *Agent) ConfigureEndpoint(url string) {
	a.client.SetEndpoint(url)
}

// ConfigureLabelers sets the atproto-accept-labelers header sent with
// every subsequent request. redact, when true, marks the entry
// redact-only per the header's wire format.
func (a *Agent) ConfigureLabelers(labelers []LabelerChoice) {
	hdr := make([]xrpc.LabelerHeader, len(labelers))
	for i, l := range labelers {
		hdr[i] = xrpc.LabelerHeader{DID: l.DID, Redact: l.Redact}
	}
	switch c := a.client.(type) {
	case *session.Manager:
		c.SetLabelersHeader(hdr)
	case *xrpc.Client:
		c.SetLabelersHeader(hdr)
	}
}

// LabelerChoice is one entry of the agent's labeler subscription list.
type LabelerChoice struct {
	DID    string
	Redact bool
}

// ConfigureProxy replaces the agent's client with a clone that sends
// atproto-proxy: <did>#<serviceType> on every subsequent request,
// without disturbing any other Agent or Client sharing the same
// underlying session. The two backends this package produces
// (*session.Manager and *xrpc.Client) both support cloning-with-proxy
// but don't share a common return type for it, hence the type switch —
// a closed, two-case branch, not an open trait-object dispatch.
func (a *Agent) ConfigureProxy(did, serviceType string) {
	p := xrpc.ProxyHeader{DID: did, ServiceType: serviceType}
	switch c := a.client.(type) {
	case *session.Manager:
		a.client = c.WithProxyHeader(p)
	case *xrpc.Client:
		a.client = c.WithProxyHeader(p)
	}
}
