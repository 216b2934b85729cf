package oauth

import (
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/go-atproto/atproto/dpop"
	"github.com/go-atproto/atproto/xrpc"
)

// OAuthSession is the result of a completed authorization or refresh:
// a TokenSet bound to a DPoP key, with everything needed to issue
// authenticated XRPC requests.
type OAuthSession struct {
	client        *Client
	tokens        TokenSet
	dpopKey       jwk.Key
	tokenEndpoint string
	revokeEndpoint string
}

// DID returns the session's subject.
func (s *OAuthSession) DID() string {
	return s.tokens.Sub
}

// Tokens returns the current TokenSet.
func (s *OAuthSession) Tokens() TokenSet {
	return s.tokens
}

// HTTPClient returns an *http.Client that attaches a DPoP proof and an
// Authorization: DPoP <accessToken> header to every request it sends.
func (s *OAuthSession) HTTPClient() *http.Client {
	transport := dpop.NewTransport(http.DefaultTransport, s.dpopKey)
	transport.AccessToken = s.tokens.AccessToken
	return &http.Client{Transport: transport}
}

// XRPCClient returns an xrpc.Client wired to pdsURL using this
// session's DPoP-bound HTTP client. The Authorization header is set by
// the DPoP transport, not by xrpc's own TokenSource, so tokens is nil.
func (s *OAuthSession) XRPCClient(pdsURL string) *xrpc.Client {
	return xrpc.New(s.HTTPClient(), nil, xrpc.Config{Endpoint: pdsURL})
}
