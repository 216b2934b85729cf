package agent

import "github.com/go-atproto/atproto/oauth"

// FromOAuthSession wraps a completed OAuth authorization (or refresh)
// into an Agent whose requests carry Authorization: DPoP <token> and a
// DPoP proof, using pdsURL as the repo host. pdsURL is supplied by the
// caller rather than inferred from the TokenSet because it was already
// resolved once, during oauthClient.Authorize, and re-deriving it here
// would mean re-running identity resolution for no reason.
func FromOAuthSession(sess *oauth.OAuthSession, pdsURL string) *Agent {
	return newAgent(sess.XRPCClient(pdsURL), sess.DID(), "")
}
