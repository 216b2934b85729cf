package agent

import (
	"context"

	"github.com/go-atproto/atproto/session"
	"github.com/go-atproto/atproto/xrpc"
)

// DefaultBskyPDS is the entry-point PDS used when an application has no
// opinion of its own about which host to authenticate against — the
// same default the Bluesky app itself uses for password-based login.
const DefaultBskyPDS = "https://bsky.social"

// BskyAgent is an Agent pre-wired to Bluesky's own PDS, sparing callers
// who only ever talk to bsky.social from having to name the endpoint at
// every call site. It embeds *Agent, so every Agent method is available
// directly on a *BskyAgent.
type BskyAgent struct {
	*Agent
}

// NewBskyAgent logs in against DefaultBskyPDS using identifier and
// password, the shortcut most integrations that only target Bluesky's
// own hosting actually want.
func NewBskyAgent(ctx context.Context, httpClient xrpc.HTTPDoer, identifier, password string) (*BskyAgent, error) {
	a, err := Login(ctx, httpClient, DefaultBskyPDS, identifier, password)
	if err != nil {
		return nil, err
	}
	return &BskyAgent{Agent: a}, nil
}

// ResumeBskySession rebuilds a BskyAgent from a previously persisted
// session against DefaultBskyPDS, without a fresh login.
func ResumeBskySession(httpClient xrpc.HTTPDoer, sess session.Session) *BskyAgent {
	return &BskyAgent{Agent: Resume(httpClient, DefaultBskyPDS, sess)}
}
