package xrpc

// Method is the HTTP verb an XRPC operation is invoked with. AT Protocol
// query lexicons use GET, procedure lexicons use POST.
type Method string

const (
	Query     Method = "GET"
	Procedure Method = "POST"
)

// LabelerHeader is one entry of the atproto-accept-labelers header: a
// labeler DID, optionally marked as redact-only.
type LabelerHeader struct {
	DID    string
	Redact bool
}

// ProxyHeader selects the atproto-proxy target: "<did>#<serviceType>".
type ProxyHeader struct {
	DID         string
	ServiceType string
}

// TokenSource supplies the bearer token for a given NSID: the refresh
// token for the session-refresh operation, the access token for
// everything else. Implemented by session.Manager.
type TokenSource interface {
	TokenForNSID(nsid string) (token string, ok bool)
}

// Request describes a single XRPC call.
type Request struct {
	Method     Method
	NSID       string
	Parameters map[string]string
	Input      any    // JSON-marshaled if non-nil and InputBytes is nil
	InputBytes []byte // raw body, takes precedence over Input
	Encoding   string // Content-Type for the body
}

// Response is a successful (2xx) result: either parsed JSON (via Decode)
// or raw bytes, depending on the response Content-Type.
type Response struct {
	StatusCode  int
	ContentType string
	Bytes       []byte
}
