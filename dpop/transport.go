package dpop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ErrNonceRetryExhausted is returned when the server still challenges
// for a fresh nonce after the one-time replay RFC 9449 allows for.
var ErrNonceRetryExhausted = errors.New("dpop: server rejected retried proof with a second use_dpop_nonce challenge")

// Transport is an http.RoundTripper that attaches a DPoP proof (and,
// when AccessToken is set, an Authorization: DPoP header) to every
// request, tracking one nonce per origin and replaying a request
// exactly once when the server demands a fresh nonce.
type Transport struct {
	Base        http.RoundTripper
	Key         jwk.Key
	AccessToken string // optional; when set, sent as "Authorization: DPoP <token>"

	mu     sync.RWMutex
	nonces *nonceCache
}

// NewTransport constructs a Transport. base may be nil, defaulting to
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, key jwk.Key) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Key: key, nonces: newNonceCache()}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.attempt(req)
	if err != nil {
		return nil, err
	}

	challenged, newNonce, berr := t.checkNonceChallenge(resp)
	if berr != nil {
		return nil, berr
	}
	if !challenged {
		return resp, nil
	}

	resp.Body.Close()
	t.nonces.set(originOf(req.URL.String()), newNonce)

	retryResp, err := t.attempt(req)
	if err != nil {
		return nil, err
	}

	challengedAgain, _, berr := t.checkNonceChallenge(retryResp)
	if berr != nil {
		return nil, berr
	}
	if challengedAgain {
		retryResp.Body.Close()
		return nil, ErrNonceRetryExhausted
	}
	return retryResp, nil
}

func (t *Transport) attempt(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	// req.Clone shallow-copies Body: it's the same already-possibly-drained
	// io.ReadCloser, not a fresh copy. Since attempt may run twice against
	// the same *http.Request (first try, then the nonce-challenge retry),
	// rebuild the body from GetBody so a retried POST/PUT doesn't replay
	// with an empty body.
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, fmt.Errorf("dpop: request with a body must set GetBody to support nonce-challenge retry")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("dpop: rebuild request body: %w", err)
		}
		clone.Body = body
	}

	origin := originOf(clone.URL.String())
	nonce := t.nonces.get(origin)

	if t.AccessToken != "" {
		clone.Header.Set("Authorization", "DPoP "+t.AccessToken)
	}

	proof, err := BuildProof(t.Key, clone.Method, clone.URL.String(), nonce, t.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("dpop: build proof: %w", err)
	}
	clone.Header.Set("DPoP", proof)

	resp, err := t.Base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if serverNonce := resp.Header.Get("DPoP-Nonce"); serverNonce != "" {
		t.nonces.set(origin, serverNonce)
	}
	return resp, nil
}

// checkNonceChallenge reports whether resp is a use_dpop_nonce
// challenge, and the fresh nonce to retry with. The response body is
// fully buffered and restored so callers can still read it afterward.
func (t *Transport) checkNonceChallenge(resp *http.Response) (bool, string, error) {
	if !strings.Contains(resp.Header.Get("WWW-Authenticate"), "use_dpop_nonce") {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, "", fmt.Errorf("dpop: read response body: %w", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))

		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) != nil || payload.Error != "use_dpop_nonce" {
			return false, "", nil
		}
	}

	nonce := resp.Header.Get("DPoP-Nonce")
	if nonce == "" {
		return false, "", fmt.Errorf("dpop: use_dpop_nonce challenge carried no DPoP-Nonce header")
	}
	return true, nonce, nil
}
