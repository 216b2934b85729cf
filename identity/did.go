package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// ResolveDIDDoc retrieves the DID document for did, dispatching on the DID
// method. Only did:plc and did:web are supported.
func (r *Resolver) ResolveDIDDoc(ctx context.Context, did string) (*DIDDocument, error) {
	method, _, ok := splitDID(did)
	if !ok {
		return nil, &ErrInvalidDid{Value: did, Reason: "malformed did"}
	}

	switch method {
	case "plc":
		return r.resolvePLC(ctx, did)
	case "web":
		return r.resolveWeb(ctx, did)
	default:
		return nil, &ErrUnsupportedDidMethod{Method: method}
	}
}

// splitDID parses "did:<method>:<id>" into its method and method-specific id.
func splitDID(did string) (method, id string, ok bool) {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func (r *Resolver) resolvePLC(ctx context.Context, did string) (*DIDDocument, error) {
	url := strings.TrimSuffix(r.config.PLCDirectoryURL, "/") + "/" + did
	return r.fetchDIDDocument(ctx, did, url)
}

// resolveWeb resolves did:web per the well-known convention: the
// method-specific id is a domain (with ":" path separators for a
// non-root path), fetched over HTTPS except for localhost/loopback
// hosts used in local development, which use plain HTTP.
func (r *Resolver) resolveWeb(ctx context.Context, did string) (*DIDDocument, error) {
	_, id, ok := splitDID(did)
	if !ok {
		return nil, &ErrInvalidDid{Value: did, Reason: "malformed did"}
	}

	segments := strings.Split(id, ":")
	host := segments[0]
	// The host segment is percent-encoded to carry a port (":" -> "%3A").
	host = strings.ReplaceAll(host, "%3A", ":")

	path := "/.well-known/did.json"
	if len(segments) > 1 {
		path = "/" + strings.Join(segments[1:], "/") + "/did.json"
	}

	scheme := "https"
	if isLoopbackHost(host) {
		scheme = "http"
	}

	url := fmt.Sprintf("%s://%s%s", scheme, host, path)
	return r.fetchDIDDocument(ctx, did, url)
}

func isLoopbackHost(host string) bool {
	h := host
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		h = hostOnly
	}
	return h == "localhost" || h == "127.0.0.1" || h == "::1"
}

func (r *Resolver) fetchDIDDocument(ctx context.Context, did, url string) (*DIDDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Accept", "application/did+ld+json, application/json")

	resp, err := r.config.HTTPClient.Do(req)
	if err != nil {
		return nil, &ErrDidDocument{Identifier: did, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ErrNotFound{Identifier: did}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ErrDidDocument{Identifier: did, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ErrDidDocument{Identifier: did, Reason: err.Error()}
	}

	var doc DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ErrDidDocument{Identifier: did, Reason: "invalid json: " + err.Error()}
	}
	if doc.ID != did {
		return nil, &ErrDidDocument{Identifier: did, Reason: fmt.Sprintf("id mismatch: document id %q", doc.ID)}
	}
	return &doc, nil
}
