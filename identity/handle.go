package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const dnsTXTPrefix = "did="

// ResolveHandle resolves a handle to a DID by racing a DNS TXT lookup
// against an HTTPS well-known lookup; whichever responds first with a
// valid result wins.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if !looksLikeHandle(handle) {
		return "", &ErrInvalidHandle{Value: handle, Reason: "malformed handle"}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		did string
		err error
	}
	results := make(chan result, 2)

	go func() {
		did, err := r.resolveHandleDNS(ctx, handle)
		results <- result{did, err}
	}()
	go func() {
		did, err := r.resolveHandleWellKnown(ctx, handle)
		results <- result{did, err}
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err == nil && res.did != "" {
			return res.did, nil
		}
		if firstErr == nil {
			firstErr = res.err
		}
	}
	if firstErr == nil {
		firstErr = &ErrNotFound{Identifier: handle}
	}
	return "", firstErr
}

func looksLikeHandle(handle string) bool {
	return strings.Contains(handle, ".") && !strings.HasPrefix(handle, "did:")
}

func (r *Resolver) resolveHandleDNS(ctx context.Context, handle string) (string, error) {
	name := "_atproto." + handle
	records, err := r.config.DNSResolver.LookupTXT(ctx, name)
	if err != nil {
		return "", &ErrDnsResolver{Cause: err}
	}
	for _, rec := range records {
		if strings.HasPrefix(rec, dnsTXTPrefix) {
			return strings.TrimPrefix(rec, dnsTXTPrefix), nil
		}
	}
	return "", &ErrNotFound{Identifier: handle}
}

func (r *Resolver) resolveHandleWellKnown(ctx context.Context, handle string) (string, error) {
	scheme := "https"
	if isLoopbackHost(handle) {
		scheme = "http"
	}
	url := scheme + "://" + handle + "/.well-known/atproto-did"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("identity: build request: %w", err)
	}

	resp, err := r.config.HTTPClient.Do(req)
	if err != nil {
		return "", &ErrNotFound{Identifier: handle}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ErrNotFound{Identifier: handle}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return "", &ErrNotFound{Identifier: handle}
	}

	did := strings.TrimSpace(string(body))
	if !strings.HasPrefix(did, "did:") {
		return "", &ErrDidDocument{Identifier: handle, Reason: "well-known response is not a did"}
	}
	return did, nil
}
