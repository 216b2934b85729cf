package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DiscoverProtectedResourceMetadata fetches
// <pds>/.well-known/oauth-protected-resource and verifies it echoes the
// resource URL it was requested from.
func DiscoverProtectedResourceMetadata(ctx context.Context, httpClient *http.Client, pdsURL string) (*ProtectedResourceMetadata, error) {
	base := strings.TrimSuffix(pdsURL, "/")
	url := base + "/.well-known/oauth-protected-resource"

	var meta ProtectedResourceMetadata
	if err := fetchJSON(ctx, httpClient, url, &meta); err != nil {
		return nil, &ErrMetadataDiscovery{URL: url, Reason: err.Error()}
	}
	if meta.Resource != base {
		return nil, &ErrMetadataDiscovery{URL: url, Reason: fmt.Sprintf("resource %q does not match requested %q", meta.Resource, base)}
	}
	if len(meta.AuthorizationServers) == 0 {
		return nil, &ErrMetadataDiscovery{URL: url, Reason: "no authorization_servers listed"}
	}
	return &meta, nil
}

// DiscoverAuthorizationServerMetadata fetches
// <issuer>/.well-known/oauth-authorization-server and verifies it
// echoes the issuer URL.
func DiscoverAuthorizationServerMetadata(ctx context.Context, httpClient *http.Client, issuer string) (*AuthorizationServerMetadata, error) {
	base := strings.TrimSuffix(issuer, "/")
	url := base + "/.well-known/oauth-authorization-server"

	var meta AuthorizationServerMetadata
	if err := fetchJSON(ctx, httpClient, url, &meta); err != nil {
		return nil, &ErrMetadataDiscovery{URL: url, Reason: err.Error()}
	}
	if meta.Issuer != base {
		return nil, &ErrMetadataDiscovery{URL: url, Reason: fmt.Sprintf("issuer %q does not match requested %q", meta.Issuer, base)}
	}
	return &meta, nil
}

func fetchJSON(ctx context.Context, httpClient *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
