// Package oauth implements the AT Protocol OAuth 2.0 client: PAR +
// PKCE + Authorization Code + DPoP. Client authentication is the "none"
// method only: PAR and token requests carry client_id and no
// client_assertion, whatever ClientMetadata.TokenEndpointAuthMethod
// holds, so private_key_jwt (confidential client) authentication is not
// performed.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/go-atproto/atproto/dpop"
	"github.com/go-atproto/atproto/identity"
)

// Client drives the OAuth authorization code flow against a resolved
// user's PDS and its authorization server.
type Client struct {
	metadata   ClientMetadata
	httpClient *http.Client
	identity   *identity.Resolver
	states     AuthorizationStateStore
	sessions   SessionStore
}

// NewClient constructs a Client. httpClient should be SSRF-safe (see
// NewSSRFSafeHTTPClient) since metadata and token endpoints are
// discovered from a user-supplied handle or DID.
func NewClient(metadata ClientMetadata, identityResolver *identity.Resolver, httpClient *http.Client, states AuthorizationStateStore, sessions SessionStore) *Client {
	return &Client{
		metadata:   metadata,
		httpClient: httpClient,
		identity:   identityResolver,
		states:     states,
		sessions:   sessions,
	}
}

// Authorize resolves loginHint (a handle or DID), discovers its PDS's
// authorization server, submits a Pushed Authorization Request, and
// returns the URL the user should be redirected to.
func (c *Client) Authorize(ctx context.Context, loginHint string) (string, error) {
	id, err := c.identity.ResolveIdentity(ctx, loginHint)
	if err != nil {
		return "", fmt.Errorf("oauth: resolve identity: %w", err)
	}

	resourceMeta, err := DiscoverProtectedResourceMetadata(ctx, c.httpClient, id.PDS)
	if err != nil {
		return "", err
	}

	issuer := resourceMeta.AuthorizationServers[0]
	authServerMeta, err := DiscoverAuthorizationServerMetadata(ctx, c.httpClient, issuer)
	if err != nil {
		return "", err
	}
	if authServerMeta.PushedAuthorizationRequestEndpoint == "" {
		return "", &ErrMetadataDiscovery{URL: issuer, Reason: "no pushed_authorization_request_endpoint advertised"}
	}

	state, err := GenerateState()
	if err != nil {
		return "", err
	}
	pkce, err := GeneratePKCEChallenge()
	if err != nil {
		return "", err
	}
	dpopKey, err := dpop.GenerateKey()
	if err != nil {
		return "", err
	}

	redirectURI := c.metadata.RedirectURIs[0]

	form := url.Values{
		"response_type":         {"code"},
		"client_id":             {c.metadata.ClientID},
		"redirect_uri":          {redirectURI},
		"state":                 {state},
		"code_challenge":        {pkce.Challenge},
		"code_challenge_method": {pkce.Method},
		"scope":                 {c.metadata.Scope},
		"login_hint":            {loginHint},
	}

	requestURI, err := c.postPAR(ctx, authServerMeta.PushedAuthorizationRequestEndpoint, dpopKey, form)
	if err != nil {
		return "", err
	}

	c.states.Put(state, AuthorizationState{
		Iss:                authServerMeta.Issuer,
		DPoPKey:            dpopKey,
		CodeVerifier:       pkce.Verifier,
		RedirectURI:        redirectURI,
		TokenEndpoint:      authServerMeta.TokenEndpoint,
		RevocationEndpoint: authServerMeta.RevocationEndpoint,
	})

	authURL := authServerMeta.AuthorizationEndpoint + "?" + url.Values{
		"client_id":   {c.metadata.ClientID},
		"request_uri": {requestURI},
	}.Encode()
	return authURL, nil
}

// CallbackParams is what the redirect URI's query string carries back.
type CallbackParams struct {
	Code  string
	State string
	Iss   string
}

// Callback completes the authorization code exchange for a prior
// Authorize call and returns the resulting session.
func (c *Client) Callback(ctx context.Context, params CallbackParams) (*OAuthSession, error) {
	state, ok := c.states.Take(params.State)
	if !ok {
		return nil, ErrStateNotFound
	}
	if params.Iss != "" && params.Iss != state.Iss {
		return nil, &ErrIssuerMismatch{Expected: state.Iss, Got: params.Iss}
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {params.Code},
		"redirect_uri":  {state.RedirectURI},
		"code_verifier": {state.CodeVerifier},
		"client_id":     {c.metadata.ClientID},
	}

	tokenResp, err := c.postToken(ctx, state.TokenEndpoint, state.DPoPKey, form)
	if err != nil {
		return nil, err
	}

	if err := c.verifySubjectIssuer(ctx, tokenResp.Sub, state.Iss); err != nil {
		return nil, err
	}

	tokens := TokenSet{
		Iss:          state.Iss,
		Sub:          tokenResp.Sub,
		Scope:        tokenResp.Scope,
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
	c.sessions.Set(tokens.Sub, tokens)

	return &OAuthSession{
		client:         c,
		tokens:         tokens,
		dpopKey:        state.DPoPKey,
		tokenEndpoint:  state.TokenEndpoint,
		revokeEndpoint: state.RevocationEndpoint,
	}, nil
}

// Refresh rotates sess's tokens via grant_type=refresh_token. On
// success sess is updated in place and the SessionStore rewritten; on
// failure the stored session is cleared and an error returned.
func (c *Client) Refresh(ctx context.Context, sess *OAuthSession) error {
	if sess.tokens.RefreshToken == "" {
		return fmt.Errorf("oauth: no refresh token on session")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {sess.tokens.RefreshToken},
		"client_id":     {c.metadata.ClientID},
	}

	tokenResp, err := c.postToken(ctx, sess.tokenEndpoint, sess.dpopKey, form)
	if err != nil {
		c.sessions.Clear(sess.tokens.Sub)
		return err
	}

	refreshToken := sess.tokens.RefreshToken
	if tokenResp.RefreshToken != "" {
		refreshToken = tokenResp.RefreshToken
	}

	sess.tokens = TokenSet{
		Iss:          sess.tokens.Iss,
		Sub:          sess.tokens.Sub,
		Scope:        tokenResp.Scope,
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
	c.sessions.Set(sess.tokens.Sub, sess.tokens)
	return nil
}

// Revoke logs sess out by posting its access token to the revocation
// endpoint, if the authorization server advertised one.
func (c *Client) Revoke(ctx context.Context, sess *OAuthSession) error {
	c.sessions.Clear(sess.tokens.Sub)
	if sess.revokeEndpoint == "" {
		return nil
	}

	form := url.Values{"token": {sess.tokens.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sess.revokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oauth: build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oauth: revoke request: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

// verifySubjectIssuer resolves sub's identity and confirms its
// authorization server issuer matches expectedIss, preventing a
// malicious server from minting tokens for an identity it doesn't own.
func (c *Client) verifySubjectIssuer(ctx context.Context, sub, expectedIss string) error {
	id, err := c.identity.ResolveIdentity(ctx, sub)
	if err != nil {
		return fmt.Errorf("oauth: resolve subject identity: %w", err)
	}

	resourceMeta, err := DiscoverProtectedResourceMetadata(ctx, c.httpClient, id.PDS)
	if err != nil {
		return err
	}
	for _, srv := range resourceMeta.AuthorizationServers {
		if srv == expectedIss {
			return nil
		}
	}
	return &ErrSubjectMismatch{Expected: expectedIss, Got: strings.Join(resourceMeta.AuthorizationServers, ",")}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	Sub          string `json:"sub"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *Client) postToken(ctx context.Context, endpoint string, dpopKey jwk.Key, form url.Values) (*tokenResponse, error) {
	var out tokenResponse
	if err := c.postDPoPForm(ctx, endpoint, dpopKey, form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postPAR(ctx context.Context, endpoint string, dpopKey jwk.Key, form url.Values) (string, error) {
	var out struct {
		RequestURI string `json:"request_uri"`
		ExpiresIn  int    `json:"expires_in"`
	}
	if err := c.postDPoPForm(ctx, endpoint, dpopKey, form, &out); err != nil {
		return "", err
	}
	return out.RequestURI, nil
}

func (c *Client) postDPoPForm(ctx context.Context, endpoint string, dpopKey jwk.Key, form url.Values, out any) error {
	transport := dpop.NewTransport(c.httpClient.Transport, dpopKey)
	client := &http.Client{Timeout: c.httpClient.Timeout, Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oauth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("oauth: request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("oauth: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ErrTokenExchange{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("oauth: decode response from %s: %w", endpoint, err)
	}
	return nil
}
