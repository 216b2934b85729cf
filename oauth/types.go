package oauth

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ClientMetadata describes this OAuth client to the authorization
// server, per RFC 7591-alike client metadata used by AT Protocol OAuth.
type ClientMetadata struct {
	ClientID                string
	RedirectURIs            []string
	Scope                   string
	GrantTypes              []string
	TokenEndpointAuthMethod string // "none" or "private_key_jwt"
	DPoPBoundAccessTokens   bool
	JWKS                    jwk.Set
	JWKSURI                 string
}

// LocalhostClientMetadata returns the metadata for the special loopback
// development profile: clientId "http://localhost" with unregistered
// redirect URIs on 127.0.0.1/localhost, authenticated with "none".
func LocalhostClientMetadata(redirectURIs []string, scope string) ClientMetadata {
	return ClientMetadata{
		ClientID:                "http://localhost",
		RedirectURIs:            redirectURIs,
		Scope:                   scope,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethod: "none",
		DPoPBoundAccessTokens:   true,
	}
}

// ProtectedResourceMetadata is the document served at
// /.well-known/oauth-protected-resource.
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
}

// AuthorizationServerMetadata is the document served at
// /.well-known/oauth-authorization-server.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	PushedAuthorizationRequestEndpoint string  `json:"pushed_authorization_request_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	DPoPSigningAlgValuesSupported     []string `json:"dpop_signing_alg_values_supported"`
	RequirePushedAuthorizationRequests bool    `json:"require_pushed_authorization_requests"`
}

// TokenSet is the OAuth-flow credential set, bound to a DPoP key.
type TokenSet struct {
	Iss          string
	Sub          string // DID
	Aud          string
	Scope        string
	AccessToken  string
	TokenType    string // "DPoP" or "Bearer"
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthorizationState is what must be remembered between authorize() and
// callback(): enough to validate and complete the code exchange.
type AuthorizationState struct {
	Iss                string
	DPoPKey            jwk.Key
	CodeVerifier       string
	RedirectURI        string
	TokenEndpoint      string
	RevocationEndpoint string
}

// AuthorizationStateStore persists pending AuthorizationState keyed by
// the opaque "state" value, single-use and short-lived.
type AuthorizationStateStore interface {
	Put(state string, s AuthorizationState)
	// Take atomically fetches and deletes the entry, enforcing
	// single-use: a second lookup for the same state always misses.
	Take(state string) (AuthorizationState, bool)
}

// SessionStore persists the resulting TokenSet keyed by subject DID.
type SessionStore interface {
	Get(sub string) (TokenSet, bool)
	Set(sub string, t TokenSet)
	Clear(sub string)
}
