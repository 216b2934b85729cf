// Package dpop implements RFC 9449 Demonstrating Proof-of-Possession:
// per-request proof JWTs bound to a client-held key, per-origin nonce
// tracking, and replay-once-on-challenge recovery, wrapped as an
// http.RoundTripper.
package dpop

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// GenerateKey creates a new ES256 (P-256) DPoP signing key. Each OAuth
// session should use its own key, held for the session's lifetime.
func GenerateKey() (jwk.Key, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("dpop: generate key: %w", err)
	}
	key, err := jwk.FromRaw(priv)
	if err != nil {
		return nil, fmt.Errorf("dpop: key from raw: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256); err != nil {
		return nil, fmt.Errorf("dpop: set algorithm: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("dpop: set key usage: %w", err)
	}
	return key, nil
}

// PublicJWKS returns a one-key JWK Set exposing key's public half, the
// shape an OAuth client publishes at its jwks_uri.
func PublicJWKS(key jwk.Key) (jwk.Set, error) {
	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("dpop: public key: %w", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("dpop: add key to set: %w", err)
	}
	return set, nil
}
