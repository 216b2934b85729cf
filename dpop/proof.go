package dpop

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// canonicalHTU computes htu per RFC 9449: scheme://host/path with the
// query string stripped and the host lowercased.
func canonicalHTU(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("dpop: parse url: %w", err)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// BuildProof constructs a DPoP proof JWT for one HTTP request.
// nonce and accessToken are optional: nonce is the latest server-issued
// nonce for the request's origin (empty on a cold origin), accessToken
// is included (as the "ath" claim) whenever the request also carries an
// Authorization: DPoP <token> header.
func BuildProof(key jwk.Key, method, rawURL, nonce, accessToken string) (string, error) {
	htu, err := canonicalHTU(rawURL)
	if err != nil {
		return "", err
	}

	pub, err := key.PublicKey()
	if err != nil {
		return "", fmt.Errorf("dpop: public key: %w", err)
	}

	builder := jwt.NewBuilder().
		Claim("htm", method).
		Claim("htu", htu).
		Claim("iat", time.Now().Unix()).
		Claim("jti", generateJTI())

	if nonce != "" {
		builder = builder.Claim("nonce", nonce)
	}
	if accessToken != "" {
		builder = builder.Claim("ath", hashAccessToken(accessToken))
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("dpop: build claims: %w", err)
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("dpop: marshal claims: %w", err)
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.AlgorithmKey, jwa.ES256); err != nil {
		return "", fmt.Errorf("dpop: set alg header: %w", err)
	}
	if err := headers.Set(jws.TypeKey, "dpop+jwt"); err != nil {
		return "", fmt.Errorf("dpop: set typ header: %w", err)
	}
	if err := headers.Set(jws.JWKKey, pub); err != nil {
		return "", fmt.Errorf("dpop: set jwk header: %w", err)
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.ES256, key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", fmt.Errorf("dpop: sign proof: %w", err)
	}
	return string(signed), nil
}

func generateJTI() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func hashAccessToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
