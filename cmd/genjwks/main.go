// Command genjwks generates an ES256 keypair for confidential OAuth
// client authentication (private_key_jwt), suitable for
// oauth.ClientMetadata.JWKS. The public half is what the client's
// jwks_uri serves. The oauth package itself sends no client_assertion,
// so nothing in this module signs with the private half.
//
// Usage:
//
//	go run ./cmd/genjwks [--save]
//
// Without --save the JWK is only printed to stdout. With --save it is
// also written to oauth-private-key.json (0600), which the caller is
// responsible for keeping out of version control.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

func main() {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatalf("generate private key: %v", err)
	}

	jwkKey, err := jwk.FromRaw(privateKey)
	if err != nil {
		log.Fatalf("jwk from private key: %v", err)
	}
	if err := jwkKey.Set(jwk.KeyIDKey, "oauth-client-key"); err != nil {
		log.Fatalf("set kid: %v", err)
	}
	if err := jwkKey.Set(jwk.AlgorithmKey, "ES256"); err != nil {
		log.Fatalf("set alg: %v", err)
	}
	if err := jwkKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		log.Fatalf("set use: %v", err)
	}

	jsonData, err := json.MarshalIndent(jwkKey, "", "  ")
	if err != nil {
		log.Fatalf("marshal jwk: %v", err)
	}
	fmt.Println(string(jsonData))

	if len(os.Args) > 1 && os.Args[1] == "--save" {
		const filename = "oauth-private-key.json"
		if err := os.WriteFile(filename, jsonData, 0600); err != nil {
			log.Fatalf("write %s: %v", filename, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", filename)
	}
}
