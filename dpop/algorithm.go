package dpop

import "fmt"

// supportedAlgorithms lists the signing algorithms this client can
// produce DPoP proofs with, in preference order. ES256 is the floor
// every AT Protocol authorization server is expected to accept.
var supportedAlgorithms = []string{"ES256"}

// NegotiateAlgorithm intersects the client's supported algorithms with
// the authorization server's advertised list and returns the first
// mutually supported one. Fails fast if the intersection is empty.
func NegotiateAlgorithm(serverSupported []string) (string, error) {
	for _, client := range supportedAlgorithms {
		for _, server := range serverSupported {
			if client == server {
				return client, nil
			}
		}
	}
	return "", fmt.Errorf("dpop: no mutually supported signing algorithm (client: %v, server: %v)", supportedAlgorithms, serverSupported)
}
