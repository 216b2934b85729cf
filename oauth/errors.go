package oauth

import "fmt"

// ErrStateNotFound is returned when callback() is given a state value
// with no matching pending authorization, or one already consumed.
var ErrStateNotFound = fmt.Errorf("oauth: state not found or already used")

// ErrIssuerMismatch is returned when a callback or token response's
// issuer does not match the one the authorization began with.
type ErrIssuerMismatch struct {
	Expected, Got string
}

func (e *ErrIssuerMismatch) Error() string {
	return fmt.Sprintf("oauth: issuer mismatch: expected %q, got %q", e.Expected, e.Got)
}

// ErrMetadataDiscovery wraps a failure resolving protected-resource or
// authorization-server metadata.
type ErrMetadataDiscovery struct {
	URL    string
	Reason string
}

func (e *ErrMetadataDiscovery) Error() string {
	return fmt.Sprintf("oauth: metadata discovery at %s: %s", e.URL, e.Reason)
}

// ErrTokenExchange wraps a non-2xx response from the token endpoint.
type ErrTokenExchange struct {
	StatusCode int
	Body       string
}

func (e *ErrTokenExchange) Error() string {
	return fmt.Sprintf("oauth: token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// ErrSubjectMismatch is returned when the token response's "sub" does
// not resolve back to the DID the flow was started for.
type ErrSubjectMismatch struct {
	Expected, Got string
}

func (e *ErrSubjectMismatch) Error() string {
	return fmt.Sprintf("oauth: subject mismatch: expected %q, got %q", e.Expected, e.Got)
}
