package xrpc

import "fmt"

// Error is returned for any non-2xx XRPC response. Name matches the
// per-operation error enum the server reports in the response body's
// "error" field (e.g. "ExpiredToken", "InvalidSwap"); Message is the
// human-readable detail, when present.
type Error struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xrpc: %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("xrpc: %d %s", e.StatusCode, e.Name)
}

// Is lets callers match on a bare name-carrying Error{Name: "ExpiredToken"}
// via errors.Is without caring about status code or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Name != "" && t.Name == e.Name
}

// ErrExpiredToken is a sentinel usable with errors.Is(err, xrpc.ErrExpiredToken).
var ErrExpiredToken = &Error{Name: "ExpiredToken"}

// ErrInvalidSwap is a sentinel usable with errors.Is(err, xrpc.ErrInvalidSwap).
var ErrInvalidSwap = &Error{Name: "InvalidSwap"}
