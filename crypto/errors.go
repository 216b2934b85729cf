package crypto

import "errors"

// Typed errors for cryptographic operations. Callers should use errors.Is
// for reliable detection instead of matching on error text.
var (
	// ErrUnsupportedMultikeyType is returned when a did:key prefix does not
	// match any supported curve.
	ErrUnsupportedMultikeyType = errors.New("unsupported multikey type")

	// ErrLowSSignatureNotAllowed is returned when a secp256k1 signature's S
	// value is not in the lower half of the curve order.
	ErrLowSSignatureNotAllowed = errors.New("low-S signature required")

	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidDidKey is returned when a did:key string is malformed.
	ErrInvalidDidKey = errors.New("invalid did:key")
)
