package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"

)

// secp256k1Order is the order n of the secp256k1 base point, used to
// determine the "low half" for signature malleability rejection.
var secp256k1Order, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)

// signature is the raw (R, S) pair encoded as two fixed-width big-endian
// integers concatenated together, the compact form used throughout
// atproto (not ASN.1 DER).
type signature struct {
	R, S *big.Int
}

func parseCompactSignature(alg Algorithm, sig []byte) (*signature, error) {
	size := curveByteSize(alg)
	if len(sig) != 2*size {
		return nil, fmt.Errorf("crypto: %w: signature length %d, want %d", ErrInvalidSignature, len(sig), 2*size)
	}
	return &signature{
		R: new(big.Int).SetBytes(sig[:size]),
		S: new(big.Int).SetBytes(sig[size:]),
	}, nil
}

func curveByteSize(alg Algorithm) int {
	switch alg {
	case P256, Secp256k1:
		return 32
	default:
		return 0
	}
}

// VerifySignature verifies msg against sig using the public key encoded in
// didKey. secp256k1 signatures with a high-S value are rejected per
// atproto's canonicalization rule.
func VerifySignature(didKey string, msg, sig []byte) error {
	alg, pub, err := ParseDidKey(didKey)
	if err != nil {
		return err
	}
	return verify(alg, pub, msg, sig)
}

func verify(alg Algorithm, pub *ecdsa.PublicKey, msg, sig []byte) error {
	parsed, err := parseCompactSignature(alg, sig)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(msg)

	if alg == Secp256k1 {
		if err := checkLowS(alg, parsed.S); err != nil {
			return err
		}
	}

	if !ecdsa.Verify(pub, digest[:], parsed.R, parsed.S) {
		return ErrInvalidSignature
	}
	return nil
}

// checkLowS rejects secp256k1 signatures whose S value is in the upper
// half of the curve order, the non-malleable form atproto requires.
func checkLowS(alg Algorithm, s *big.Int) error {
	if alg != Secp256k1 {
		return nil
	}
	half := new(big.Int).Rsh(secp256k1Order, 1)
	if s.Cmp(half) > 0 {
		return ErrLowSSignatureNotAllowed
	}
	return nil
}
