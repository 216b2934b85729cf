package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// Sign produces a compact (R || S) signature over sha256(msg), normalizing
// secp256k1 signatures to the low-S form VerifySignature requires.
func (k *PrivateKey) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, k.Key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	if k.Algorithm == Secp256k1 {
		s = toLowS(s)
	}
	size := curveByteSize(k.Algorithm)
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out, nil
}

// toLowS flips s to n-s when it falls in the curve's upper half, the
// canonical form atproto's secp256k1 signatures require.
func toLowS(s *big.Int) *big.Int {
	half := new(big.Int).Rsh(secp256k1Order, 1)
	if s.Cmp(half) > 0 {
		return new(big.Int).Sub(secp256k1Order, s)
	}
	return s
}
