// Package crypto implements the multikey/did:key encoding and the
// ECDSA signature operations used across identity documents, repository
// commits, and DPoP proofs: P-256 and secp256k1 keypairs, compressed SEC1
// public key encoding, and multibase(base58btc)-wrapped multicodec keys.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/multiformats/go-multibase"
)

// Algorithm names a supported signing curve.
type Algorithm string

const (
	P256       Algorithm = "P-256"
	Secp256k1  Algorithm = "secp256k1"
	didKeyPfx            = "did:key:"
)

// multicodec prefixes for compressed SEC1 public keys, per the did:key spec.
var multicodecPrefix = map[Algorithm][2]byte{
	P256:      {0x80, 0x24},
	Secp256k1: {0xe7, 0x01},
}

func prefixToAlgorithm(b0, b1 byte) (Algorithm, bool) {
	for alg, p := range multicodecPrefix {
		if p[0] == b0 && p[1] == b1 {
			return alg, true
		}
	}
	return "", false
}

// PrivateKey wraps an ECDSA private key together with the curve it was
// generated on, since Go's crypto/ecdsa type alone does not disambiguate
// secp256k1 from a generic elliptic.Curve for our purposes.
type PrivateKey struct {
	Algorithm Algorithm
	Key       *ecdsa.PrivateKey
}

// GenerateP256 generates a fresh P-256 keypair.
func GenerateP256() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate P-256 key: %w", err)
	}
	return &PrivateKey{Algorithm: P256, Key: key}, nil
}

// GenerateSecp256k1 generates a fresh secp256k1 keypair.
func GenerateSecp256k1() (*PrivateKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate secp256k1 key: %w", err)
	}
	return &PrivateKey{Algorithm: Secp256k1, Key: priv.ToECDSA()}, nil
}

// DidKey returns the did:key string for the public part of k.
func (k *PrivateKey) DidKey() (string, error) {
	return FormatDidKey(k.Algorithm, &k.Key.PublicKey)
}

// compressPoint returns the compressed SEC1 encoding of a public key on the
// given algorithm's curve.
func compressPoint(alg Algorithm, pub *ecdsa.PublicKey) ([]byte, error) {
	switch alg {
	case P256:
		return elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y), nil
	case Secp256k1:
		var x, y secp256k1.FieldVal
		x.SetByteSlice(pub.X.Bytes())
		y.SetByteSlice(pub.Y.Bytes())
		pk := secp256k1.NewPublicKey(&x, &y)
		return pk.SerializeCompressed(), nil
	default:
		return nil, ErrUnsupportedMultikeyType
	}
}

// decompressPoint inverts compressPoint.
func decompressPoint(alg Algorithm, compressed []byte) (*ecdsa.PublicKey, error) {
	switch alg {
	case P256:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressed)
		if x == nil {
			return nil, fmt.Errorf("crypto: %w: malformed P-256 point", ErrInvalidDidKey)
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
	case Secp256k1:
		pk, err := secp256k1.ParsePubKey(compressed)
		if err != nil {
			return nil, fmt.Errorf("crypto: %w: %v", ErrInvalidDidKey, err)
		}
		return pk.ToECDSA(), nil
	default:
		return nil, ErrUnsupportedMultikeyType
	}
}

// FormatMultikey encodes a public key as multicodec-prefixed compressed
// SEC1 bytes, the inverse of ParseDidKey before multibase wrapping.
func FormatMultikey(alg Algorithm, pub *ecdsa.PublicKey) ([]byte, error) {
	prefix, ok := multicodecPrefix[alg]
	if !ok {
		return nil, ErrUnsupportedMultikeyType
	}
	compressed, err := compressPoint(alg, pub)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2+len(compressed))
	out = append(out, prefix[0], prefix[1])
	out = append(out, compressed...)
	return out, nil
}

// FormatDidKey formats a public key as a did:key string:
// "did:key:" + multibase(base58btc, multicodecPrefix || compressedPoint).
func FormatDidKey(alg Algorithm, pub *ecdsa.PublicKey) (string, error) {
	multikey, err := FormatMultikey(alg, pub)
	if err != nil {
		return "", err
	}
	encoded, err := multibase.Encode(multibase.Base58BTC, multikey)
	if err != nil {
		return "", fmt.Errorf("crypto: multibase encode: %w", err)
	}
	return didKeyPfx + encoded, nil
}

// ParseDidKey strips "did:key:", multibase-decodes, matches the two-byte
// multicodec prefix, and returns the algorithm with the decompressed
// public key.
func ParseDidKey(didKey string) (Algorithm, *ecdsa.PublicKey, error) {
	if len(didKey) <= len(didKeyPfx) || didKey[:len(didKeyPfx)] != didKeyPfx {
		return "", nil, fmt.Errorf("crypto: %w: missing did:key: prefix", ErrInvalidDidKey)
	}
	_, data, err := multibase.Decode(didKey[len(didKeyPfx):])
	if err != nil {
		return "", nil, fmt.Errorf("crypto: %w: multibase decode: %v", ErrInvalidDidKey, err)
	}
	if len(data) < 3 {
		return "", nil, fmt.Errorf("crypto: %w: key too short", ErrInvalidDidKey)
	}
	alg, ok := prefixToAlgorithm(data[0], data[1])
	if !ok {
		return "", nil, ErrUnsupportedMultikeyType
	}
	pub, err := decompressPoint(alg, data[2:])
	if err != nil {
		return "", nil, err
	}
	return alg, pub, nil
}
