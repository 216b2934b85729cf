package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"testing"
)

func TestDidKeyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		gen  func() (*PrivateKey, error)
	}{
		{"P-256", GenerateP256},
		{"secp256k1", GenerateSecp256k1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			priv, err := c.gen()
			if err != nil {
				t.Fatalf("generate: %v", err)
			}

			didKey, err := priv.DidKey()
			if err != nil {
				t.Fatalf("DidKey: %v", err)
			}

			alg, pub, err := ParseDidKey(didKey)
			if err != nil {
				t.Fatalf("ParseDidKey: %v", err)
			}
			if alg != priv.Algorithm {
				t.Errorf("algorithm = %s, want %s", alg, priv.Algorithm)
			}
			if pub.X.Cmp(priv.Key.X) != 0 || pub.Y.Cmp(priv.Key.Y) != 0 {
				t.Errorf("round-tripped public key does not match original")
			}

			formatted, err := FormatDidKey(alg, pub)
			if err != nil {
				t.Fatalf("FormatDidKey: %v", err)
			}
			if formatted != didKey {
				t.Errorf("formatDidKey(parseDidKey(k)) = %s, want %s", formatted, didKey)
			}
		})
	}
}

func TestParseDidKeyRejectsUnknownPrefix(t *testing.T) {
	_, _, err := ParseDidKey("did:key:z6LShs9G9xuGW9ABT2p6UdGqjpmPdJRT")
	if err == nil {
		t.Fatal("expected error for malformed did:key")
	}
}

func TestVerifySignature(t *testing.T) {
	priv, err := GenerateP256()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	didKey, err := priv.DidKey()
	if err != nil {
		t.Fatalf("DidKey: %v", err)
	}

	msg := []byte("hello atproto")
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv.Key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	if err := VerifySignature(didKey, msg, sig); err != nil {
		t.Errorf("VerifySignature: %v", err)
	}

	sig[0] ^= 0xff
	if err := VerifySignature(didKey, msg, sig); err == nil {
		t.Error("expected verification failure for corrupted signature")
	}
}
