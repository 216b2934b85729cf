package repo

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/go-atproto/atproto/crypto"
	"github.com/ipfs/go-cid"
)

// RepoVersion is the atproto repository format version this module
// writes and expects to read.
const RepoVersion = 3

// Commit is the signed root object of a repository: it pins the current
// MST root and the commit it supersedes.
type Commit struct {
	DID     string
	Version int64
	Data    cid.Cid
	Rev     string
	Prev    *cid.Cid
	Sig     []byte
}

// unsignedCBOR encodes the fields covered by the signature, in DAG-CBOR
// canonical key order (ascending by key byte-length, then lexicographic):
// did, rev, data, prev?, version.
func (c *Commit) unsignedCBOR() ([]byte, error) {
	var buf bytes.Buffer
	fieldCount := uint64(4)
	if c.Prev != nil {
		fieldCount = 5
	}
	if err := writeTypeHeader(&buf, majMap, fieldCount); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "did"); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, c.DID); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "rev"); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, c.Rev); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "data"); err != nil {
		return nil, err
	}
	if err := writeCIDLink(&buf, c.Data); err != nil {
		return nil, err
	}
	if c.Prev != nil {
		if err := writeTextString(&buf, "prev"); err != nil {
			return nil, err
		}
		if err := writeCIDLink(&buf, *c.Prev); err != nil {
			return nil, err
		}
	}
	if err := writeTextString(&buf, "version"); err != nil {
		return nil, err
	}
	if err := writeUint(&buf, uint64(c.Version)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCBOR encodes the full, signed commit in DAG-CBOR canonical key
// order: did, rev, sig, data, prev?, version.
func (c *Commit) MarshalCBOR() ([]byte, error) {
	if len(c.Sig) == 0 {
		return nil, fmt.Errorf("repo: %w: commit has no signature", ErrUnsignedCommit)
	}
	var buf bytes.Buffer
	fieldCount := uint64(5)
	if c.Prev != nil {
		fieldCount = 6
	}
	if err := writeTypeHeader(&buf, majMap, fieldCount); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "did"); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, c.DID); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "rev"); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, c.Rev); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "sig"); err != nil {
		return nil, err
	}
	if err := writeByteString(&buf, c.Sig); err != nil {
		return nil, err
	}
	if err := writeTextString(&buf, "data"); err != nil {
		return nil, err
	}
	if err := writeCIDLink(&buf, c.Data); err != nil {
		return nil, err
	}
	if c.Prev != nil {
		if err := writeTextString(&buf, "prev"); err != nil {
			return nil, err
		}
		if err := writeCIDLink(&buf, *c.Prev); err != nil {
			return nil, err
		}
	}
	if err := writeTextString(&buf, "version"); err != nil {
		return nil, err
	}
	if err := writeUint(&buf, uint64(c.Version)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sign computes and attaches the commit signature over the unsigned
// field set using priv.
func (c *Commit) Sign(priv *crypto.PrivateKey) error {
	unsigned, err := c.unsignedCBOR()
	if err != nil {
		return fmt.Errorf("repo: sign commit: %w", err)
	}
	sig, err := priv.Sign(unsigned)
	if err != nil {
		return fmt.Errorf("repo: sign commit: %w", err)
	}
	c.Sig = sig
	return nil
}

// Verify checks c.Sig against the unsigned field set using the given
// did:key.
func (c *Commit) Verify(didKey string) error {
	if len(c.Sig) == 0 {
		return fmt.Errorf("repo: verify commit: %w", ErrUnsignedCommit)
	}
	unsigned, err := c.unsignedCBOR()
	if err != nil {
		return fmt.Errorf("repo: verify commit: %w", err)
	}
	return crypto.VerifySignature(didKey, unsigned, c.Sig)
}

// DecodeCommit parses a previously stored or received commit block.
func DecodeCommit(raw []byte) (*Commit, error) {
	v, err := decodeAny(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("repo: decode commit: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("repo: decode commit: %w: not a map", ErrMalformedRecord)
	}

	c := &Commit{}
	if did, ok := m["did"].(string); ok {
		c.DID = did
	} else {
		return nil, fmt.Errorf("repo: decode commit: %w: missing did", ErrMalformedRecord)
	}
	if rev, ok := m["rev"].(string); ok {
		c.Rev = rev
	}
	if version, ok := m["version"].(int64); ok {
		c.Version = version
	}
	data, ok := m["data"].(cid.Cid)
	if !ok {
		return nil, fmt.Errorf("repo: decode commit: %w: missing data link", ErrMalformedRecord)
	}
	c.Data = data
	if prev, ok := m["prev"].(cid.Cid); ok {
		c.Prev = &prev
	}
	if sig, ok := m["sig"].([]byte); ok {
		c.Sig = sig
	}
	return c, nil
}
