// Package repo implements repository operations — record CRUD, commit
// signing, and CAR export — against an in-memory Merkle Search Tree, the
// client-side counterpart of a PDS's repo storage.
package repo

import (
	"bufio"
	"bytes"
	"fmt"

	cbornode "github.com/ipfs/go-ipld-cbor"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	dagCBORCodec = 0x71
	sha2_256     = multihash.SHA2_256
)

// EncodeRecord serializes a record value to DAG-CBOR. Values are plain Go
// data (map[string]any, []any, string, int64, float64, bool, nil,
// []byte); a CID reference embedded in a record (e.g. a blob link) should
// be a cid.Cid value, which go-ipld-cbor encodes as a CBOR tag-42 link.
func EncodeRecord(v any) ([]byte, error) {
	b, err := cbornode.DumpObject(v)
	if err != nil {
		return nil, fmt.Errorf("repo: encode record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses DAG-CBOR bytes back into generic Go values: maps
// become map[string]any, arrays become []any, and CID links decode to
// cid.Cid, the mirror image of EncodeRecord's input convention.
func DecodeRecord(data []byte) (map[string]any, error) {
	v, err := decodeAny(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("repo: decode record: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("repo: decode record: %w: top-level value is not a map", ErrMalformedRecord)
	}
	return m, nil
}

// ComputeCID returns the CIDv1 (DAG-CBOR, SHA2-256) of raw DAG-CBOR bytes.
func ComputeCID(raw []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(raw, sha2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("repo: compute cid: %w", err)
	}
	return cid.NewCidV1(dagCBORCodec, mh), nil
}
