package repo

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
)

// CIDLink is one type with two wire encodings: the distinguished JSON
// form {"$link": "<cid-string>"} and, in binary DAG-CBOR, a native tag-42
// link. Which encoding applies is decided by the serializer actually in
// use (EncodeRecord/DecodeRecord for CBOR, encoding/json for JSON), not
// by the type itself — CIDLink carries no flag of its own. Each call
// allocates: the JSON form builds the CID's string, and MarshalCBOR
// writes into a new buffer.
type CIDLink cid.Cid

// Cid returns the underlying CID.
func (l CIDLink) Cid() cid.Cid { return cid.Cid(l) }

// cidLinkJSON is the {"$link": "..."} wire shape.
type cidLinkJSON struct {
	Link string `json:"$link"`
}

func (l CIDLink) MarshalJSON() ([]byte, error) {
	return json.Marshal(cidLinkJSON{Link: cid.Cid(l).String()})
}

func (l *CIDLink) UnmarshalJSON(data []byte) error {
	var v cidLinkJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("repo: unmarshal cid-link: %w", err)
	}
	c, err := cid.Decode(v.Link)
	if err != nil {
		return fmt.Errorf("repo: unmarshal cid-link: %w", err)
	}
	*l = CIDLink(c)
	return nil
}

// MarshalCBOR writes l as a CBOR tag-42 link, the same encoding
// EncodeRecord produces for a bare cid.Cid value.
func (l CIDLink) MarshalCBOR() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCIDLink(&buf, cid.Cid(l)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalCBOR reads a CBOR tag-42 link from data, the inverse of
// MarshalCBOR.
func (l *CIDLink) UnmarshalCBOR(data []byte) error {
	v, err := decodeAny(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("repo: unmarshal cid-link: %w", err)
	}
	c, ok := v.(cid.Cid)
	if !ok {
		return fmt.Errorf("repo: unmarshal cid-link: %w: not a tag-42 link", ErrMalformedRecord)
	}
	*l = CIDLink(c)
	return nil
}
