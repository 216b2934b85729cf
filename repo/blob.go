package repo

import (
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Blob is the $type: blob reference records embed for uploaded media: a
// CID-Link to the blob's content, its declared MIME type, and its size
// in bytes. Uploading the bytes themselves is an XRPC operation
// (com.atproto.repo.uploadBlob) already covered by the xrpc package —
// this type only encodes/decodes the reference a record carries.
type Blob struct {
	Ref      cid.Cid
	MimeType string
	Size     int64
}

type blobJSON struct {
	Type     string  `json:"$type"`
	Ref      CIDLink `json:"ref"`
	MimeType string  `json:"mimeType"`
	Size     int64   `json:"size"`
}

func (b Blob) MarshalJSON() ([]byte, error) {
	return json.Marshal(blobJSON{Type: "blob", Ref: CIDLink(b.Ref), MimeType: b.MimeType, Size: b.Size})
}

func (b *Blob) UnmarshalJSON(data []byte) error {
	var v blobJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("repo: unmarshal blob: %w", err)
	}
	if v.Type != "blob" {
		return fmt.Errorf("repo: unmarshal blob: %w: $type is %q", ErrMalformedRecord, v.Type)
	}
	b.Ref = v.Ref.Cid()
	b.MimeType = v.MimeType
	b.Size = v.Size
	return nil
}

// ToRecordValue returns the map[string]any form EncodeRecord expects for
// embedding this blob reference inside a larger record (e.g. a post's
// embed field). The CID is left as a bare cid.Cid, which go-ipld-cbor
// encodes as a tag-42 link directly — CIDLink's JSON dispatch isn't
// needed on the DAG-CBOR write path.
func (b Blob) ToRecordValue() map[string]any {
	return map[string]any{
		"$type":    "blob",
		"ref":      b.Ref,
		"mimeType": b.MimeType,
		"size":     b.Size,
	}
}

// BlobFromRecordValue extracts a Blob from a map decoded by
// DecodeRecord (or found nested inside one), the inverse of
// ToRecordValue.
func BlobFromRecordValue(v map[string]any) (Blob, error) {
	if typ, _ := v["$type"].(string); typ != "blob" {
		return Blob{}, fmt.Errorf("repo: blob from record value: %w: $type is %q", ErrMalformedRecord, typ)
	}
	ref, ok := v["ref"].(cid.Cid)
	if !ok {
		return Blob{}, fmt.Errorf("repo: blob from record value: %w: ref is not a cid link", ErrMalformedRecord)
	}
	mimeType, _ := v["mimeType"].(string)
	var size int64
	switch s := v["size"].(type) {
	case int64:
		size = s
	case float64:
		size = int64(s)
	}
	return Blob{Ref: ref, MimeType: mimeType, Size: size}, nil
}
