package repo

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func mustTestCid(t *testing.T, data string) cid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte(data), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash sum: %v", err)
	}
	return cid.NewCidV1(dagCBORCodec, mh)
}

func TestCIDLinkJSONRoundTrip(t *testing.T) {
	c := mustTestCid(t, "hello")
	link := CIDLink(c)

	data, err := json.Marshal(link)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	if m["$link"] != c.String() {
		t.Fatalf("$link = %q, want %q", m["$link"], c.String())
	}

	var got CIDLink
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Cid().Equals(c) {
		t.Fatalf("round trip cid = %s, want %s", got.Cid(), c)
	}
}

func TestCIDLinkCBORRoundTrip(t *testing.T) {
	c := mustTestCid(t, "world")
	link := CIDLink(c)

	data, err := link.MarshalCBOR()
	if err != nil {
		t.Fatalf("marshal cbor: %v", err)
	}

	var got CIDLink
	if err := got.UnmarshalCBOR(data); err != nil {
		t.Fatalf("unmarshal cbor: %v", err)
	}
	if !got.Cid().Equals(c) {
		t.Fatalf("round trip cid = %s, want %s", got.Cid(), c)
	}
}

func TestCIDLinkCBORMatchesRecordEncoding(t *testing.T) {
	c := mustTestCid(t, "matches")

	direct, err := EncodeRecord(map[string]any{"ref": c})
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	decoded, err := DecodeRecord(direct)
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	got, ok := decoded["ref"].(cid.Cid)
	if !ok || !got.Equals(c) {
		t.Fatalf("decoded ref = %#v, want %s", decoded["ref"], c)
	}

	var buf bytes.Buffer
	if err := writeCIDLink(&buf, c); err != nil {
		t.Fatalf("writeCIDLink: %v", err)
	}
	linkBytes, err := CIDLink(c).MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), linkBytes) {
		t.Fatalf("CIDLink.MarshalCBOR diverges from writeCIDLink")
	}
	if !bytes.Contains(direct, linkBytes) {
		t.Fatalf("CIDLink.MarshalCBOR bytes not found in EncodeRecord output")
	}
}
