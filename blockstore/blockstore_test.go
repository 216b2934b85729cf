package blockstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/multiformats/go-multihash"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := NewMemBlockstore()

	data := []byte(`{"hello":"world"}`)
	c1, err := bs.WriteBlock(ctx, 0x71, multihash.SHA2_256, data)
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	c2, err := bs.WriteBlock(ctx, 0x71, multihash.SHA2_256, data)
	if err != nil {
		t.Fatalf("WriteBlock (second): %v", err)
	}
	if !c1.Equals(c2) {
		t.Errorf("WriteBlock not idempotent: %s != %s", c1, c2)
	}

	got, err := bs.ReadBlock(ctx, c1)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadBlock = %q, want %q", got, data)
	}
}

func TestReadBlockNotFound(t *testing.T) {
	ctx := context.Background()
	bs := NewMemBlockstore()
	other, _ := bs.WriteBlock(ctx, 0x71, multihash.SHA2_256, []byte("x"))
	_ = bs.DeleteBlock(ctx, other)

	if _, err := bs.ReadBlock(ctx, other); err != ErrCidNotFound {
		t.Errorf("ReadBlock after delete = %v, want ErrCidNotFound", err)
	}
}

func TestDiffBlockstoreTracksNewBlocks(t *testing.T) {
	ctx := context.Background()
	bs := NewMemBlockstore()
	preexisting, err := bs.WriteBlock(ctx, 0x71, multihash.SHA2_256, []byte("pre"))
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	diff := NewDiffBlockstore(bs)
	newCid, err := diff.WriteBlock(ctx, 0x71, multihash.SHA2_256, []byte("new"))
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	newBlocks := diff.NewBlocks()
	if len(newBlocks) != 1 {
		t.Fatalf("NewBlocks() returned %d blocks, want 1", len(newBlocks))
	}
	if !newBlocks[0].Cid().Equals(newCid) {
		t.Errorf("NewBlocks()[0].Cid() = %s, want %s", newBlocks[0].Cid(), newCid)
	}

	var buf bytes.Buffer
	if err := diff.ExportDiffCAR(&buf, newCid); err != nil {
		t.Fatalf("ExportDiffCAR: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("ExportDiffCAR wrote no bytes")
	}

	_ = preexisting
}
