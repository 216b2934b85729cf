package blockstore

import (
	"fmt"
	"io"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car"
	carutil "github.com/ipld/go-car/util"
)

// DiffBlockstore wraps a MemBlockstore and records which CIDs were present
// at wrap time versus written afterward, so a caller can export exactly the
// blocks one mutation introduced (the CAR payload of a firehose commit
// event, for instance) without walking the whole repository.
type DiffBlockstore struct {
	*MemBlockstore
	preloaded map[string]bool
}

// NewDiffBlockstore wraps bs, snapshotting its current keys as preloaded.
// Any block written after this call is considered new.
func NewDiffBlockstore(bs *MemBlockstore) *DiffBlockstore {
	pre := make(map[string]bool, len(bs.blocks))
	for k := range bs.blocks {
		pre[k] = true
	}
	return &DiffBlockstore{MemBlockstore: bs, preloaded: pre}
}

// NewBlocks returns the blocks written since the diff wrapper was created.
func (d *DiffBlockstore) NewBlocks() []blocks.Block {
	var out []blocks.Block
	for k, blk := range d.MemBlockstore.blocks {
		if !d.preloaded[k] {
			out = append(out, blk)
		}
	}
	return out
}

// ExportDiffCAR writes only the new blocks as a CAR v1 archive with root
// equal to the given CID; if root itself is new, it is written first.
func (d *DiffBlockstore) ExportDiffCAR(w io.Writer, root cid.Cid) error {
	h := &car.CarHeader{Roots: []cid.Cid{root}, Version: 1}
	if err := car.WriteHeader(h, w); err != nil {
		return fmt.Errorf("blockstore: write diff car header: %w", err)
	}

	if blk, ok := d.MemBlockstore.block(root.KeyString()); ok && !d.preloaded[root.KeyString()] {
		if err := carutil.LdWrite(w, blk.Cid().Bytes(), blk.RawData()); err != nil {
			return fmt.Errorf("blockstore: write diff root block: %w", err)
		}
	}

	for k, blk := range d.MemBlockstore.blocks {
		if d.preloaded[k] || k == root.KeyString() {
			continue
		}
		if err := carutil.LdWrite(w, blk.Cid().Bytes(), blk.RawData()); err != nil {
			return fmt.Errorf("blockstore: write diff block %s: %w", blk.Cid(), err)
		}
	}
	return nil
}

// ExportCAR writes every block in the underlying store as a CAR v1
// archive, root block first.
func ExportCAR(w io.Writer, bs *MemBlockstore, root cid.Cid) error {
	h := &car.CarHeader{Roots: []cid.Cid{root}, Version: 1}
	if err := car.WriteHeader(h, w); err != nil {
		return fmt.Errorf("blockstore: write car header: %w", err)
	}

	rootBlk, ok := bs.block(root.KeyString())
	if !ok {
		return fmt.Errorf("blockstore: root block not found: %s", root)
	}
	if err := carutil.LdWrite(w, root.Bytes(), rootBlk.RawData()); err != nil {
		return fmt.Errorf("blockstore: write root block: %w", err)
	}

	for k, blk := range bs.blocks {
		if k == root.KeyString() {
			continue
		}
		if err := carutil.LdWrite(w, blk.Cid().Bytes(), blk.RawData()); err != nil {
			return fmt.Errorf("blockstore: write block %s: %w", blk.Cid(), err)
		}
	}
	return nil
}
