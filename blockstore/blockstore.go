// Package blockstore implements the content-addressed block store that
// backs repository storage: an in-memory store keyed by CID, a diff
// wrapper that tracks newly written blocks across a mutation, and an
// indexed reader over CAR v1 archives.
package blockstore

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Blockstore is a content-addressed mapping from CID to bytes. Writing the
// same bytes twice with the same (codec, hash) is idempotent: the CID
// returned is a pure function of (codec, hash, bytes).
type Blockstore interface {
	// ReadBlock returns the bytes stored under c, or ErrCidNotFound.
	ReadBlock(ctx context.Context, c cid.Cid) ([]byte, error)

	// ReadBlockInto behaves like ReadBlock but reuses buf's backing array
	// when it has enough capacity, to avoid an allocation on the hot path.
	ReadBlockInto(ctx context.Context, c cid.Cid, buf []byte) ([]byte, error)

	// WriteBlock hashes data with the named multihash algorithm, builds a
	// CIDv1 using codec, stores the bytes, and returns the CID.
	WriteBlock(ctx context.Context, codec uint64, hash uint64, data []byte) (cid.Cid, error)

	// Has reports whether a block is present.
	Has(ctx context.Context, c cid.Cid) (bool, error)

	// DeleteBlock removes a block. A no-op if the block is absent.
	DeleteBlock(ctx context.Context, c cid.Cid) error
}

// MemBlockstore is an in-memory Blockstore backed by a map keyed by CID.
type MemBlockstore struct {
	blocks map[string]blocks.Block
}

// NewMemBlockstore creates an empty in-memory blockstore.
func NewMemBlockstore() *MemBlockstore {
	return &MemBlockstore{blocks: make(map[string]blocks.Block, 64)}
}

var _ Blockstore = (*MemBlockstore)(nil)

func (m *MemBlockstore) ReadBlock(_ context.Context, c cid.Cid) ([]byte, error) {
	blk, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, ErrCidNotFound
	}
	return blk.RawData(), nil
}

func (m *MemBlockstore) ReadBlockInto(_ context.Context, c cid.Cid, buf []byte) ([]byte, error) {
	blk, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, ErrCidNotFound
	}
	data := blk.RawData()
	if cap(buf) < len(data) {
		buf = make([]byte, len(data))
	}
	buf = buf[:len(data)]
	copy(buf, data)
	return buf, nil
}

func (m *MemBlockstore) WriteBlock(_ context.Context, codec uint64, hash uint64, data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, hash, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("blockstore: %w: %v", ErrUnsupportedHash, err)
	}
	c := cid.NewCidV1(codec, mh)
	blk, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return cid.Undef, fmt.Errorf("blockstore: build block: %w", err)
	}
	m.blocks[c.KeyString()] = blk
	return c, nil
}

func (m *MemBlockstore) Has(_ context.Context, c cid.Cid) (bool, error) {
	_, ok := m.blocks[c.KeyString()]
	return ok, nil
}

func (m *MemBlockstore) DeleteBlock(_ context.Context, c cid.Cid) error {
	delete(m.blocks, c.KeyString())
	return nil
}

// Len returns the number of blocks currently stored.
func (m *MemBlockstore) Len() int {
	return len(m.blocks)
}

// block is an accessor used by the diff wrapper and CAR export; it is not
// part of the Blockstore interface since most callers only need ReadBlock.
func (m *MemBlockstore) block(key string) (blocks.Block, bool) {
	blk, ok := m.blocks[key]
	return blk, ok
}
