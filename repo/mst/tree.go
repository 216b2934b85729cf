package mst

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Blockstore is the subset of blockstore.Blockstore that tree building and
// walking needs. Declared locally so this package does not import
// blockstore and create a dependency cycle risk down the line.
type Blockstore interface {
	ReadBlock(ctx context.Context, c cid.Cid) ([]byte, error)
	WriteBlock(ctx context.Context, codec uint64, hash uint64, data []byte) (cid.Cid, error)
}

const (
	dagCBORCodec = 0x71
	sha2_256     = multihash.SHA2_256
)

// LeafEntry is one key/value pair to be placed into the tree.
type LeafEntry struct {
	Key   []byte
	Value cid.Cid
}

// BuildRoot builds the full tree for the given entries, writing every
// node it creates to bs, and returns the root node's CID. The entries
// need not be pre-sorted; BuildRoot sorts a copy. An empty entry set
// still produces a (single, entry-less) root node, so a freshly
// initialized repository has a well-defined root CID.
//
// The tree is rebuilt from scratch from the full canonical entry set on
// every call rather than incrementally mutated, trading some redundant
// block writes (offset by blocks being idempotent under the same CID)
// for an implementation that cannot drift from the "equal content implies
// equal root" invariant.
func BuildRoot(ctx context.Context, bs Blockstore, entries []LeafEntry) (cid.Cid, error) {
	sorted := make([]LeafEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0 })

	return buildSubtree(ctx, bs, sorted)
}

func buildSubtree(ctx context.Context, bs Blockstore, entries []LeafEntry) (cid.Cid, error) {
	if len(entries) == 0 {
		var empty Node
		var buf bytes.Buffer
		if err := empty.MarshalCBOR(&buf); err != nil {
			return cid.Undef, fmt.Errorf("mst: encode empty node: %w", err)
		}
		return bs.WriteBlock(ctx, dagCBORCodec, sha2_256, buf.Bytes())
	}

	layer := 0
	for _, e := range entries {
		if d := KeyDepth(e.Key); d > layer {
			layer = d
		}
	}

	var node Node
	var pending []LeafEntry

	flush := func() (*cid.Cid, error) {
		if len(pending) == 0 {
			return nil, nil
		}
		c, err := buildSubtree(ctx, bs, pending)
		pending = nil
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	for _, e := range entries {
		if KeyDepth(e.Key) == layer {
			sub, err := flush()
			if err != nil {
				return cid.Undef, err
			}
			if len(node.Entries) == 0 {
				node.Left = sub
			} else {
				node.Entries[len(node.Entries)-1].Tree = sub
			}
			node.Entries = append(node.Entries, NodeEntry{Key: e.Key, Value: e.Value})
		} else {
			pending = append(pending, e)
		}
	}
	trailing, err := flush()
	if err != nil {
		return cid.Undef, err
	}
	// entries is non-empty here, and layer is its max depth, so at least
	// one entry always lands at KeyDepth == layer: node.Entries can't be
	// empty when we reach this point.
	node.Entries[len(node.Entries)-1].Tree = trailing

	var buf bytes.Buffer
	if err := node.MarshalCBOR(&buf); err != nil {
		return cid.Undef, fmt.Errorf("mst: encode node: %w", err)
	}
	return bs.WriteBlock(ctx, dagCBORCodec, sha2_256, buf.Bytes())
}

// ReadTree decodes the tree rooted at root into a flat key -> value map.
func ReadTree(ctx context.Context, bs Blockstore, root cid.Cid) (map[string]cid.Cid, error) {
	out := make(map[string]cid.Cid)
	if err := walk(ctx, bs, root, out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(ctx context.Context, bs Blockstore, root cid.Cid, out map[string]cid.Cid) error {
	raw, err := bs.ReadBlock(ctx, root)
	if err != nil {
		return fmt.Errorf("mst: read node %s: %w", root, err)
	}
	var node Node
	if err := node.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("mst: decode node %s: %w", root, err)
	}
	if node.Left != nil {
		if err := walk(ctx, bs, *node.Left, out); err != nil {
			return err
		}
	}
	for _, e := range node.Entries {
		out[string(e.Key)] = e.Value
		if e.Tree != nil {
			if err := walk(ctx, bs, *e.Tree, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get looks up a single key by walking the tree rooted at root.
func Get(ctx context.Context, bs Blockstore, root cid.Cid, key []byte) (cid.Cid, bool, error) {
	entries, err := ReadTree(ctx, bs, root)
	if err != nil {
		return cid.Undef, false, err
	}
	v, ok := entries[string(key)]
	return v, ok, nil
}
