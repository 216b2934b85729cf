package mst

import (
	"context"
	"crypto/sha256"
	"errors"
	"math/bits"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// memStore is a minimal standalone Blockstore implementation for tests, so
// this package's tests do not need to import the blockstore package.
type memStore struct {
	blocks map[string]blocks.Block
}

func newMemStore() *memStore { return &memStore{blocks: make(map[string]blocks.Block)} }

func (m *memStore) ReadBlock(_ context.Context, c cid.Cid) ([]byte, error) {
	b, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, errors.New("mst test: block not found")
	}
	return b.RawData(), nil
}

func (m *memStore) WriteBlock(_ context.Context, codec uint64, hash uint64, data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, hash, -1)
	if err != nil {
		return cid.Undef, err
	}
	c := cid.NewCidV1(codec, mh)
	blk, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return cid.Undef, err
	}
	m.blocks[c.KeyString()] = blk
	return c, nil
}

func fakeValueCID(t *testing.T, bs Blockstore, s string) cid.Cid {
	t.Helper()
	c, err := bs.WriteBlock(context.Background(), dagCBORCodec, sha2_256, []byte(s))
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	return c
}

func TestBuildRootDeterministicUnderInsertionOrder(t *testing.T) {
	bs := newMemStore()
	keys := []string{"app.bsky.feed.post/a", "app.bsky.feed.post/b", "app.bsky.feed.post/c", "app.bsky.actor.profile/self"}

	forward := make([]LeafEntry, len(keys))
	backward := make([]LeafEntry, len(keys))
	for i, k := range keys {
		v := fakeValueCID(t, bs, k)
		forward[i] = LeafEntry{Key: []byte(k), Value: v}
		backward[len(keys)-1-i] = LeafEntry{Key: []byte(k), Value: v}
	}

	rootA, err := BuildRoot(context.Background(), bs, forward)
	if err != nil {
		t.Fatalf("BuildRoot forward: %v", err)
	}
	rootB, err := BuildRoot(context.Background(), bs, backward)
	if err != nil {
		t.Fatalf("BuildRoot backward: %v", err)
	}
	if !rootA.Equals(rootB) {
		t.Errorf("root depends on insertion order: %s != %s", rootA, rootB)
	}
}

func TestBuildRootEmptyTreeIsWellDefined(t *testing.T) {
	bs := newMemStore()
	root, err := BuildRoot(context.Background(), bs, nil)
	if err != nil {
		t.Fatalf("BuildRoot empty: %v", err)
	}
	entries, err := ReadTree(context.Background(), bs, root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty tree, got %d entries", len(entries))
	}
}

func TestReadTreeRoundTripsAllEntries(t *testing.T) {
	bs := newMemStore()
	keys := []string{"x/1", "x/2", "x/3", "y/1", "z/999"}
	var entries []LeafEntry
	want := make(map[string]cid.Cid)
	for _, k := range keys {
		v := fakeValueCID(t, bs, k)
		entries = append(entries, LeafEntry{Key: []byte(k), Value: v})
		want[k] = v
	}

	root, err := BuildRoot(context.Background(), bs, entries)
	if err != nil {
		t.Fatalf("BuildRoot: %v", err)
	}
	got, err := ReadTree(context.Background(), bs, root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		gv, ok := got[k]
		if !ok || !gv.Equals(v) {
			t.Errorf("entry %q = %v, want %v", k, gv, v)
		}
	}
}

func TestGetFindsExistingKeyAndMissesAbsentKey(t *testing.T) {
	bs := newMemStore()
	v1 := fakeValueCID(t, bs, "present")
	root, err := BuildRoot(context.Background(), bs, []LeafEntry{{Key: []byte("app.bsky.feed.post/present"), Value: v1}})
	if err != nil {
		t.Fatalf("BuildRoot: %v", err)
	}

	got, ok, err := Get(context.Background(), bs, root, []byte("app.bsky.feed.post/present"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || !got.Equals(v1) {
		t.Errorf("Get present = (%v, %v), want (%v, true)", got, ok, v1)
	}

	_, ok, err = Get(context.Background(), bs, root, []byte("app.bsky.feed.post/absent"))
	if err != nil {
		t.Fatalf("Get absent: %v", err)
	}
	if ok {
		t.Error("Get absent key returned ok=true")
	}
}

func TestKeyDepthDeterministic(t *testing.T) {
	d1 := KeyDepth([]byte("app.bsky.feed.post/3jx2c"))
	d2 := KeyDepth([]byte("app.bsky.feed.post/3jx2c"))
	if d1 != d2 {
		t.Errorf("KeyDepth not deterministic: %d != %d", d1, d2)
	}
}

// leadingZeroBitPairs is a direct, bit-by-bit restatement of the AT
// Protocol depth formula ("count leading zero bits of sha256(key),
// divide by 2"), independent of KeyDepth's per-byte group-counting
// loop, so this test catches a divergence between the two instead of
// just checking KeyDepth against itself.
func leadingZeroBitPairs(key []byte) int {
	sum := sha256.Sum256(key)
	zeros := 0
	for _, b := range sum {
		lz := bits.LeadingZeros8(b)
		zeros += lz
		if lz < 8 {
			break
		}
	}
	return zeros / 2
}

func TestKeyDepthMatchesBitDefinition(t *testing.T) {
	keys := [][]byte{
		[]byte("app.bsky.feed.post/3jx2c"),
		[]byte("com.example.record/abc123"),
		[]byte(""),
		[]byte("a"),
		[]byte("the quick brown fox"),
		[]byte("2653ae71"),
		[]byte("88bfafc7"),
		[]byte("2a92d355"),
		[]byte("9cd8e14e"),
	}
	for _, k := range keys {
		if got, want := KeyDepth(k), leadingZeroBitPairs(k); got != want {
			t.Errorf("KeyDepth(%q) = %d, want %d", k, got, want)
		}
	}
}

func TestKeyDepthMostKeysAreShallow(t *testing.T) {
	// Leading zero 2-bit groups should distribute ~75%/~19%/~5%/...
	// across depths, so a few dozen arbitrary keys should already show
	// depth 0 dominating and depth >1 being rare. A buggy depth
	// function that only triggers on a literal 0x00 hash-prefix byte
	// (1/256 of keys) would fail this by landing nearly everything at
	// depth 0 in a way inconsistent with leadingZeroBitPairs above, or
	// would disagree with it on the ~19% of keys that belong at depth 1.
	zero, nonzero := 0, 0
	for i := 0; i < 64; i++ {
		k := []byte{byte(i), byte(i >> 3), byte(i * 7)}
		if KeyDepth(k) == 0 {
			zero++
		} else {
			nonzero++
		}
	}
	if zero == 0 || nonzero == 0 {
		t.Fatalf("expected a mix of depth-0 and depth>0 keys, got zero=%d nonzero=%d", zero, nonzero)
	}
}
