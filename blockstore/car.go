package blockstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car"
	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

type blockLocation struct {
	offset int64
	length int64
}

// CarReader is an append-only, indexed reader over a CAR v1 archive. The
// index from CID to (offset, length) is built by one streaming pass over
// the archive at construction time; each block's multihash is recomputed
// and checked against its CID as it is indexed. Random-access reads after
// that use the supplied io.ReaderAt and never re-scan the file.
type CarReader struct {
	ra    io.ReaderAt
	Roots []cid.Cid
	index map[string]blockLocation
}

// NewCarReader indexes the CAR archive readable through both r (a single
// forward pass) and ra (random access for later reads; typically the same
// underlying file opened twice, or an *os.File satisfying both).
func NewCarReader(r io.Reader, ra io.ReaderAt) (*CarReader, error) {
	tr := &trackingReader{r: r}

	header, err := car.ReadHeader(tr)
	if err != nil {
		return nil, fmt.Errorf("blockstore: read car header: %w", err)
	}

	index := make(map[string]blockLocation)
	for {
		blockLen, err := varint.ReadUvarint(tr)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("blockstore: read block length: %w", err)
		}

		buf := make([]byte, blockLen)
		bodyStart := tr.pos
		if _, err := io.ReadFull(tr, buf); err != nil {
			return nil, fmt.Errorf("blockstore: read block body: %w", err)
		}

		c, n, err := cid.CidFromBytes(buf)
		if err != nil {
			return nil, fmt.Errorf("blockstore: parse cid: %w", err)
		}
		data := buf[n:]

		if err := verifyBlockHash(c, data); err != nil {
			return nil, err
		}

		index[c.KeyString()] = blockLocation{
			offset: bodyStart + int64(n),
			length: int64(len(data)),
		}
	}

	return &CarReader{ra: ra, Roots: header.Roots, index: index}, nil
}

var _ Blockstore = (*CarReader)(nil)

// ReadBlock returns the bytes for target, or ErrCidNotFound.
func (c *CarReader) ReadBlock(_ context.Context, target cid.Cid) ([]byte, error) {
	loc, ok := c.index[target.KeyString()]
	if !ok {
		return nil, ErrCidNotFound
	}
	buf := make([]byte, loc.length)
	if _, err := c.ra.ReadAt(buf, loc.offset); err != nil {
		return nil, fmt.Errorf("blockstore: read block at offset %d: %w", loc.offset, err)
	}
	return buf, nil
}

// ReadBlockInto behaves like ReadBlock but reuses buf's backing array when
// it has enough capacity.
func (c *CarReader) ReadBlockInto(_ context.Context, target cid.Cid, buf []byte) ([]byte, error) {
	loc, ok := c.index[target.KeyString()]
	if !ok {
		return nil, ErrCidNotFound
	}
	if cap(buf) < int(loc.length) {
		buf = make([]byte, loc.length)
	}
	buf = buf[:loc.length]
	if _, err := c.ra.ReadAt(buf, loc.offset); err != nil {
		return nil, fmt.Errorf("blockstore: read block at offset %d: %w", loc.offset, err)
	}
	return buf, nil
}

// Has reports whether the archive's index contains target.
func (c *CarReader) Has(_ context.Context, target cid.Cid) (bool, error) {
	_, ok := c.index[target.KeyString()]
	return ok, nil
}

// WriteBlock always fails: the indexed reader is append-only and does not
// support writes.
func (c *CarReader) WriteBlock(context.Context, uint64, uint64, []byte) (cid.Cid, error) {
	return cid.Undef, fmt.Errorf("blockstore: car reader does not support writes")
}

// DeleteBlock always fails for the same reason as WriteBlock.
func (c *CarReader) DeleteBlock(context.Context, cid.Cid) error {
	return fmt.Errorf("blockstore: car reader does not support writes")
}

func verifyBlockHash(c cid.Cid, data []byte) error {
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return fmt.Errorf("blockstore: decode multihash: %w", err)
	}
	recomputed, err := multihash.Sum(data, decoded.Code, -1)
	if err != nil {
		return fmt.Errorf("blockstore: %w: %v", ErrUnsupportedHash, err)
	}
	if !bytes.Equal([]byte(recomputed), c.Hash()) {
		return ErrInvalidHash
	}
	return nil
}

// trackingReader wraps an io.Reader and counts bytes consumed, so the
// index built by NewCarReader can record exact byte offsets.
type trackingReader struct {
	r   io.Reader
	pos int64
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.pos += int64(n)
	return n, err
}

func (t *trackingReader) ReadByte() (byte, error) {
	var b [1]byte
	n, err := t.r.Read(b[:])
	t.pos += int64(n)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.ErrNoProgress
	}
	return b[0], nil
}
